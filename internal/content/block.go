// Package content models the CMS-authored blocks that make up a case-study page.
package content

// Kind is the CMS type tag of a block.
type Kind string

const (
	KindMission            Kind = "mission"
	KindProtected          Kind = "protected"
	KindGallery            Kind = "gallery"
	KindText               Kind = "text"
	KindImage              Kind = "image"
	KindVideo              Kind = "video"
	KindTestimonial        Kind = "testimonial"
	KindProjectCard        Kind = "project-card"
	KindSideQuest          Kind = "side-quest"
	KindDivider            Kind = "divider"
	KindFeature            Kind = "feature"
	KindSectionTitle       Kind = "section-title"
	KindPhoneVideo         Kind = "phone-video"
	KindOverlayImage       Kind = "overlay-image"
	KindLearnings          Kind = "learnings"
	KindTwoColumnImage     Kind = "two-column-image"
	KindTwoColumnTextImage Kind = "two-column-text-image"
	KindTableOfContents    Kind = "table-of-contents"
	KindStats              Kind = "stats"
	KindHighlightCards     Kind = "highlight-cards"
)

// Kinds lists every tag the renderer knows, in declaration order.
var Kinds = []Kind{
	KindMission, KindProtected, KindGallery, KindText, KindImage, KindVideo,
	KindTestimonial, KindProjectCard, KindSideQuest, KindDivider, KindFeature,
	KindSectionTitle, KindPhoneVideo, KindOverlayImage, KindLearnings,
	KindTwoColumnImage, KindTwoColumnTextImage, KindTableOfContents, KindStats,
	KindHighlightCards,
}

// Known reports whether k is one of the recognised tags.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Visibility controls whether a block shows while a project is locked, unlocked or both.
// The zero value means the author did not set one.
type Visibility string

const (
	VisibilityUnset        Visibility = ""
	VisibilityBoth         Visibility = "both"
	VisibilityLockedOnly   Visibility = "locked-only"
	VisibilityUnlockedOnly Visibility = "unlocked-only"
)

// Valid reports whether v is unset or one of the three legal settings.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityUnset, VisibilityBoth, VisibilityLockedOnly, VisibilityUnlockedOnly:
		return true
	}
	return false
}

// Base holds the fields every block shares.
type Base struct {
	Key        string     `json:"-"`
	Visibility Visibility `json:"-"`
}

// Meta returns the shared fields.
func (b Base) Meta() Base { return b }

func (Base) sealed() {}

// Block is the closed set of content block variants. Every variant lives in
// this package; switch on the concrete type to handle them.
type Block interface {
	Kind() Kind
	Meta() Base
	sealed()
}

// Media is an already-resolved image or video reference.
type Media struct {
	URL string `json:"url" yaml:"url"`
	Alt string `json:"alt,omitempty" yaml:"alt,omitempty"`
}

// Stat is one figure in a stats block.
type Stat struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Card is one entry of a highlight-cards block.
type Card struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`
}

// TOCEntry links to a section of the page.
type TOCEntry struct {
	Label  string `json:"label" yaml:"label"`
	Target string `json:"target" yaml:"target"`
}

type Mission struct {
	Base
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Protected marks the start of confidential content. A block without a
// password is informational only and never shows a password form.
type Protected struct {
	Base
	Title                  string `json:"title,omitempty"`
	Message                string `json:"message,omitempty"`
	Password               string `json:"password,omitempty"`
	ContactEmail           string `json:"contactEmail,omitempty"`
	ShowPasswordProtection *bool  `json:"showPasswordProtection,omitempty"`
}

// HasPassword reports whether a secret is configured.
func (p Protected) HasPassword() bool { return p.Password != "" }

// ShowsForm reports whether the locked presentation offers a password form.
func (p Protected) ShowsForm() bool {
	if !p.HasPassword() {
		return false
	}
	return p.ShowPasswordProtection == nil || *p.ShowPasswordProtection
}

type Gallery struct {
	Base
	Title  string  `json:"title,omitempty"`
	Images []Media `json:"images,omitempty"`
}

type Text struct {
	Base
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
}

type Image struct {
	Base
	Image   Media  `json:"image"`
	Caption string `json:"caption,omitempty"`
}

type Video struct {
	Base
	Video   Media  `json:"video"`
	Poster  *Media `json:"poster,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type Testimonial struct {
	Base
	Quote  string `json:"quote"`
	Author string `json:"author,omitempty"`
	Role   string `json:"role,omitempty"`
}

type ProjectCard struct {
	Base
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Href    string `json:"href,omitempty"`
	Image   *Media `json:"image,omitempty"`
}

type SideQuest struct {
	Base
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Image *Media `json:"image,omitempty"`
}

type Divider struct {
	Base
}

type Feature struct {
	Base
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Image *Media `json:"image,omitempty"`
}

// SectionTitle headings may additionally bound the "skip to final designs" region.
type SectionTitle struct {
	Base
	Title           string `json:"title"`
	Eyebrow         string `json:"eyebrow,omitempty"`
	IsSkipLinkStart bool   `json:"isSkipLinkStart,omitempty"`
	IsSkipLinkEnd   bool   `json:"isSkipLinkEnd,omitempty"`
}

type PhoneVideo struct {
	Base
	Video   Media  `json:"video"`
	Caption string `json:"caption,omitempty"`
}

type OverlayImage struct {
	Base
	Image   Media  `json:"image"`
	Overlay Media  `json:"overlay"`
	Caption string `json:"caption,omitempty"`
}

type Learnings struct {
	Base
	Title string   `json:"title,omitempty"`
	Items []string `json:"items,omitempty"`
}

type TwoColumnImage struct {
	Base
	Left  Media `json:"left"`
	Right Media `json:"right"`
}

type TwoColumnTextImage struct {
	Base
	Heading     string `json:"heading,omitempty"`
	Body        string `json:"body,omitempty"`
	Image       Media  `json:"image"`
	ImageOnLeft bool   `json:"imageOnLeft,omitempty"`
}

type TableOfContents struct {
	Base
	Title   string     `json:"title,omitempty"`
	Entries []TOCEntry `json:"entries,omitempty"`
}

type Stats struct {
	Base
	Items []Stat `json:"stats,omitempty"`
}

type HighlightCards struct {
	Base
	Title string `json:"title,omitempty"`
	Cards []Card `json:"cards,omitempty"`
}

// Unknown is a block whose tag this build does not recognise. It still takes
// part in gating and renders as nothing.
type Unknown struct {
	Base
	Type string `json:"-"`
}

func (Mission) Kind() Kind            { return KindMission }
func (Protected) Kind() Kind          { return KindProtected }
func (Gallery) Kind() Kind            { return KindGallery }
func (Text) Kind() Kind               { return KindText }
func (Image) Kind() Kind              { return KindImage }
func (Video) Kind() Kind              { return KindVideo }
func (Testimonial) Kind() Kind        { return KindTestimonial }
func (ProjectCard) Kind() Kind        { return KindProjectCard }
func (SideQuest) Kind() Kind          { return KindSideQuest }
func (Divider) Kind() Kind            { return KindDivider }
func (Feature) Kind() Kind            { return KindFeature }
func (SectionTitle) Kind() Kind       { return KindSectionTitle }
func (PhoneVideo) Kind() Kind         { return KindPhoneVideo }
func (OverlayImage) Kind() Kind       { return KindOverlayImage }
func (Learnings) Kind() Kind          { return KindLearnings }
func (TwoColumnImage) Kind() Kind     { return KindTwoColumnImage }
func (TwoColumnTextImage) Kind() Kind { return KindTwoColumnTextImage }
func (TableOfContents) Kind() Kind    { return KindTableOfContents }
func (Stats) Kind() Kind              { return KindStats }
func (HighlightCards) Kind() Kind     { return KindHighlightCards }
func (u Unknown) Kind() Kind          { return Kind(u.Type) }

// Project is one case study: metadata plus its authored block sequence.
type Project struct {
	ID      string
	Title   string
	Summary string
	Blocks  []Block
}

// Keys returns the block keys in order.
func Keys(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Meta().Key
	}
	return out
}
