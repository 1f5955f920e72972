package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateKey is returned when two blocks of one project share a key.
var ErrDuplicateKey = errors.New("content: duplicate block key")

// RawBlock is the wire shape of a block as the CMS delivers it, over JSON or
// YAML. It is the union of every variant's fields.
type RawBlock struct {
	Type       string `json:"type" yaml:"type"`
	SanityType string `json:"_type" yaml:"_type"`
	Key        string `json:"key" yaml:"key"`
	SanityKey  string `json:"_key" yaml:"_key"`
	Visibility string `json:"visibility" yaml:"visibility"`

	Title   string `json:"title" yaml:"title"`
	Heading string `json:"heading" yaml:"heading"`
	Eyebrow string `json:"eyebrow" yaml:"eyebrow"`
	Body    string `json:"body" yaml:"body"`
	Message string `json:"message" yaml:"message"`
	Summary string `json:"summary" yaml:"summary"`
	Caption string `json:"caption" yaml:"caption"`
	Quote   string `json:"quote" yaml:"quote"`
	Author  string `json:"author" yaml:"author"`
	Role    string `json:"role" yaml:"role"`
	Href    string `json:"href" yaml:"href"`

	Password               string `json:"password" yaml:"password"`
	ContactEmail           string `json:"contactEmail" yaml:"contactEmail"`
	ShowPasswordProtection *bool  `json:"showPasswordProtection" yaml:"showPasswordProtection"`

	IsSkipLinkStart bool `json:"isSkipLinkStart" yaml:"isSkipLinkStart"`
	IsSkipLinkEnd   bool `json:"isSkipLinkEnd" yaml:"isSkipLinkEnd"`

	Image       *Media  `json:"image" yaml:"image"`
	Images      []Media `json:"images" yaml:"images"`
	Video       *Media  `json:"video" yaml:"video"`
	Poster      *Media  `json:"poster" yaml:"poster"`
	Overlay     *Media  `json:"overlay" yaml:"overlay"`
	Left        *Media  `json:"left" yaml:"left"`
	Right       *Media  `json:"right" yaml:"right"`
	ImageOnLeft bool    `json:"imageOnLeft" yaml:"imageOnLeft"`

	Items   []string   `json:"items" yaml:"items"`
	Stats   []Stat     `json:"stats" yaml:"stats"`
	Cards   []Card     `json:"cards" yaml:"cards"`
	Entries []TOCEntry `json:"entries" yaml:"entries"`
}

func (r RawBlock) tag() string {
	if t := strings.TrimSpace(r.Type); t != "" {
		return t
	}
	return strings.TrimSpace(r.SanityType)
}

func (r RawBlock) key() string {
	if k := strings.TrimSpace(r.Key); k != "" {
		return k
	}
	return strings.TrimSpace(r.SanityKey)
}

// Decode converts raw CMS blocks into typed blocks, keeping their order.
// Unrecognised tags become Unknown and visibility values other than the exact
// lowercase "both", "locked-only" and "unlocked-only" are treated as unset;
// both are reported as warnings rather than errors. Blocks without a key get
// "<type>-<index>", suffixed when an authored key already uses that name.
func Decode(raws []RawBlock) ([]Block, []string, error) {
	blocks := make([]Block, 0, len(raws))
	var warnings []string
	seen := make(map[string]int, len(raws))

	authored := make(map[string]bool, len(raws))
	for _, raw := range raws {
		if k := raw.key(); k != "" {
			authored[k] = true
		}
	}

	for i, raw := range raws {
		tag := raw.tag()
		key := raw.key()
		if key == "" {
			key = generatedKey(tagOrBlock(tag), i, authored, seen)
		}
		if prev, dup := seen[key]; dup {
			return nil, warnings, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateKey, key, prev, i)
		}
		seen[key] = i

		vis := Visibility(strings.TrimSpace(raw.Visibility))
		if !vis.Valid() {
			warnings = append(warnings, fmt.Sprintf("block %q: unknown visibility %q treated as unset", key, raw.Visibility))
			vis = VisibilityUnset
		}
		base := Base{Key: key, Visibility: vis}

		b := raw.build(base, tag)
		if _, unknown := b.(Unknown); unknown {
			warnings = append(warnings, fmt.Sprintf("block %q: unknown type %q", key, tag))
		}
		blocks = append(blocks, b)
	}
	return blocks, warnings, nil
}

func generatedKey(tag string, i int, authored map[string]bool, seen map[string]int) string {
	base := fmt.Sprintf("%s-%d", tag, i)
	key := base
	for n := 2; ; n++ {
		_, used := seen[key]
		if !authored[key] && !used {
			return key
		}
		key = fmt.Sprintf("%s~%d", base, n)
	}
}

func tagOrBlock(tag string) string {
	if tag == "" {
		return "block"
	}
	return tag
}

func media(m *Media) Media {
	if m == nil {
		return Media{}
	}
	return *m
}

func (r RawBlock) build(base Base, tag string) Block {
	switch Kind(tag) {
	case KindMission:
		return Mission{Base: base, Heading: r.Heading, Body: r.Body}
	case KindProtected:
		return Protected{
			Base:                   base,
			Title:                  r.Title,
			Message:                r.Message,
			Password:               r.Password,
			ContactEmail:           r.ContactEmail,
			ShowPasswordProtection: r.ShowPasswordProtection,
		}
	case KindGallery:
		return Gallery{Base: base, Title: r.Title, Images: r.Images}
	case KindText:
		return Text{Base: base, Heading: r.Heading, Body: r.Body}
	case KindImage:
		return Image{Base: base, Image: media(r.Image), Caption: r.Caption}
	case KindVideo:
		return Video{Base: base, Video: media(r.Video), Poster: r.Poster, Caption: r.Caption}
	case KindTestimonial:
		return Testimonial{Base: base, Quote: r.Quote, Author: r.Author, Role: r.Role}
	case KindProjectCard:
		return ProjectCard{Base: base, Title: r.Title, Summary: r.Summary, Href: r.Href, Image: r.Image}
	case KindSideQuest:
		return SideQuest{Base: base, Title: r.Title, Body: r.Body, Image: r.Image}
	case KindDivider:
		return Divider{Base: base}
	case KindFeature:
		return Feature{Base: base, Title: r.Title, Body: r.Body, Image: r.Image}
	case KindSectionTitle:
		return SectionTitle{
			Base:            base,
			Title:           r.Title,
			Eyebrow:         r.Eyebrow,
			IsSkipLinkStart: r.IsSkipLinkStart,
			IsSkipLinkEnd:   r.IsSkipLinkEnd,
		}
	case KindPhoneVideo:
		return PhoneVideo{Base: base, Video: media(r.Video), Caption: r.Caption}
	case KindOverlayImage:
		return OverlayImage{Base: base, Image: media(r.Image), Overlay: media(r.Overlay), Caption: r.Caption}
	case KindLearnings:
		return Learnings{Base: base, Title: r.Title, Items: r.Items}
	case KindTwoColumnImage:
		return TwoColumnImage{Base: base, Left: media(r.Left), Right: media(r.Right)}
	case KindTwoColumnTextImage:
		return TwoColumnTextImage{
			Base:        base,
			Heading:     r.Heading,
			Body:        r.Body,
			Image:       media(r.Image),
			ImageOnLeft: r.ImageOnLeft,
		}
	case KindTableOfContents:
		return TableOfContents{Base: base, Title: r.Title, Entries: r.Entries}
	case KindStats:
		return Stats{Base: base, Items: r.Stats}
	case KindHighlightCards:
		return HighlightCards{Base: base, Title: r.Title, Cards: r.Cards}
	default:
		return Unknown{Base: base, Type: tag}
	}
}

// DecodeJSON decodes a JSON array of CMS blocks.
func DecodeJSON(data []byte) ([]Block, []string, error) {
	var raws []RawBlock
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("content: decode blocks: %w", err)
	}
	return Decode(raws)
}

// Envelope is the JSON form of a block sent to clients.
type Envelope struct {
	Type       Kind       `json:"type"`
	Key        string     `json:"key"`
	Visibility Visibility `json:"visibility,omitempty"`
	Data       Block      `json:"data,omitempty"`
}

// Wrap converts blocks into envelopes. Unknown blocks keep their tag and carry no data.
func Wrap(blocks []Block) []Envelope {
	out := make([]Envelope, 0, len(blocks))
	for _, b := range blocks {
		meta := b.Meta()
		env := Envelope{Type: b.Kind(), Key: meta.Key, Visibility: meta.Visibility}
		if _, unknown := b.(Unknown); !unknown {
			env.Data = b
		}
		out = append(out, env)
	}
	return out
}
