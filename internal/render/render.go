// Package render turns gated content blocks into HTML fragments.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/Zachkp/portfolio/internal/content"
)

//go:embed templates/*.html
var templateFS embed.FS

// State is the per-page context a block is rendered in.
type State struct {
	ProjectID string
	Unlocked  bool
	// Retry marks a failed password attempt on this render.
	Retry bool
}

// Renderer maps each block variant to exactly one template.
type Renderer struct {
	tmpl   *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() (*Renderer, error) {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithRendererOptions(
				goldmarkHTML.WithHardWraps(),
			),
		),
		policy: newBodyPolicy(),
	}
	tmpl, err := template.New("blocks").
		Funcs(template.FuncMap{"markdown": r.markdown}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse block templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

func newBodyPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("class").OnElements("figure", "figcaption", "p", "span")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func (r *Renderer) markdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

type protectedView struct {
	Block     content.Protected
	ProjectID string
	Unlocked  bool
	ShowForm  bool
	Retry     bool
}

// Render produces the HTML for one block. Unknown variants render nothing.
// Only protected blocks look at the unlock state, to pick between the
// password form, the informational lock notice and the unlocked message.
func (r *Renderer) Render(b content.Block, st State) (template.HTML, error) {
	switch v := b.(type) {
	case content.Protected:
		return r.exec(content.KindProtected, protectedView{
			Block:     v,
			ProjectID: st.ProjectID,
			Unlocked:  st.Unlocked,
			ShowForm:  !st.Unlocked && v.ShowsForm(),
			Retry:     st.Retry,
		})
	case content.Mission, content.Gallery, content.Text, content.Image,
		content.Video, content.Testimonial, content.ProjectCard, content.SideQuest,
		content.Divider, content.Feature, content.SectionTitle, content.PhoneVideo,
		content.OverlayImage, content.Learnings, content.TwoColumnImage,
		content.TwoColumnTextImage, content.TableOfContents, content.Stats,
		content.HighlightCards:
		return r.exec(v.Kind(), v)
	default:
		return "", nil
	}
}

// RenderAll renders blocks in order and concatenates the fragments.
func (r *Renderer) RenderAll(blocks []content.Block, st State) (template.HTML, error) {
	var buf bytes.Buffer
	for _, b := range blocks {
		frag, err := r.Render(b, st)
		if err != nil {
			return "", err
		}
		buf.WriteString(string(frag))
		buf.WriteByte('\n')
	}
	return template.HTML(buf.String()), nil
}

func (r *Renderer) exec(kind content.Kind, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return template.HTML(buf.String()), nil
}
