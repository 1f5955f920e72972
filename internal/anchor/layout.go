package anchor

import "github.com/Zachkp/portfolio/internal/content"

// NominalHeights are rough rendered heights, in pixels, used when no browser
// measurement is available.
var NominalHeights = map[content.Kind]float64{
	content.KindMission:            480,
	content.KindProtected:          420,
	content.KindGallery:            720,
	content.KindText:               360,
	content.KindImage:              640,
	content.KindVideo:              640,
	content.KindTestimonial:        320,
	content.KindProjectCard:        400,
	content.KindSideQuest:          480,
	content.KindDivider:            48,
	content.KindFeature:            560,
	content.KindSectionTitle:       160,
	content.KindPhoneVideo:         780,
	content.KindOverlayImage:       700,
	content.KindLearnings:          420,
	content.KindTwoColumnImage:     520,
	content.KindTwoColumnTextImage: 560,
	content.KindTableOfContents:    300,
	content.KindStats:              260,
	content.KindHighlightCards:     440,
}

// Layout is one estimated layout pass: the top offset of each rendered block.
type Layout struct {
	Keys    []string
	Offsets []float64
	Height  float64
}

// EstimateLayout stacks blocks top to bottom starting at top, using heights
// (NominalHeights when nil). Unknown blocks render empty and take no space.
func EstimateLayout(blocks []content.Block, top float64, heights map[content.Kind]float64) Layout {
	if heights == nil {
		heights = NominalHeights
	}
	l := Layout{
		Keys:    make([]string, 0, len(blocks)),
		Offsets: make([]float64, 0, len(blocks)),
	}
	y := top
	for _, b := range blocks {
		l.Keys = append(l.Keys, b.Meta().Key)
		l.Offsets = append(l.Offsets, y)
		if _, unknown := b.(content.Unknown); !unknown {
			y += heights[b.Kind()]
		}
	}
	l.Height = y
	return l
}

// Apply records every offset of l in the registry.
func (l Layout) Apply(r *Registry) {
	for i, key := range l.Keys {
		r.Measure(key, l.Offsets[i])
	}
}
