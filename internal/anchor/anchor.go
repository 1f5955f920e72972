// Package anchor tracks the section titles that bound the "skip to final
// designs" region and decides when the skip link shows.
package anchor

import (
	"errors"
	"fmt"

	"github.com/Zachkp/portfolio/internal/content"
)

// DefaultMargin is the lead-in, in pixels, subtracted from both anchor offsets.
const DefaultMargin = 100

// ErrDuplicateAnchor is returned when a start or end anchor is registered twice in one render.
var ErrDuplicateAnchor = errors.New("anchor: duplicate anchor")

// Registry holds at most one start and one end anchor for a rendered page,
// and the offsets measured for them.
type Registry struct {
	margin  float64
	start   string
	end     string
	offsets map[string]float64
}

func NewRegistry(margin float64) *Registry {
	if margin < 0 {
		margin = 0
	}
	return &Registry{margin: margin, offsets: map[string]float64{}}
}

func (r *Registry) RegisterStart(key string) error {
	if r.start != "" && r.start != key {
		return fmt.Errorf("%w: start already %q", ErrDuplicateAnchor, r.start)
	}
	r.start = key
	return nil
}

func (r *Registry) RegisterEnd(key string) error {
	if r.end != "" && r.end != key {
		return fmt.Errorf("%w: end already %q", ErrDuplicateAnchor, r.end)
	}
	r.end = key
	return nil
}

// Measure records the distance of key's node from the top of the scrolling container.
func (r *Registry) Measure(key string, offset float64) {
	r.offsets[key] = offset
}

func (r *Registry) OffsetOf(key string) (float64, bool) {
	off, ok := r.offsets[key]
	return off, ok
}

// Start and End return the registered anchor keys, empty when missing.
func (r *Registry) Start() string { return r.start }
func (r *Registry) End() string   { return r.end }

// Margin returns the lead-in margin.
func (r *Registry) Margin() float64 { return r.margin }

// Complete reports whether both anchors are registered.
func (r *Registry) Complete() bool { return r.start != "" && r.end != "" }

// Reset forgets anchors and measurements ahead of a new layout pass.
func (r *Registry) Reset() {
	r.start, r.end = "", ""
	r.offsets = map[string]float64{}
}

// Scan registers the skip-link section titles found in the gated blocks.
// The first start and the first end marker win; later ones are ignored and
// returned as a warning-level error.
func (r *Registry) Scan(blocks []content.Block) error {
	var errs []error
	for _, b := range blocks {
		title, ok := b.(content.SectionTitle)
		if !ok {
			continue
		}
		if title.IsSkipLinkStart {
			if r.start == "" {
				r.start = title.Key
			} else {
				errs = append(errs, fmt.Errorf("%w: start %q ignored", ErrDuplicateAnchor, title.Key))
			}
		}
		if title.IsSkipLinkEnd {
			if r.end == "" {
				r.end = title.Key
			} else {
				errs = append(errs, fmt.Errorf("%w: end %q ignored", ErrDuplicateAnchor, title.Key))
			}
		}
	}
	return errors.Join(errs...)
}

// SkipLink returns the skip affordance when both anchors are registered and measured.
func (r *Registry) SkipLink() (SkipLink, bool) {
	if !r.Complete() {
		return SkipLink{}, false
	}
	start, ok := r.offsets[r.start]
	if !ok {
		return SkipLink{}, false
	}
	end, ok := r.offsets[r.end]
	if !ok {
		return SkipLink{}, false
	}
	return SkipLink{Start: start, End: end, Margin: r.margin, TargetKey: r.end}, true
}

// SkipLink is the "skip to final designs" shortcut for one layout.
type SkipLink struct {
	Start     float64
	End       float64
	Margin    float64
	TargetKey string
}

// Visible reports whether the link shows at scroll position y: from the
// start anchor until the end anchor, both shifted up by the margin.
func (s SkipLink) Visible(y float64) bool {
	return y >= s.Start-s.Margin && y < s.End-s.Margin
}

// Target is where a click scrolls to. Clicking never changes unlock state.
func (s SkipLink) Target() float64 { return s.End }

// Href is the fragment used as the link target.
func (s SkipLink) Href() string { return "#" + s.TargetKey }
