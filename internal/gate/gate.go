// Package gate decides which blocks of a project reach the renderer.
package gate

import "github.com/Zachkp/portfolio/internal/content"

// Effective resolves the visibility a block is judged by. An explicit setting
// always wins. Unset protected blocks behave as locked-only; every other
// unset block shows in both states.
func Effective(b content.Block) content.Visibility {
	v := b.Meta().Visibility
	if v != content.VisibilityUnset {
		return v
	}
	if b.Kind() == content.KindProtected {
		return content.VisibilityLockedOnly
	}
	return content.VisibilityBoth
}

// ShouldRender reports whether b is visible for the given unlock state.
func ShouldRender(b content.Block, unlocked bool) bool {
	switch Effective(b) {
	case content.VisibilityLockedOnly:
		return !unlocked
	case content.VisibilityUnlockedOnly:
		return unlocked
	default:
		return true
	}
}

// Boundary returns the index of the first protected block, or -1.
func Boundary(blocks []content.Block) int {
	for i, b := range blocks {
		if b.Kind() == content.KindProtected {
			return i
		}
	}
	return -1
}

// Sequence returns the blocks a viewer sees. While locked, everything after
// the first protected block is dropped before visibility is consulted. The
// result is a new slice holding a subsequence of blocks in their original order.
func Sequence(blocks []content.Block, unlocked bool) []content.Block {
	working := blocks
	if !unlocked {
		if i := Boundary(blocks); i >= 0 {
			working = blocks[:i+1]
		}
	}

	out := make([]content.Block, 0, len(working))
	for _, b := range working {
		if ShouldRender(b, unlocked) {
			out = append(out, b)
		}
	}
	return out
}
