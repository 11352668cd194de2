package window

// VirtualScroller maps a scroll offset over the body rows to a window with
// OverscanAbove rows above and OverscanBelow rows below the viewport.
type VirtualScroller struct {
	total  int
	frozen int
	height int
	offset int
}

// NewVirtualScroller creates a scroller showing height body rows.
func NewVirtualScroller(total, frozen, height int) *VirtualScroller {
	if height <= 0 {
		height = DefaultViewportHeight
	}
	return &VirtualScroller{total: total, frozen: ClampFrozen(frozen, total), height: height}
}

// ScrollTo sets the offset, in body rows, clamped to the scrollable range.
func (v *VirtualScroller) ScrollTo(offset int) int {
	v.offset = offset
	v.clampScroll()
	return v.offset
}

// ScrollBy moves the offset by n rows.
func (v *VirtualScroller) ScrollBy(n int) int { return v.ScrollTo(v.offset + n) }

// Offset returns the current offset.
func (v *VirtualScroller) Offset() int { return v.offset }

func (v *VirtualScroller) clampScroll() {
	maxScroll := v.total - v.frozen - v.height
	if maxScroll < 0 {
		maxScroll = 0
	}
	if v.offset > maxScroll {
		v.offset = maxScroll
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

// Range returns the body rows to materialize, overscan included.
func (v *VirtualScroller) Range() (int, int) {
	start := v.frozen + v.offset - OverscanAbove
	if start < v.frozen {
		start = v.frozen
	}
	end := v.frozen + v.offset + v.height + OverscanBelow
	if end > v.total {
		end = v.total
	}
	if start > end {
		start = end
	}
	return start, end
}
