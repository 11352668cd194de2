// Package window computes which rows of a table a renderer should receive.
//
// Indices are over data rows, i.e. the table without its header row. The
// first FrozenRows data rows are pinned: they are emitted ahead of every
// window and never scrolled or paged. The remaining body rows are served by
// one of three strategies chosen from the row count:
//
//   - all: every body row, for small tables
//   - virtual: a scroll offset plus overscan
//   - page: fixed-size pages with first/prev/next/last navigation
package window

// Mode is a windowing strategy.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeVirtual Mode = "virtual"
	ModePage    Mode = "page"
)

const (
	// MaxFrozenRows bounds the pinned leading rows.
	MaxFrozenRows = 10

	// OverscanAbove and OverscanBelow pad the virtual window.
	OverscanAbove = 5
	OverscanBelow = 10

	DefaultPageSize       = 500
	DefaultAllThreshold   = 1000
	DefaultPageThreshold  = 10000
	DefaultViewportHeight = 40
)

// PageSizes are the selectable page sizes, ascending.
var PageSizes = []int{50, 100, 250, 500, 1000}

// Policy holds the thresholds used to pick a strategy. Memory pressure
// narrows it through Shrink and Minimal.
type Policy struct {
	AllThreshold  int `json:"all_threshold"`  // below this, render all rows
	PageThreshold int `json:"page_threshold"` // above this, paginate
	PageSize      int `json:"page_size"`
}

// DefaultPolicy returns the nominal thresholds.
func DefaultPolicy() Policy {
	return Policy{
		AllThreshold:  DefaultAllThreshold,
		PageThreshold: DefaultPageThreshold,
		PageSize:      DefaultPageSize,
	}
}

// Shrink virtualizes earlier and steps the page size down one notch.
func (p Policy) Shrink() Policy {
	p.AllThreshold /= 2
	p.PageSize = smallerPageSize(p.PageSize)
	return p
}

// Minimal virtualizes everything but trivially small tables and uses the
// smallest page size.
func (p Policy) Minimal() Policy {
	p.AllThreshold = PageSizes[0]
	p.PageSize = PageSizes[0]
	return p
}

func smallerPageSize(size int) int {
	for i := len(PageSizes) - 1; i >= 0; i-- {
		if PageSizes[i] < size {
			return PageSizes[i]
		}
	}
	return PageSizes[0]
}

// SelectMode picks the strategy for total data rows.
func SelectMode(total int, p Policy) Mode {
	switch {
	case total < p.AllThreshold:
		return ModeAll
	case total <= p.PageThreshold:
		return ModeVirtual
	default:
		return ModePage
	}
}

// Viewport is a renderer's request. A zero Mode lets SelectMode decide.
type Viewport struct {
	Mode         Mode `json:"mode,omitempty"`
	Page         int  `json:"page,omitempty"`
	PageSize     int  `json:"page_size,omitempty"`
	ScrollOffset int  `json:"scroll_offset,omitempty"`
	Height       int  `json:"height,omitempty"`
	FrozenRows   int  `json:"frozen_rows"`
}

// Window is a computed slice. Frozen rows [0, Frozen) come first, then the
// body rows [Start, End).
type Window struct {
	Mode         Mode `json:"mode"`
	Total        int  `json:"total_rows"`
	Frozen       int  `json:"frozen_rows"`
	Start        int  `json:"start"`
	End          int  `json:"end"`
	Page         int  `json:"page,omitempty"`
	TotalPages   int  `json:"total_pages,omitempty"`
	PageSize     int  `json:"page_size,omitempty"`
	ScrollOffset int  `json:"scroll_offset"`
}

// Len returns the number of rows the window emits.
func (w Window) Len() int { return w.Frozen + w.End - w.Start }

// Indices lists the data-row indices in emission order.
func (w Window) Indices() []int {
	out := make([]int, 0, w.Len())
	for i := 0; i < w.Frozen; i++ {
		out = append(out, i)
	}
	for i := w.Start; i < w.End; i++ {
		out = append(out, i)
	}
	return out
}

// ClampFrozen bounds n to [0, MaxFrozenRows] and to the row count.
func ClampFrozen(n, total int) int {
	if n < 0 {
		n = 0
	}
	if n > MaxFrozenRows {
		n = MaxFrozenRows
	}
	if n > total {
		n = total
	}
	return n
}

// Compute resolves vp against a table of total data rows. An explicit
// ModeAll is only honored when the table is small enough for it.
func Compute(total int, vp Viewport, p Policy) Window {
	if total < 0 {
		total = 0
	}
	frozen := ClampFrozen(vp.FrozenRows, total)
	selected := SelectMode(total, p)

	mode := vp.Mode
	if mode == "" || (mode == ModeAll && selected != ModeAll) {
		mode = selected
	}

	switch mode {
	case ModePage:
		size := vp.PageSize
		if size <= 0 {
			size = p.PageSize
		}
		pg := NewPaginator(total, frozen, size)
		pg.Goto(vp.Page)
		start, end := pg.Range()
		return Window{
			Mode: ModePage, Total: total, Frozen: frozen,
			Start: start, End: end,
			Page: pg.Page(), TotalPages: pg.TotalPages(), PageSize: pg.PageSize(),
		}
	case ModeVirtual:
		vs := NewVirtualScroller(total, frozen, vp.Height)
		vs.ScrollTo(vp.ScrollOffset)
		start, end := vs.Range()
		return Window{
			Mode: ModeVirtual, Total: total, Frozen: frozen,
			Start: start, End: end, ScrollOffset: vs.Offset(),
		}
	default:
		return Window{Mode: ModeAll, Total: total, Frozen: frozen, Start: frozen, End: total}
	}
}
