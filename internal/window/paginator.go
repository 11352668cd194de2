package window

// Paginator pages over the body rows [frozen, total). Pages are 1-based and
// every navigation clips to the valid range.
type Paginator struct {
	total    int
	frozen   int
	pageSize int
	page     int
}

// NewPaginator starts on page 1. A non-positive size uses DefaultPageSize.
func NewPaginator(total, frozen, size int) *Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Paginator{total: total, frozen: ClampFrozen(frozen, total), pageSize: size, page: 1}
}

// TotalPages is ceil(body/pageSize), at least 1.
func (p *Paginator) TotalPages() int {
	body := p.total - p.frozen
	if body <= 0 {
		return 1
	}
	return (body + p.pageSize - 1) / p.pageSize
}

// Page returns the current page number.
func (p *Paginator) Page() int { return p.page }

// PageSize returns the rows per page.
func (p *Paginator) PageSize() int { return p.pageSize }

// SetPageSize changes the page size, keeping the first visible row on screen.
func (p *Paginator) SetPageSize(size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	first, _ := p.Range()
	p.pageSize = size
	return p.Goto((first-p.frozen)/size + 1)
}

// Goto moves to page n, clipped to [1, TotalPages].
func (p *Paginator) Goto(n int) int {
	if last := p.TotalPages(); n > last {
		n = last
	}
	if n < 1 {
		n = 1
	}
	p.page = n
	return n
}

func (p *Paginator) First() int { return p.Goto(1) }
func (p *Paginator) Prev() int  { return p.Goto(p.page - 1) }
func (p *Paginator) Next() int  { return p.Goto(p.page + 1) }
func (p *Paginator) Last() int  { return p.Goto(p.TotalPages()) }

// Range returns the current page's body rows as a half-open interval.
func (p *Paginator) Range() (int, int) {
	start := p.frozen + (p.page-1)*p.pageSize
	end := start + p.pageSize
	if end > p.total {
		end = p.total
	}
	if start > end {
		start = end
	}
	return start, end
}
