package core

import (
	"github.com/JonMunkholm/sheetview/internal/window"
)

// VisibleRow is one data row handed to a renderer. RowIndex counts data rows
// from zero, so the header row is not addressable.
type VisibleRow struct {
	RowIndex int  `json:"row_index"`
	Cells    Row  `json:"cells"`
	Frozen   bool `json:"frozen,omitempty"`
}

// ViewportMeta describes how a window was cut.
type ViewportMeta struct {
	window.Window
	FileID     string        `json:"file_id"`
	Sheet      string        `json:"sheet"`
	Compressed bool          `json:"compressed,omitempty"`
	Policy     window.Policy `json:"policy"`
}

// WindowResponse is the render payload for one viewport.
type WindowResponse struct {
	HeaderRow   Row          `json:"header_row"`
	VisibleRows []VisibleRow `json:"visible_rows"`
	TotalRows   int          `json:"total_rows"`
	Meta        ViewportMeta `json:"viewport_meta"`
}

// BuildWindow cuts w out of t. Data row i is table row i+1.
func BuildWindow(t Table, w window.Window) *WindowResponse {
	resp := &WindowResponse{
		HeaderRow:   t.Row(0),
		VisibleRows: make([]VisibleRow, 0, w.Len()),
		TotalRows:   w.Total,
	}
	for _, i := range w.Indices() {
		resp.VisibleRows = append(resp.VisibleRows, VisibleRow{
			RowIndex: i,
			Cells:    t.Row(i + 1),
			Frozen:   i < w.Frozen,
		})
	}
	_, resp.Meta.Compressed = t.(*CompressedDataset)
	resp.Meta.Window = w
	resp.Meta.Sheet = t.Name()
	return resp
}

// ColumnCount returns the widest row in the window, header included.
func (r *WindowResponse) ColumnCount() int {
	n := len(r.HeaderRow)
	for _, row := range r.VisibleRows {
		n = max(n, len(row.Cells))
	}
	return n
}

func (r *WindowResponse) estimateSize() int64 {
	n := int64(64)
	for _, c := range r.HeaderRow {
		n += c.estimateSize()
	}
	for _, row := range r.VisibleRows {
		n += 32
		for _, c := range row.Cells {
			n += c.estimateSize()
		}
	}
	return n
}
