package templates

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetview/internal/core"
)

// sheetAttrs describes the scroll container of a table.
func sheetAttrs(resp *core.WindowResponse, heightPx int) templ.Attributes {
	return templ.Attributes{
		"style":      fmt.Sprintf("height:%dpx;overflow:auto", heightPx),
		"data-file":  resp.Meta.FileID,
		"data-sheet": resp.Meta.Sheet,
		"data-mode":  string(resp.Meta.Mode),
		"data-total": strconv.Itoa(resp.TotalRows),
	}
}

// position is the footer text for a window.
func position(resp *core.WindowResponse) string {
	meta := resp.Meta
	switch {
	case meta.TotalPages > 0:
		return fmt.Sprintf("Page %d of %d (%d rows)", meta.Page, meta.TotalPages, resp.TotalRows)
	case resp.TotalRows > 0:
		return fmt.Sprintf("Rows %d-%d of %d", meta.Start+1, meta.End, resp.TotalRows)
	default:
		return "No rows"
	}
}
