package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/window"
)

func TestTable(t *testing.T) {
	d := core.NewDataset("Sheet1", []core.Row{
		{core.Text("Name"), core.Text("Score")},
		{core.Text("Ana"), core.Number(1.5)},
		{core.Text("Bo")},
	})
	resp := core.BuildWindow(d, window.Window{Mode: window.ModeAll, Total: 2, Frozen: 1, Start: 1, End: 2})
	resp.Meta.FileID = "f1"

	var buf bytes.Buffer
	rows := TableRows(resp.VisibleRows, resp.ColumnCount())
	ctx := templ.WithChildren(context.Background(), rows)
	if err := Table(resp, 480).Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		`style="height:480px;overflow:auto"`,
		`data-file="f1"`,
		`<th>Name</th><th>Score</th>`,
		`<tr class="frozen"><td class="rownum">1</td><td class="text">Ana</td><td class="number">1.5</td></tr>`,
		`<tr><td class="rownum">2</td><td class="text">Bo</td><td class="null"></td></tr>`,
		`</tbody></table></div><footer class="sheet-footer">Rows 2-2 of 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert(`Bad <file>`, "", "FILE002").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Bad &lt;file&gt;") || strings.Contains(out, "alert-action") {
		t.Errorf("alert = %s", out)
	}
}

func TestFileList(t *testing.T) {
	var buf bytes.Buffer
	files := []core.FileInfo{{
		ID: "f1", Name: "a&b.csv", Kind: core.KindDelimited, SizeLabel: "1.0 KB",
		Sheets: []string{"Sheet1"}, JobState: core.JobCompleted,
	}}
	if err := FileList(files, 600).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a&amp;b.csv") || !strings.Contains(out, `data-table-height="600"`) {
		t.Errorf("page = %s", out)
	}

	buf.Reset()
	FileList(nil, 600).Render(context.Background(), &buf)
	if !strings.Contains(buf.String(), "No files loaded.") {
		t.Errorf("empty page = %s", buf.String())
	}
}

func TestTableFooter(t *testing.T) {
	tests := []struct {
		name string
		meta core.ViewportMeta
		rows int
		want string
	}{
		{"paged", core.ViewportMeta{Window: window.Window{Page: 2, TotalPages: 3}}, 1200, "Page 2 of 3 (1200 rows)"},
		{"scrolled", core.ViewportMeta{Window: window.Window{Start: 10, End: 50}, Compressed: true}, 900, `Rows 11-50 of 900 <span class="badge">compressed</span>`},
		{"empty", core.ViewportMeta{}, 0, "No rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			resp := &core.WindowResponse{TotalRows: tt.rows, Meta: tt.meta}
			if err := TableFooter(resp).Render(context.Background(), &buf); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("footer = %s, want %q", buf.String(), tt.want)
			}
		})
	}
}
