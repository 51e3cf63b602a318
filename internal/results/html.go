package results

import (
	"fmt"
	"html/template"
	"io"
)

const htmlTableTemplate = `<table id="results-table">
<thead>
<tr>{{range .Columns}}<th title="{{.}}">{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td title="{{.Tooltip}}"{{if .Expandable}} class="expandable"{{end}}>{{.Text}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
`

type htmlCell struct {
	Tooltip    string
	Text       string
	Expandable bool
}

type htmlTemplateData struct {
	Columns []string
	Rows    [][]htmlCell
}

// HTMLRenderer writes the visible rows as an HTML table fragment. Values are
// shown as text, never parsed as markup, so symbolic alleles like <DEL> stay
// intact. Long cells carry the expandable class and the full value as title.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("results").Parse(htmlTableTemplate)),
	}
}

func (r *HTMLRenderer) SupportedFormat() Format {
	return FormatHTML
}

func (r *HTMLRenderer) Render(w io.Writer, t *Table, opts Options) error {
	data := htmlTemplateData{
		Columns: t.Columns(),
	}
	for _, row := range t.Visible() {
		cells := make([]htmlCell, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = htmlCell{
				Tooltip:    c.Tooltip(),
				Text:       c.Display(opts.Expanded),
				Expandable: c.Expandable(),
			}
		}
		data.Rows = append(data.Rows, cells)
	}

	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}
