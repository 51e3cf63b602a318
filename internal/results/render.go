package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"sigs.k8s.io/yaml"
)

type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatHTML  Format = "html"
	FormatXLSX  Format = "xlsx"
)

// Formats lists every supported output format.
var Formats = []string{
	string(FormatTable),
	string(FormatCSV),
	string(FormatJSON),
	string(FormatYAML),
	string(FormatHTML),
	string(FormatXLSX),
}

type Options struct {
	// Expanded shows long cells in full instead of truncated.
	Expanded bool
}

type Renderer interface {
	SupportedFormat() Format
	Render(w io.Writer, t *Table, opts Options) error
}

func NewRenderer(format Format) (Renderer, error) {
	switch format {
	case FormatTable, "":
		return &TableRenderer{}, nil
	case FormatCSV:
		return &CSVRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatYAML:
		return &YAMLRenderer{}, nil
	case FormatHTML:
		return NewHTMLRenderer(), nil
	case FormatXLSX:
		return &XLSXRenderer{}, nil
	default:
		return nil, fmt.Errorf("output format must be one of %s", strings.Join(Formats, ", "))
	}
}

// TableRenderer writes an aligned plain-text table.
type TableRenderer struct{}

func (r *TableRenderer) SupportedFormat() Format {
	return FormatTable
}

func (r *TableRenderer) Render(w io.Writer, t *Table, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(sanitizeColumns(t.Columns()), "\t"))
	for _, row := range t.Visible() {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = flatten(c.Display(opts.Expanded))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func sanitizeColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = flatten(c)
	}
	return out
}

// flatten keeps a value on one tabwriter cell.
func flatten(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

type CSVRenderer struct{}

func (r *CSVRenderer) SupportedFormat() Format {
	return FormatCSV
}

func (r *CSVRenderer) Render(w io.Writer, t *Table, _ Options) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// visibleSet is the visible part of the table in the server's shape.
func visibleSet(t *Table) *ResultSet {
	rs := &ResultSet{
		Columns: t.Columns(),
		Rows:    make([]map[string]string, 0),
	}
	for _, row := range t.Visible() {
		data := make(map[string]string, len(row.Cells))
		for i, c := range row.Cells {
			data[t.Columns()[i]] = c.Value
		}
		rs.Rows = append(rs.Rows, data)
	}
	return rs
}

type JSONRenderer struct{}

func (r *JSONRenderer) SupportedFormat() Format {
	return FormatJSON
}

func (r *JSONRenderer) Render(w io.Writer, t *Table, _ Options) error {
	marshalled, err := json.Marshal(visibleSet(t))
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", marshalled)
	return err
}

type YAMLRenderer struct{}

func (r *YAMLRenderer) SupportedFormat() Format {
	return FormatYAML
}

func (r *YAMLRenderer) Render(w io.Writer, t *Table, _ Options) error {
	marshalled, err := yaml.Marshal(visibleSet(t))
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	_, err = w.Write(marshalled)
	return err
}
