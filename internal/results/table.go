package results

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ExpandThreshold is the length above which a cell is shown truncated and
// can be expanded.
const ExpandThreshold = 50

const ellipsis = "…"

type Cell struct {
	Value string
}

// Tooltip is the full cell content.
func (c Cell) Tooltip() string {
	return c.Value
}

func (c Cell) Expandable() bool {
	return utf8.RuneCountInString(c.Value) > ExpandThreshold
}

// Display returns the text shown for the cell: the full value when expanded
// or short enough, otherwise the first ExpandThreshold runes and an ellipsis.
func (c Cell) Display(expanded bool) string {
	if expanded || !c.Expandable() {
		return c.Value
	}
	return string([]rune(c.Value)[:ExpandThreshold]) + ellipsis
}

type Row struct {
	Cells  []Cell
	Hidden bool
}

// text is the lower-cased, space-joined cell content used for filtering.
func (r *Row) text() string {
	parts := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		parts[i] = strings.ToLower(c.Value)
	}
	return strings.Join(parts, " ")
}

// Table is a sortable, filterable view over a ResultSet.
type Table struct {
	columns []string
	rows    []*Row
	filter  string
}

// NewTable builds the table from scratch; missing cells are empty.
func NewTable(rs *ResultSet) *Table {
	t := &Table{
		columns: append([]string(nil), rs.Columns...),
		rows:    make([]*Row, 0, len(rs.Rows)),
	}
	for _, data := range rs.Rows {
		row := &Row{Cells: make([]Cell, len(t.columns))}
		for i, col := range t.columns {
			row.Cells[i] = Cell{Value: data[col]}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func (t *Table) Columns() []string {
	return t.columns
}

// Rows returns every row in display order, hidden ones included.
func (t *Table) Rows() []*Row {
	return t.rows
}

func (t *Table) Visible() []*Row {
	visible := make([]*Row, 0, len(t.rows))
	for _, r := range t.rows {
		if !r.Hidden {
			visible = append(visible, r)
		}
	}
	return visible
}

func (t *Table) ColumnIndex(column string) (int, error) {
	for i, c := range t.columns {
		if c == column {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown column %q", column)
}

func (t *Table) SortBy(column string) error {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return err
	}
	t.SortByIndex(idx)
	return nil
}

// SortByIndex orders rows ascending by column idx. The column compares
// numerically when every visible cell is a number or empty (empty sorting
// first), otherwise as plain strings. Equal rows keep their order.
func (t *Table) SortByIndex(idx int) {
	if idx < 0 || idx >= len(t.columns) {
		return
	}

	value := func(r *Row) string {
		return strings.TrimSpace(r.Cells[idx].Value)
	}

	if t.isNumeric(idx) {
		sort.SliceStable(t.rows, func(i, j int) bool {
			return numericKey(value(t.rows[i])) < numericKey(value(t.rows[j]))
		})
		return
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		return value(t.rows[i]) < value(t.rows[j])
	})
}

func (t *Table) isNumeric(idx int) bool {
	for _, r := range t.rows {
		if r.Hidden {
			continue
		}
		v := strings.TrimSpace(r.Cells[idx].Value)
		if v == "" {
			continue
		}
		if _, ok := parseNumber(v); !ok {
			return false
		}
	}
	return true
}

// numericKey maps empty to -Inf. Values that do not parse can only come from
// hidden rows and sort after every number.
func numericKey(v string) float64 {
	if v == "" {
		return math.Inf(-1)
	}
	f, ok := parseNumber(v)
	if !ok {
		return math.Inf(1)
	}
	return f
}

func parseNumber(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Filter hides every row whose cell text does not contain term, ignoring
// case. An empty term shows all rows again.
func (t *Table) Filter(term string) {
	t.filter = term
	needle := strings.ToLower(term)
	for _, r := range t.rows {
		r.Hidden = needle != "" && !strings.Contains(r.text(), needle)
	}
}

func (t *Table) FilterTerm() string {
	return t.filter
}

// Records returns the header followed by the visible rows as plain strings.
func (t *Table) Records() [][]string {
	visible := t.Visible()
	records := make([][]string, 0, len(visible)+1)
	records = append(records, append([]string(nil), t.columns...))
	for _, r := range visible {
		rec := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			rec[i] = c.Value
		}
		records = append(records, rec)
	}
	return records
}
