// Package table is a small string-celled table with the relational operations the
// report pipeline needs: rename, select, drop, join and sort.
package table

import (
	"sort"
	"strings"
)

// Row maps column name to cell. A missing key is a null cell.
type Row map[string]string

// Get returns the cell and whether it is non-null
func (r Row) Get(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Table is an ordered set of columns and rows
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the table has a column
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Append adds a row. Cells for unknown columns add the column.
func (t *Table) Append(row Row) {
	for k := range row {
		if !t.Has(k) {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, row)
}

// AddColumn adds a column if missing, without touching rows
func (t *Table) AddColumn(col string) {
	if !t.Has(col) {
		t.Columns = append(t.Columns, col)
	}
}

// Column returns the cells of one column; null cells are empty strings
func (t *Table) Column(col string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// Copy returns a deep copy
func (t *Table) Copy() *Table {
	out := New(t.Columns...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = copyRow(r)
	}
	return out
}

func copyRow(r Row) Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Rename returns a copy with columns renamed. Names absent from the table are ignored.
func (t *Table) Rename(names map[string]string) *Table {
	out := New()
	for _, c := range t.Columns {
		if n, ok := names[c]; ok {
			c = n
		}
		out.AddColumn(c)
	}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			if n, ok := names[k]; ok {
				k = n
			}
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Drop returns a copy without the given columns
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}

	var keep []string
	for _, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// Select returns a copy with only the given columns, in that order. Unknown columns are skipped.
func (t *Table) Select(cols ...string) *Table {
	var present []string
	for _, c := range cols {
		if t.Has(c) {
			present = append(present, c)
		}
	}

	out := New(present...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(present))
		for _, c := range present {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.Rows[i] = nr
	}
	return out
}

// Filter returns a copy with the rows for which keep is true
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.Columns...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, copyRow(r))
		}
	}
	return out
}

// Index returns the first row whose col equals value
func (t *Table) Index(col, value string) (Row, bool) {
	for _, r := range t.Rows {
		if v, ok := r[col]; ok && v == value {
			return r, true
		}
	}
	return nil, false
}

// SortFunc stably sorts the rows in place
func (t *Table) SortFunc(less func(a, b Row) bool) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return less(t.Rows[i], t.Rows[j])
	})
}

// SortBy stably sorts the rows in place by the string value of col. Nulls sort last.
func (t *Table) SortBy(col string) {
	t.SortFunc(func(a, b Row) bool {
		av, aok := a[col]
		bv, bok := b[col]
		if aok != bok {
			return aok
		}
		return av < bv
	})
}

// JoinKind selects which unmatched rows a join keeps
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	OuterJoin
)

const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
	keySep      = "\x1f"
	nullKey     = "\x00"
)

// Join combines left and right on the key columns. Left rows keep their order and matched
// right rows follow each left row in right order; an outer join then appends the unmatched
// right rows. Null keys match each other. Non-key columns present on both sides get
// _x and _y suffixes.
func Join(left, right *Table, on []string, kind JoinKind) *Table {
	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}

	shared := make(map[string]bool)
	for _, c := range right.Columns {
		if !isKey[c] && left.Has(c) {
			shared[c] = true
		}
	}

	out := New()
	for _, c := range left.Columns {
		if shared[c] {
			out.AddColumn(c + leftSuffix)
		} else {
			out.AddColumn(c)
		}
	}
	for _, c := range on {
		out.AddColumn(c)
	}
	for _, c := range right.Columns {
		switch {
		case isKey[c]:
		case shared[c]:
			out.AddColumn(c + rightSuffix)
		default:
			out.AddColumn(c)
		}
	}

	rightIdx := make(map[string][]int)
	for i, r := range right.Rows {
		k := joinKey(r, on)
		rightIdx[k] = append(rightIdx[k], i)
	}
	matched := make([]bool, len(right.Rows))

	for _, l := range left.Rows {
		hits := rightIdx[joinKey(l, on)]
		if len(hits) == 0 {
			if kind != InnerJoin {
				out.Rows = append(out.Rows, mergeRows(l, nil, isKey, shared))
			}
			continue
		}
		for _, i := range hits {
			matched[i] = true
			out.Rows = append(out.Rows, mergeRows(l, right.Rows[i], isKey, shared))
		}
	}

	if kind == OuterJoin {
		for i, r := range right.Rows {
			if !matched[i] {
				out.Rows = append(out.Rows, mergeRows(nil, r, isKey, shared))
			}
		}
	}
	return out
}

func joinKey(r Row, on []string) string {
	parts := make([]string, len(on))
	for i, c := range on {
		if v, ok := r[c]; ok {
			parts[i] = v
		} else {
			parts[i] = nullKey
		}
	}
	return strings.Join(parts, keySep)
}

func mergeRows(l, r Row, isKey, shared map[string]bool) Row {
	out := make(Row, len(l)+len(r))
	for k, v := range l {
		if shared[k] {
			k += leftSuffix
		}
		out[k] = v
	}
	for k, v := range r {
		switch {
		case isKey[k]:
			if _, ok := out[k]; ok {
				continue
			}
		case shared[k]:
			k += rightSuffix
		}
		out[k] = v
	}
	return out
}
