// Package dataset provides a small column-oriented table for delimited
// customer files and the conversions into gonum feature matrices.
//
// Tables are values: every transformation returns a new *Table and leaves the
// receiver untouched. Column slices are shared between tables that did not
// modify them, so callers must not write into Floats or Strings directly.
package dataset

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns hold float64 values; missing cells are NaN.
	Numeric Kind = iota
	// Text columns hold raw strings.
	Text
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "float64"
	case Text:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed column. Exactly one of Floats and Strings is set,
// according to Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// NewNumericColumn creates a numeric column.
func NewNumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// NewTextColumn creates a text column.
func NewTextColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Text, Strings: values}
}

// Len returns the number of rows of the column.
func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Cell formats row i for display. Missing numeric values print as NaN.
func (c Column) Cell(i int) string {
	if c.Kind == Text {
		return c.Strings[i]
	}
	return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
}

// NonNull counts the cells that are not missing.
func (c Column) NonNull() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.Kind == Numeric && math.IsNaN(c.Floats[i]) {
			continue
		}
		if c.Kind == Text && c.Strings[i] == "" {
			continue
		}
		n++
	}
	return n
}

// Table is an ordered set of equally long columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a table from columns. Column names must be unique and non-empty
// and all columns must have the same length.
func New(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewSchemaError(fmt.Sprintf("#%d", i), "empty column name")
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewSchemaError(c.Name, "duplicate column name")
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errors.NewSchemaError(c.Name, fmt.Sprintf("has %d rows, expected %d", c.Len(), t.rows))
		}
		t.columns[i] = c
		t.index[c.Name] = i
	}
	return t, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, errors.NewSchemaError(name, "column not found")
	}
	return t.columns[i], nil
}

// Drop returns a table without the named columns. Every name must exist.
func (t *Table) Drop(names ...string) (*Table, error) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.Has(n) {
			return nil, errors.NewSchemaError(n, "column not found")
		}
		skip[n] = true
	}
	kept := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	return New(kept...)
}

// Select returns a table with the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// WithColumn returns a table where the column of the same name is replaced
// by c, or c is appended when no such column exists.
func (t *Table) WithColumn(c Column) (*Table, error) {
	cols := t.Columns()
	if i, ok := t.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Features drops the given columns and returns the remaining ones as a
// rows × features matrix together with the feature names. Every remaining
// column must be numeric and complete: a missing cell is a SchemaError.
func (t *Table) Features(drop ...string) (*mat.Dense, []string, error) {
	ft, err := t.Drop(drop...)
	if err != nil {
		return nil, nil, err
	}
	if len(ft.columns) == 0 {
		return nil, nil, errors.NewSchemaError("", "no feature columns left")
	}
	if ft.rows == 0 {
		return nil, nil, errors.NewModelError("Table.Features", "empty data", errors.ErrEmptyData)
	}

	X := mat.NewDense(ft.rows, len(ft.columns), nil)
	for j, c := range ft.columns {
		if c.Kind != Numeric {
			return nil, nil, errors.NewSchemaError(c.Name, "text column must be encoded before training")
		}
		for i, v := range c.Floats {
			if math.IsNaN(v) {
				return nil, nil, errors.NewSchemaError(c.Name, fmt.Sprintf("missing value at row %d", i))
			}
		}
		X.SetCol(j, c.Floats)
	}
	return X, ft.Names(), nil
}

// Labels returns the named column as strings. Numeric labels are formatted.
func (t *Table) Labels(name string) ([]string, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind == Text {
		out := make([]string, len(c.Strings))
		copy(out, c.Strings)
		return out, nil
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Cell(i)
	}
	return out, nil
}

// Head writes the first n rows as a console table.
func (t *Table) Head(w io.Writer, n int) {
	if n > t.rows {
		n = t.rows
	}
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader(append([]string{""}, t.Names()...))
	tw.SetBorder(false)
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(t.columns)+1)
		row = append(row, strconv.Itoa(i))
		for _, c := range t.columns {
			row = append(row, c.Cell(i))
		}
		tw.Append(row)
	}
	tw.Render()
}

// Info writes a per-column summary of non-null counts and kinds.
func (t *Table) Info(w io.Writer) {
	fmt.Fprintf(w, "%d entries, %d columns\n", t.rows, len(t.columns))
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"#", "Column", "Non-Null Count", "Dtype"})
	tw.SetBorder(false)
	for i, c := range t.columns {
		tw.Append([]string{
			strconv.Itoa(i),
			c.Name,
			fmt.Sprintf("%d non-null", c.NonNull()),
			c.Kind.String(),
		})
	}
	tw.Render()
}
