package output

import (
	"fmt"
	"os"
	"path/filepath"
)

// row buffers the values of the row being assembled. Storage is indexed by
// column so backends can bind stable pointers to it.
type row struct {
	schema Schema
	ints   []int32
	floats []float64
	strs   []string
	err    error
	rows   int64
	closed bool
}

func newRow(s Schema) row {
	n := len(s.Columns)
	return row{
		schema: s,
		ints:   make([]int32, n),
		floats: make([]float64, n),
		strs:   make([]string, n),
	}
}

func (r *row) check(col int, kind ColumnKind) bool {
	if col < 0 || col >= len(r.schema.Columns) {
		r.fail(fmt.Errorf("output: %s: column %d out of range", r.schema.Name, col))
		return false
	}
	if got := r.schema.Columns[col].Kind; got != kind {
		r.fail(fmt.Errorf("output: %s: column %q is %s, set as %s", r.schema.Name, r.schema.Columns[col].Name, got, kind))
		return false
	}
	return true
}

func (r *row) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *row) SetInt(col int, v int32) {
	if r.check(col, Int32) {
		r.ints[col] = v
	}
}

func (r *row) SetFloat(col int, v float64) {
	if r.check(col, Float64) {
		r.floats[col] = v
	}
}

func (r *row) SetString(col int, v string) {
	if r.check(col, String) {
		r.strs[col] = v
	}
}

func (r *row) Rows() int64 { return r.rows }

// ready reports a pending setter error, once.
func (r *row) ready() error {
	if r.closed {
		return fmt.Errorf("output: %s: commit after close", r.schema.Name)
	}
	err := r.err
	r.err = nil
	return err
}

// splitFile writes each table to its own file, <base>_<table><ext>.
type splitFile struct {
	base   string
	ext    string
	open   func(path string, s Schema) (Writer, error)
	tables []Writer
	paths  []string
}

func (f *splitFile) Table(s Schema) (Writer, error) {
	path := f.base + "_" + s.Name + f.ext
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	w, err := f.open(path, s)
	if err != nil {
		return nil, err
	}
	f.tables = append(f.tables, w)
	f.paths = append(f.paths, path)
	return w, nil
}

func (f *splitFile) Paths() []string { return append([]string(nil), f.paths...) }

func (f *splitFile) Close() error {
	var first error
	for _, w := range f.tables {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.tables = nil
	return first
}
