package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

type csvTable struct {
	row
	f   *os.File
	buf *bufio.Writer
	w   *csv.Writer
	rec []string
}

func openCSVTable(path string, s Schema) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)

	header := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return &csvTable{row: newRow(s), f: f, buf: buf, w: w, rec: make([]string, len(s.Columns))}, nil
}

func (t *csvTable) Commit() error {
	if err := t.ready(); err != nil {
		return err
	}
	for i, c := range t.schema.Columns {
		switch c.Kind {
		case Int32:
			t.rec[i] = strconv.FormatInt(int64(t.ints[i]), 10)
		case Float64:
			t.rec[i] = strconv.FormatFloat(t.floats[i], 'g', -1, 64)
		case String:
			t.rec[i] = t.strs[i]
		}
	}
	if err := t.w.Write(t.rec); err != nil {
		return err
	}
	t.rows++
	return nil
}

func (t *csvTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.w.Flush()
	err := t.w.Error()
	if ferr := t.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}
