package output

import (
	"fmt"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// rootFile holds every table as a TTree in one .root file.
type rootFile struct {
	path   string
	f      *riofs.File
	tables []*rootTable
}

func openROOT(base string) (*rootFile, error) {
	path := base + ".root"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := groot.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return &rootFile{path: path, f: f}, nil
}

func (rf *rootFile) Table(s Schema) (Writer, error) {
	t := &rootTable{row: newRow(s)}
	vars := make([]rtree.WriteVar, len(s.Columns))
	for i, c := range s.Columns {
		vars[i] = rtree.WriteVar{Name: c.Name}
		switch c.Kind {
		case Int32:
			vars[i].Value = &t.ints[i]
		case Float64:
			vars[i].Value = &t.floats[i]
		case String:
			vars[i].Value = &t.strs[i]
		}
	}
	w, err := rtree.NewWriter(rf.f, s.Name, vars, rtree.WithTitle(s.Title))
	if err != nil {
		return nil, fmt.Errorf("output: tree %s in %s: %w", s.Name, rf.path, err)
	}
	t.w = w
	rf.tables = append(rf.tables, t)
	return t, nil
}

func (rf *rootFile) Paths() []string { return []string{rf.path} }

// Close flushes every tree, then the file.
func (rf *rootFile) Close() error {
	var first error
	for _, t := range rf.tables {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	rf.tables = nil
	if rf.f != nil {
		if err := rf.f.Close(); err != nil && first == nil {
			first = fmt.Errorf("output: close %s: %w", rf.path, err)
		}
		rf.f = nil
	}
	return first
}

type rootTable struct {
	row
	w rtree.Writer
}

func (t *rootTable) Commit() error {
	if err := t.ready(); err != nil {
		return err
	}
	if _, err := t.w.Write(); err != nil {
		return fmt.Errorf("output: %s: write row: %w", t.schema.Name, err)
	}
	t.rows++
	return nil
}

func (t *rootTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.w.Close()
}
