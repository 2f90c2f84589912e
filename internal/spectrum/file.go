package spectrum

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook/rootcnv"
	"gopkg.in/yaml.v3"
)

// ReadObjects returns every recognised spectrum object in the file at path.
// ROOT files contribute their TH1 histograms. YAML and JSON files list spectra
// under a top-level "spectra" key. Objects of other kinds are skipped; picking
// exactly one is the caller's concern.
func ReadObjects(path string) ([]Object, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".root":
		return readROOT(path)
	case ".yaml", ".yml", ".json":
		return readDeclarative(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

func readROOT(path string) ([]Object, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spectrum: open %s: %w", path, err)
	}
	defer f.Close()

	var objs []Object
	for _, k := range f.Keys() {
		class := k.ClassName()
		switch {
		case strings.HasPrefix(class, "TH1"):
			v, err := k.Object()
			if err != nil {
				return nil, fmt.Errorf("spectrum: read %s/%s: %w", path, k.Name(), err)
			}
			h, ok := v.(rhist.H1)
			if !ok {
				return nil, fmt.Errorf("%w: %s/%s is %T", ErrUnsupported, path, k.Name(), v)
			}
			t, err := tableFromH1(k.Name(), h)
			if err != nil {
				return nil, err
			}
			objs = append(objs, t)
		case strings.HasPrefix(class, "TF1"):
			return nil, fmt.Errorf("%w: %s/%s is a %s; describe parametric spectra in a YAML source file",
				ErrUnsupported, path, k.Name(), class)
		}
	}
	return objs, nil
}

func tableFromH1(name string, h rhist.H1) (*Table, error) {
	hh := rootcnv.H1D(h)
	bins := hh.Binning.Bins
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: histogram %q has no bins", ErrEmptySpectrum, name)
	}
	edges := make([]float64, len(bins)+1)
	contents := make([]float64, len(bins))
	for i, b := range bins {
		edges[i] = b.XMin()
		contents[i] = b.SumW()
	}
	edges[len(bins)] = bins[len(bins)-1].XMax()
	return NewTable(name, edges, contents)
}

type spectrumFile struct {
	Spectra []spectrumDoc `yaml:"spectra"`
}

type spectrumDoc struct {
	Name       string    `yaml:"name"`
	Kind       string    `yaml:"kind"`
	Edges      []float64 `yaml:"edges"`
	Contents   []float64 `yaml:"contents"`
	Formula    string    `yaml:"formula"`
	Parameters []float64 `yaml:"parameters"`
	XMin       float64   `yaml:"xmin"`
	XMax       float64   `yaml:"xmax"`
	Npx        int       `yaml:"npx"`
}

func readDeclarative(path string) ([]Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spectrum: read %s: %w", path, err)
	}
	var doc spectrumFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("spectrum: parse %s: %w", path, err)
	}

	var objs []Object
	for i, s := range doc.Spectra {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("spectrum%d", i)
		}
		switch strings.ToLower(s.Kind) {
		case "histogram", "table", "th1", "th1d", "th1f":
			var (
				t   *Table
				err error
			)
			if len(s.Edges) > 0 {
				t, err = NewTable(name, s.Edges, s.Contents)
			} else {
				t, err = UniformTable(name, s.XMin, s.XMax, s.Contents)
			}
			if err != nil {
				return nil, err
			}
			objs = append(objs, t)
		case "function", "tf1":
			fn, err := NewFunction(name, s.Formula, s.Parameters, s.XMin, s.XMax, s.Npx)
			if err != nil {
				return nil, err
			}
			objs = append(objs, fn)
		}
	}
	return objs, nil
}
