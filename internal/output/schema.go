// Package output writes per-worker tabular event data.
//
// Each worker opens its own File and owns it for the whole run; files are
// never shared or merged here. A File holds one or more tables (Writer), each
// with a fixed Schema. Values are set column by column and committed as a row.
//
// Backends: ROOT trees (go-hep groot), Arrow IPC files and CSV.
package output

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat indicates an output format name that has no backend.
var ErrUnknownFormat = errors.New("output: unknown format")

type ColumnKind int

const (
	Int32 ColumnKind = iota
	Float64
	String
)

func (k ColumnKind) String() string {
	switch k {
	case Int32:
		return "int"
	case Float64:
		return "double"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

type Column struct {
	Name string
	Kind ColumnKind
}

// Schema names a table and fixes its column order.
type Schema struct {
	Name    string
	Title   string
	Columns []Column
}

// Hit table columns.
const (
	ColEventID = iota
	ColDetectorID
	ColDetectorName
	ColEdep
	ColTime
)

var HitSchema = Schema{
	Name:  "NBox",
	Title: "Energy Deposition",
	Columns: []Column{
		{"EventID", Int32},
		{"DetectorID", Int32},
		{"DetectorName", String},
		{"Edep_keV", Float64},
		{"Time_ns", Float64},
	},
}

// Flux table columns.
const (
	ColFluxEventID = iota
	ColFluxX
	ColFluxY
	ColFluxZ
	ColFluxEnergy
	ColFluxStepLength
)

var FluxSchema = Schema{
	Name:  "FluxMap",
	Title: "Thermal neutron flux",
	Columns: []Column{
		{"EventID", Int32},
		{"X_mm", Float64},
		{"Y_mm", Float64},
		{"Z_mm", Float64},
		{"Energy_eV", Float64},
		{"StepLength_mm", Float64},
	},
}

type Format string

const (
	FormatROOT  Format = "root"
	FormatArrow Format = "arrow"
	FormatCSV   Format = "csv"
)

// Formats lists the supported backends.
func Formats() []Format { return []Format{FormatROOT, FormatArrow, FormatCSV} }

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatROOT, FormatArrow, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want root, arrow or csv)", ErrUnknownFormat, s)
	}
}

// Writer appends rows to one table.
type Writer interface {
	SetInt(col int, v int32)
	SetFloat(col int, v float64)
	SetString(col int, v string)
	// Commit appends the current values as a row.
	Commit() error
	Rows() int64
	Close() error
}

// File is one worker's output container.
type File interface {
	Table(s Schema) (Writer, error)
	// Paths lists the files written so far.
	Paths() []string
	Close() error
}

// Open creates an output container at base, a path without extension.
func Open(format Format, base string) (File, error) {
	switch format {
	case FormatROOT:
		return openROOT(base)
	case FormatArrow:
		return &splitFile{base: base, ext: ".arrow", open: openArrowTable}, nil
	case FormatCSV:
		return &splitFile{base: base, ext: ".csv", open: openCSVTable}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
