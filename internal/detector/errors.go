package detector

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigLoad indicates a configuration file that could not be read or is malformed.
	ErrConfigLoad = errors.New("detector: configuration load failed")

	// ErrReferentialIntegrity indicates a placement whose type is not in the catalog.
	ErrReferentialIntegrity = errors.New("detector: placement references unknown detector type")

	// ErrIndexOutOfRange indicates a placement index outside [0, N).
	ErrIndexOutOfRange = errors.New("detector: placement index out of range")

	// ErrNotValidated indicates a store used for construction before Validate succeeded.
	ErrNotValidated = errors.New("detector: configuration not validated")

	// ErrUnknownType indicates a lookup of a type name absent from the catalog.
	ErrUnknownType = errors.New("detector: unknown detector type")
)

// LoadError wraps a load failure with the file it came from.
// It matches both ErrConfigLoad and the underlying cause.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detector: load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("detector: load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfigLoad}
	}
	return []error{ErrConfigLoad, e.Err}
}

func loadErr(path, reason string, err error) error {
	return &LoadError{Path: path, Reason: reason, Err: err}
}

// PlacementError names the placement that broke referential integrity.
type PlacementError struct {
	Index     int
	Placement string
	Type      string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("detector: placement %d %q references unknown detector type %q", e.Index, e.Placement, e.Type)
}

func (e *PlacementError) Unwrap() error {
	return ErrReferentialIntegrity
}
