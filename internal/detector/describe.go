package detector

import (
	"fmt"
	"io"
	"strings"
)

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// Describe writes a human-readable summary of the store.
func (s *Store) Describe(w io.Writer) {
	var b strings.Builder
	b.WriteString("Configuration\n")
	fmt.Fprintf(&b, "  detector types loaded: %s\n", yesNo(s.typesLoaded))
	fmt.Fprintf(&b, "  geometry loaded:       %s\n", yesNo(s.geometryLoaded))
	fmt.Fprintf(&b, "  source loaded:         %s\n", yesNo(s.sourceLoaded))
	fmt.Fprintf(&b, "  validated:             %s\n", yesNo(s.validated))

	if s.typesLoaded {
		b.WriteString("\nDetector types:\n")
		for _, t := range s.types {
			fmt.Fprintf(&b, "  - %s: D=%gmm L=%gmm Wall=%gmm P=%gkPa\n",
				t.Name, t.Diameter, t.Length, t.WallThickness, t.Pressure)
		}
	}

	if s.geometryLoaded {
		fmt.Fprintf(&b, "\nBox: (%g, %g, %g) mm\n", s.box.X, s.box.Y, s.box.Z)
		b.WriteString("Placements:\n")
		for i, p := range s.placements {
			fmt.Fprintf(&b, "  [%d] %s (type %s) R=%gmm Phi=%gdeg\n", i, p.Name, p.Type, p.R, p.Phi)
		}
	}

	src := s.Source()
	fmt.Fprintf(&b, "\nSource: %s", src.Kind())
	switch {
	case s.histogram != nil:
		lo, hi := s.histogram.Range()
		fmt.Fprintf(&b, " %q, %d bins on [%g, %g] MeV", s.histogram.Name(), s.histogram.NumBins(), lo, hi)
	case s.function != nil:
		lo, hi := s.function.Range()
		fmt.Fprintf(&b, " %q = %s on [%g, %g] MeV", s.function.Name(), s.function.Formula(), lo, hi)
	case s.monoSet:
		fmt.Fprintf(&b, " %g MeV", s.mono)
	}
	b.WriteString("\n")

	io.WriteString(w, b.String())
}
