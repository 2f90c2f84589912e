package export

import (
	"strings"
	"testing"

	"github.com/san-kum/nboxsim/internal/detector"
)

func TestLayoutSVG(t *testing.T) {
	box := detector.Box{X: 500, Y: 400, Z: 1000}
	types := []detector.Type{{Name: "He3", Diameter: 25.4, Length: 1000, WallThickness: 0.8, Pressure: 405.3}}
	placements := []detector.Placement{
		{Name: "Det0", Type: "He3"},
		{Name: "Det1", Type: "He3", R: 100},
		{Name: "Ghost", Type: "missing"},
	}

	svg := LayoutSVG(box, placements, types, 1)
	if n := strings.Count(svg, "<circle"); n != 4 {
		t.Errorf("expected 2 circles per known tube, got %d", n)
	}
	if !strings.Contains(svg, "<title>Det1 (He3)</title>") {
		t.Error("expected tube title")
	}
	// Det0 sits at the box centre
	if !strings.Contains(svg, `cx="260.00" cy="210.00" r="12.70"`) {
		t.Errorf("expected Det0 outer wall at the centre\n%s", svg)
	}

	if LayoutSVG(detector.Box{}, nil, nil, 1) != "" {
		t.Error("expected empty output for an empty box")
	}
}

func TestHistogramToSVG(t *testing.T) {
	if HistogramToSVG(nil, 100, 50, "#fff") != "" {
		t.Error("expected empty output without bins")
	}
	svg := HistogramToSVG([]float64{1, 2, 0, 4}, 100, 50, "#00ff00")
	if !strings.Contains(svg, `stroke="#00ff00"`) {
		t.Error("expected stroke colour")
	}
	if strings.Count(svg, " L") != 9 {
		t.Errorf("expected 9 segments, got %d", strings.Count(svg, " L"))
	}
}
