package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/nboxsim/internal/detector"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// LayoutSVG draws the x-y cross-section of the moderator box and the tubes
// placed in it, at pxPerMM pixels per millimetre. Each tube shows its outer
// wall and its gas volume.
func LayoutSVG(box detector.Box, placements []detector.Placement, types []detector.Type, pxPerMM float64) string {
	if box.X <= 0 || box.Y <= 0 || pxPerMM <= 0 {
		return ""
	}
	const margin = 10.0
	width := box.X*pxPerMM + 2*margin
	height := box.Y*pxPerMM + 2*margin
	toPx := func(x, y float64) (float64, float64) {
		return margin + (x+box.X/2)*pxPerMM, margin + (box.Y/2-y)*pxPerMM
	}

	byName := make(map[string]detector.Type, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	fmt.Fprintf(&sb, "<rect x=\"%.1f\" y=\"%.1f\" width=\"%.1f\" height=\"%.1f\" fill=\"#1a2a3a\" stroke=\"#4488aa\"/>\n",
		margin, margin, box.X*pxPerMM, box.Y*pxPerMM)
	for _, p := range placements {
		t, ok := byName[p.Type]
		if !ok {
			continue
		}
		pos := p.Position()
		cx, cy := toPx(pos.X, pos.Y)
		fmt.Fprintf(&sb, "<g><title>%s (%s)</title>\n", p.Name, p.Type)
		fmt.Fprintf(&sb, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"#aaaaaa\"/>\n", cx, cy, t.OuterRadius()*pxPerMM)
		fmt.Fprintf(&sb, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"#ffcc00\"/>\n", cx, cy, t.InnerRadius()*pxPerMM)
		sb.WriteString("</g>\n")
	}
	sb.WriteString("</svg>")
	return sb.String()
}

// HistogramToSVG draws bin counts as a step outline scaled to the tallest bin.
func HistogramToSVG(counts []float64, width, height int, strokeColor string) string {
	if len(counts) == 0 {
		return ""
	}
	top := 0.0
	for _, c := range counts {
		top = math.Max(top, c)
	}
	if top == 0 {
		top = 1
	}
	w, h := float64(width), float64(height)
	binW := w / float64(len(counts))

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, w, h, w, h)
	fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"M0.0,%.1f", strokeColor, h)
	for i, c := range counts {
		y := h - c/top*h*0.95
		fmt.Fprintf(&sb, " L%.1f,%.1f L%.1f,%.1f", float64(i)*binW, y, float64(i+1)*binW, y)
	}
	fmt.Fprintf(&sb, " L%.1f,%.1f\"/>\n</svg>", w, h)
	return sb.String()
}
