package report

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/twpayne/go-geom"

	"cvrpplan/internal/opt"
)

const (
	svgWidth  = 1000
	svgHeight = 800
	svgMargin = 40
)

// tab20 colours, cycled across trips.
var palette = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c", "#98df8a", "#d62728", "#ff9896",
	"#9467bd", "#c5b0d5", "#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f", "#c7c7c7",
	"#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// Bounds is the bounding box of all points.
func Bounds(points []opt.Point) *geom.Bounds {
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewMultiPointFlat(geom.XY, flat).Bounds()
}

type projection struct {
	minX, maxY, scale float64
}

func newProjection(b *geom.Bounds) projection {
	w, h := b.Max(0)-b.Min(0), b.Max(1)-b.Min(1)
	scale := 1.0
	if w > 0 || h > 0 {
		sx := (svgWidth - 2*svgMargin) / max(w, 1e-9)
		sy := (svgHeight - 2*svgMargin) / max(h, 1e-9)
		scale = min(sx, sy)
	}
	return projection{minX: b.Min(0), maxY: b.Max(1), scale: scale}
}

func (p projection) xy(pt opt.Point) (float64, float64) {
	return svgMargin + (pt.X-p.minX)*p.scale, svgMargin + (p.maxY-pt.Y)*p.scale
}

// WriteSVG plots customers in blue, the depot as a red square and each trip
// as a coloured polyline. North is up.
func WriteSVG(w io.Writer, title string, points []opt.Point, sol opt.Solution) error {
	if len(points) == 0 {
		return fmt.Errorf("report: no points to plot")
	}
	proj := newProjection(Bounds(points))
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		svgWidth, svgHeight, svgWidth, svgHeight)
	bw.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")
	bw.WriteString(`<text x="20" y="24" font-family="sans-serif" font-size="16">`)
	if err := xml.EscapeText(bw, []byte(title)); err != nil {
		return err
	}
	bw.WriteString("</text>\n")

	for i, rt := range sol.Routes {
		var pts strings.Builder
		for j, s := range rt.Stops {
			if s < 0 || s >= len(points) {
				return fmt.Errorf("report: route %d visits unknown point %d", i, s)
			}
			x, y := proj.xy(points[s])
			if j > 0 {
				pts.WriteByte(' ')
			}
			fmt.Fprintf(&pts, "%.2f,%.2f", x, y)
		}
		fmt.Fprintf(bw, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"><title>Trip %d</title></polyline>`+"\n",
			palette[i%len(palette)], pts.String(), i+1)
	}
	for _, p := range points[1:] {
		x, y := proj.xy(p)
		fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="3" fill="blue"/>`+"\n", x, y)
	}
	x, y := proj.xy(points[0])
	fmt.Fprintf(bw, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="red"/>`+"\n", x-5, y-5)
	bw.WriteString("</svg>\n")
	return bw.Flush()
}
