// Package export renders body sets to standalone SVG documents.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
)

// Scene is what SceneSVG draws: bodies as dots scaled by mass, optional
// quadtree cells under them and one body's track over them.
type Scene struct {
	Title  string
	Bodies []*body.Body
	Cells  []barneshut.Cell
	Track  [][2]float64
	Width  int
	Height int
}

const (
	defaultSize = 800
	minRadius   = 0.8
	maxRadius   = 3.0
)

type frame struct {
	minX, minY float64
	scale      float64
	w, h       float64
}

// fit places the bodies and track on the page with equal axis scales.
func fit(sc Scene, w, h float64) frame {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, b := range sc.Bodies {
		grow(b.PX, b.PY)
	}
	for _, p := range sc.Track {
		grow(p[0], p[1])
	}
	if math.IsInf(minX, 1) {
		minX, maxX, minY, maxY = -1, 1, -1, 1
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	span *= 1.1
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return frame{minX: cx - span/2, minY: cy - span/2, scale: math.Min(w, h) / span, w: w, h: h}
}

func (f frame) point(x, y float64) (float64, float64) {
	return (x - f.minX) * f.scale, f.h - (y-f.minY)*f.scale
}

// SceneSVG writes sc as an SVG document.
func SceneSVG(w io.Writer, sc Scene) error {
	width, height := sc.Width, sc.Height
	if width <= 0 {
		width = defaultSize
	}
	if height <= 0 {
		height = defaultSize
	}
	f := fit(sc, float64(width), float64(height))

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
	if sc.Title != "" {
		fmt.Fprintf(bw, "<title>%s</title>\n", escape(sc.Title))
	}

	if len(sc.Cells) > 0 {
		bw.WriteString(`<g fill="none" stroke="#334455" stroke-width="0.5">` + "\n")
		for _, c := range sc.Cells {
			x0, y1 := f.point(c.X0, c.Y0)
			x1, y0 := f.point(c.X0+c.Side, c.Y0+c.Side)
			fmt.Fprintf(bw, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>`+"\n", x0, y0, x1-x0, y1-y0)
		}
		bw.WriteString("</g>\n")
	}

	var maxMass float64
	for _, b := range sc.Bodies {
		maxMass = math.Max(maxMass, b.Mass)
	}
	bw.WriteString(`<g fill="#e0e0ff">` + "\n")
	for _, b := range sc.Bodies {
		x, y := f.point(b.PX, b.PY)
		r := minRadius
		if maxMass > 0 {
			r += (maxRadius - minRadius) * math.Sqrt(b.Mass/maxMass)
		}
		fmt.Fprintf(bw, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n", x, y, r)
	}
	bw.WriteString("</g>\n")

	if len(sc.Track) > 1 {
		bw.WriteString(`<path fill="none" stroke="#00ff88" stroke-width="1.5" d="`)
		for i, p := range sc.Track {
			x, y := f.point(p[0], p[1])
			if i == 0 {
				fmt.Fprintf(bw, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
			}
		}
		bw.WriteString(`"/>` + "\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// WriteFile renders sc to path.
func WriteFile(path string, sc Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := SceneSVG(f, sc); err != nil {
		return err
	}
	return f.Close()
}

func escape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '&':
			out = append(out, []rune("&amp;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
