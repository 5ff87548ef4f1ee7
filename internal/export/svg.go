package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/mercurius/internal/dynamo"
)

var palette = []string{"#ffd75f", "#5fd7ff", "#ff5faf", "#87ff5f", "#af87ff", "#ff875f", "#5fffd7"}

type Point struct{ X, Y float64 }

// Tracks collects the x-y path of every body across snapshots, keyed by ID.
// The returned ID order follows first appearance.
func Tracks(snapshots [][]dynamo.Particle) (map[int][]Point, []int) {
	tracks := make(map[int][]Point)
	var order []int
	for _, snap := range snapshots {
		for _, p := range snap {
			if _, ok := tracks[p.ID]; !ok {
				order = append(order, p.ID)
			}
			tracks[p.ID] = append(tracks[p.ID], Point{p.Pos[0], p.Pos[1]})
		}
	}
	return tracks, order
}

// OrbitsSVG draws the projected orbit of every body on the x-y plane with
// a shared, aspect-preserving scale.
func OrbitsSVG(snapshots [][]dynamo.Particle, width, height int) string {
	tracks, order := Tracks(snapshots)
	if len(order) == 0 {
		return ""
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, pts := range tracks {
		for _, p := range pts {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	span *= 1.2
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	scale := math.Min(float64(width), float64(height)) / span

	project := func(p Point) (float64, float64) {
		return float64(width)/2 + (p.X-cx)*scale, float64(height)/2 - (p.Y-cy)*scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for k, id := range order {
		pts := tracks[id]
		color := palette[k%len(palette)]

		if len(pts) > 1 {
			fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.2" d="M`, color)
			for i, p := range pts {
				x, y := project(p)
				if i == 0 {
					fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
				} else {
					fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
				}
			}
			sb.WriteString("\"/>\n")
		}

		x, y := project(pts[len(pts)-1])
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"><title>body %d</title></circle>
`, x, y, color, id)
	}

	sb.WriteString("</svg>")
	return sb.String()
}
