package graph

import "math"

// layoutPadding is reserved on every side so nodes never touch the canvas edge.
const layoutPadding = 60

// Point is a 2-D canvas position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions returns deterministic canvas positions for n nodes. The same
// n/width/height always yields bit-identical coordinates (no randomness):
//
//   - n == 1: single node at the canvas center.
//   - n == 2: nodes at 25% and 75% of the usable width, vertical center.
//   - 3 <= n <= 4: two-column grid with ceil(n/2) rows, each node centered
//     in its grid cell within the padded usable area.
//   - n >= 5: nodes evenly spaced on a circle of radius
//     min(usableW, usableH)/2.5 centered on the canvas, at angle 2π·i/n.
func Positions(n int, width, height float64) []Point {
	if n <= 0 {
		return nil
	}
	usableW := width - 2*layoutPadding
	usableH := height - 2*layoutPadding

	switch {
	case n == 1:
		return []Point{{X: width / 2, Y: height / 2}}
	case n == 2:
		y := height / 2
		return []Point{
			{X: layoutPadding + 0.25*usableW, Y: y},
			{X: layoutPadding + 0.75*usableW, Y: y},
		}
	case n <= 4:
		rows := (n + 1) / 2
		cellW := usableW / 2
		cellH := usableH / float64(rows)
		points := make([]Point, n)
		for i := 0; i < n; i++ {
			row := i / 2
			col := i % 2
			points[i] = Point{
				X: layoutPadding + (float64(col)+0.5)*cellW,
				Y: layoutPadding + (float64(row)+0.5)*cellH,
			}
		}
		return points
	default:
		radius := math.Min(usableW, usableH) / 2.5
		cx, cy := width/2, height/2
		points := make([]Point, n)
		for i := 0; i < n; i++ {
			angle := 2 * math.Pi * float64(i) / float64(n)
			points[i] = Point{
				X: cx + radius*math.Cos(angle),
				Y: cy + radius*math.Sin(angle),
			}
		}
		return points
	}
}
