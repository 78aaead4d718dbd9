package contour

import "cellcurvature/internal/models"

// Moore neighbourhood in clockwise order (image coordinates, y down),
// starting west: W, NW, N, NE, E, SE, S, SW.
var (
	ndx = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	ndy = [8]int{0, -1, -1, -1, 0, 1, 1, 1}
)

func direction(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// traceBoundary follows the outer boundary of the component with the given
// label using Moore-neighbour tracing. It starts at the top-most, left-most
// pixel of the component, whose west neighbour is background by construction,
// and stops when the first move from the start pixel is about to repeat.
// Returned points are integer pixel coordinates with consecutive duplicates
// removed.
func traceBoundary(labels []int, w, h, label int) models.Contour {
	is := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	sx, sy := -1, -1
	for i, l := range labels {
		if l == label {
			sx, sy = i%w, i/w
			break
		}
	}
	if sx < 0 {
		return nil
	}

	pts := []models.Point{models.Pt(float64(sx), float64(sy))}
	cx, cy := sx, sy
	back := 0 // direction from current pixel to the backtrack pixel
	firstX, firstY := -1, -1
	maxSteps := 4*w*h + 8

	for step := 0; step < maxSteps; step++ {
		nx, ny, nback, found := nextBoundaryPixel(is, cx, cy, back)
		if !found {
			// isolated pixel
			break
		}
		if cx == sx && cy == sy {
			if firstX == nx && firstY == ny {
				break
			}
			if firstX < 0 {
				firstX, firstY = nx, ny
			}
		}
		cx, cy, back = nx, ny, nback
		pts = append(pts, models.Pt(float64(cx), float64(cy)))
	}

	return models.Dedupe(pts)
}

// nextBoundaryPixel scans the neighbours of (cx, cy) clockwise starting just
// after the backtrack direction. It returns the first foreground neighbour and
// the direction from it to the last background pixel examined.
func nextBoundaryPixel(is func(x, y int) bool, cx, cy, back int) (int, int, int, bool) {
	for k := range 8 {
		d := (back + 1 + k) % 8
		tx, ty := cx+ndx[d], cy+ndy[d]
		if !is(tx, ty) {
			continue
		}
		prev := (back + k) % 8
		px, py := cx+ndx[prev], cy+ndy[prev]
		return tx, ty, direction(px-tx, py-ty), true
	}
	return 0, 0, back, false
}
