package contour

import "cellcurvature/internal/models"

// unionFind is a disjoint-set forest over provisional labels.
type unionFind struct {
	parent []int
}

func (u *unionFind) add() int {
	u.parent = append(u.parent, len(u.parent))
	return len(u.parent) - 1
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// labelComponents assigns 8-connected component labels with the classic
// two-pass algorithm. Labels start at 1; 0 is background. The returned areas
// slice is indexed by label.
func labelComponents(mask models.Mask) (labels []int, areas []int) {
	w, h := mask.Width, mask.Height
	labels = make([]int, w*h)
	uf := &unionFind{}
	uf.add() // background

	// Neighbours already visited in raster order: W, NW, N, NE
	prior := [4][2]int{{-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask.Pix[y*w+x] {
				continue
			}
			current := 0
			for _, d := range prior {
				nx, ny := x+d[0], y+d[1]
				if !mask.In(nx, ny) {
					continue
				}
				l := labels[ny*w+nx]
				if l == 0 {
					continue
				}
				if current == 0 {
					current = l
				} else if l != current {
					uf.union(current, l)
				}
			}
			if current == 0 {
				current = uf.add()
			}
			labels[y*w+x] = current
		}
	}

	// Second pass: flatten to consecutive labels in first-seen order
	remap := make(map[int]int)
	areas = []int{0}
	for i, l := range labels {
		if l == 0 {
			continue
		}
		root := uf.find(l)
		final, ok := remap[root]
		if !ok {
			final = len(areas)
			remap[root] = final
			areas = append(areas, 0)
		}
		labels[i] = final
		areas[final]++
	}
	return labels, areas
}
