package blob

import "image"

// component is one 8-connected foreground region of a binarized heat map.
type component struct {
	label  int
	pixels []image.Point
	// start is the first pixel in raster order, which is always on the outer boundary.
	start image.Point
}

// labelMap stores 1-based component labels per cell; 0 is background.
type labelMap struct {
	rows, cols int
	labels     []int
}

func (lm *labelMap) at(p image.Point) int {
	if p.X < 0 || p.Y < 0 || p.X >= lm.cols || p.Y >= lm.rows {
		return 0
	}
	return lm.labels[p.Y*lm.cols+p.X]
}

var neighbors8 = [...]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// findComponents labels the foreground of a binary mask. Components are discovered in raster
// order and flooded breadth first, so the result depends only on the mask.
func findComponents(mask []bool, rows, cols int) ([]component, *labelMap) {
	lm := &labelMap{rows: rows, cols: cols, labels: make([]int, rows*cols)}
	var comps []component
	var queue []image.Point
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			if !mask[idx] || lm.labels[idx] != 0 {
				continue
			}
			label := len(comps) + 1
			comp := component{label: label, start: image.Pt(x, y)}
			lm.labels[idx] = label
			queue = append(queue[:0], comp.start)
			for len(queue) != 0 {
				pt := queue[0]
				queue = queue[1:]
				comp.pixels = append(comp.pixels, pt)
				for _, d := range neighbors8 {
					n := pt.Add(d)
					if n.X < 0 || n.Y < 0 || n.X >= cols || n.Y >= rows {
						continue
					}
					nIdx := n.Y*cols + n.X
					if mask[nIdx] && lm.labels[nIdx] == 0 {
						lm.labels[nIdx] = label
						queue = append(queue, n)
					}
				}
			}
			comps = append(comps, comp)
		}
	}
	return comps, lm
}

// directionOf returns the index in neighbors8 of a unit step.
func directionOf(d image.Point) int {
	for i, n := range neighbors8 {
		if n == d {
			return i
		}
	}
	return -1
}

// traceContour walks the outer boundary of a component clockwise with Moore-neighbour tracing,
// starting from its first raster pixel. It returns the boundary cells in walk order and the
// length of the closed chain, counting diagonal steps as sqrt(2).
func traceContour(comp component, lm *labelMap) ([]image.Point, float64) {
	start := comp.start
	inside := func(p image.Point) bool { return lm.at(p) == comp.label }

	contour := []image.Point{start}
	perimeter := 0.0
	cur := start
	// the cell to the west of the first raster pixel is never part of the component
	back := 4
	firstDir := -1
	for steps := 0; steps <= 8*len(comp.pixels)+8; steps++ {
		dir := -1
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if inside(cur.Add(neighbors8[d])) {
				dir = d
				break
			}
		}
		if dir < 0 {
			break
		}
		if cur == start && dir == firstDir {
			// closed: the walk is about to repeat its first move
			contour = contour[:len(contour)-1]
			break
		}
		if firstDir < 0 {
			firstDir = dir
		}
		next := cur.Add(neighbors8[dir])
		checked := cur.Add(neighbors8[(dir+7)%8])
		back = directionOf(checked.Sub(next))
		if dir%2 == 1 {
			perimeter += sqrt2
		} else {
			perimeter++
		}
		cur = next
		contour = append(contour, cur)
	}
	return contour, perimeter
}
