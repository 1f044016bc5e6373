package blob

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

var sqrt2 = math.Sqrt2

// cellCenter maps a cell to its center: cell (c, r) covers [c, c+1) x [r, r+1).
func cellCenter(p image.Point) r2.Point {
	return r2.Point{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5}
}

func toCenters(pts []image.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = cellCenter(p)
	}
	return out
}

// centroid is the mean of the cell centers.
func centroid(pixels []image.Point) r2.Point {
	var sum r2.Point
	for _, p := range pixels {
		sum = sum.Add(cellCenter(p))
	}
	return sum.Mul(1 / float64(len(pixels)))
}

// polygonArea is the absolute shoelace area of a closed polygon.
func polygonArea(poly []r2.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].Cross(poly[j])
	}
	return math.Abs(sum) / 2
}

// convexHull returns the hull of pts in counter-clockwise order using Andrew's monotone chain.
func convexHull(pts []r2.Point) []r2.Point {
	if len(pts) < 3 {
		return pts
	}
	sorted := make([]r2.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	cross := func(o, a, b r2.Point) float64 {
		return a.Sub(o).Cross(b.Sub(o))
	}
	hull := make([]r2.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// inertiaRatio is the ratio of the smaller to the larger second central moment of the cells,
// 1 for a region without spread.
func inertiaRatio(pixels []image.Point, center r2.Point) float64 {
	var sxx, syy, sxy float64
	for _, p := range pixels {
		d := cellCenter(p).Sub(center)
		sxx += d.X * d.X
		syy += d.Y * d.Y
		sxy += d.X * d.Y
	}
	n := float64(len(pixels))
	cov := mat.NewSymDense(2, []float64{sxx / n, sxy / n, sxy / n, syy / n})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return 1
	}
	// eigenvalues are ascending
	vals := eig.Values(nil)
	if vals[1] <= 1e-12 {
		return 1
	}
	ratio := math.Max(vals[0], 0) / vals[1]
	return math.Min(ratio, 1)
}

// medianDistance returns the median distance from center to the points, averaging the two
// middle values for an even count.
func medianDistance(center r2.Point, pts []r2.Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	dists := make([]float64, len(pts))
	for i, p := range pts {
		dists[i] = p.Sub(center).Norm()
	}
	sort.Float64s(dists)
	return (dists[(len(dists)-1)/2] + dists[len(dists)/2]) / 2
}
