// Package blob extracts bright blobs from a heat map by thresholding it at several levels,
// measuring the connected regions found at each level, and merging regions that describe the
// same blob across levels.
package blob

import (
	"image"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/stopsign/vision/heatmap"
)

// Blob is a detected region. Center is in heat map cell space, where cell (c, r) covers
// [c, c+1) x [r, r+1). Area, Radius and the shape descriptors come from the representative
// region of the merged group.
type Blob struct {
	Center        r2.Point
	Area          float64
	Radius        float64
	Circularity   float64
	Convexity     float64
	InertiaRatio  float64
	Repeatability int
}

// candidate is a region found at a single threshold level.
type candidate struct {
	center       r2.Point
	area         float64
	radius       float64
	circularity  float64
	convexity    float64
	inertiaRatio float64
}

// Detect finds the blobs of a heat map. The result is ordered by the threshold level at which
// each blob first appeared, then by raster position.
func Detect(hm *heatmap.HeatMap, params Params) ([]Blob, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if hm == nil || hm.Empty() {
		return nil, nil
	}

	var groups [][]candidate
	mask := make([]bool, len(hm.Pix))
	for _, level := range params.Levels() {
		for i, v := range hm.Pix {
			mask[i] = float64(v) > level
		}
		found := findCandidates(mask, hm.Rows, hm.Cols, params)
		groups = mergeLevel(groups, found, params.MinDistBetweenBlobs)
	}

	var blobs []Blob
	for _, group := range groups {
		if len(group) < params.MinRepeatability {
			continue
		}
		var sum r2.Point
		for _, c := range group {
			sum = sum.Add(c.center)
		}
		rep := group[len(group)/2]
		b := Blob{
			Center:        sum.Mul(1 / float64(len(group))),
			Area:          rep.area,
			Radius:        rep.radius,
			Circularity:   rep.circularity,
			Convexity:     rep.convexity,
			InertiaRatio:  rep.inertiaRatio,
			Repeatability: len(group),
		}
		if params.FilterByArea && (b.Area < params.MinArea || b.Area > params.MaxArea) {
			continue
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

// findCandidates measures every region of one binarized level and keeps those passing the
// shape and color filters.
func findCandidates(mask []bool, rows, cols int, params Params) []candidate {
	comps, lm := findComponents(mask, rows, cols)
	out := make([]candidate, 0, len(comps))
	for _, comp := range comps {
		c := measure(comp, lm)
		if params.FilterByCircularity && !within(c.circularity, params.MinCircularity, params.MaxCircularity) {
			continue
		}
		if params.FilterByConvexity && !within(c.convexity, params.MinConvexity, params.MaxConvexity) {
			continue
		}
		if params.FilterByInertia && !within(c.inertiaRatio, params.MinInertiaRatio, params.MaxInertiaRatio) {
			continue
		}
		if params.FilterByColor {
			cell := image.Pt(int(math.Floor(c.center.X)), int(math.Floor(c.center.Y)))
			var value uint8
			if mask[cell.Y*cols+cell.X] {
				value = 255
			}
			if value != params.BlobColor {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func within(v, lo, hi float64) bool {
	return v >= lo && v < hi
}

func measure(comp component, lm *labelMap) candidate {
	center := centroid(comp.pixels)
	cells, perimeter := traceContour(comp, lm)
	contour := toCenters(cells)
	area := polygonArea(contour)

	c := candidate{
		center:       center,
		area:         float64(len(comp.pixels)),
		radius:       medianDistance(center, contour),
		circularity:  1,
		convexity:    1,
		inertiaRatio: inertiaRatio(comp.pixels, center),
	}
	if perimeter > 0 {
		c.circularity = 4 * math.Pi * area / (perimeter * perimeter)
	}
	if hullArea := polygonArea(convexHull(contour)); hullArea > 0 {
		c.convexity = area / hullArea
	}
	return c
}

// mergeLevel folds the regions of one level into the groups found so far. A region joins the
// first group whose representative is closer than the minimum distance or than either radius.
// Regions starting new groups are only appended after the whole level is processed, so two
// regions of the same level never merge.
func mergeLevel(groups [][]candidate, found []candidate, minDist float64) [][]candidate {
	var fresh [][]candidate
	for _, cur := range found {
		joined := false
		for j, group := range groups {
			rep := group[len(group)/2]
			dist := rep.center.Sub(cur.center).Norm()
			if dist >= minDist && dist >= rep.radius && dist >= cur.radius {
				continue
			}
			groups[j] = insertByRadius(group, cur)
			joined = true
			break
		}
		if !joined {
			fresh = append(fresh, []candidate{cur})
		}
	}
	return append(groups, fresh...)
}

// insertByRadius keeps a group sorted by increasing radius; equal radii keep arrival order.
func insertByRadius(group []candidate, c candidate) []candidate {
	group = append(group, c)
	k := len(group) - 1
	for k > 0 && c.radius < group[k-1].radius {
		group[k] = group[k-1]
		k--
	}
	group[k] = c
	return group
}
