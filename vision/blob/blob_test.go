package blob

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/stopsign/utils"
	"go.viam.com/stopsign/vision/heatmap"
)

func newHeatMap(rows, cols int) *heatmap.HeatMap {
	return &heatmap.HeatMap{Rows: rows, Cols: cols, Pix: make([]uint8, rows*cols)}
}

func fillRect(hm *heatmap.HeatMap, x0, y0, x1, y1 int, v uint8) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hm.Pix[y*hm.Cols+x] = v
		}
	}
}

func permissive() Params {
	p := DefaultParams()
	p.MinArea = 1
	return p
}

func TestDetectEmpty(t *testing.T) {
	blobs, err := Detect(newHeatMap(4, 4), DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	blobs, err = Detect(newHeatMap(0, 0), DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	blobs, err = Detect(nil, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)
}

func TestDetectSingleCell(t *testing.T) {
	hm := newHeatMap(2, 2)
	hm.Pix[0] = 255

	blobs, err := Detect(hm, permissive())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	b := blobs[0]
	test.That(t, b.Center.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, b.Center.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, b.Area, test.ShouldEqual, 1)
	test.That(t, b.Radius, test.ShouldEqual, 0)
	test.That(t, b.Circularity, test.ShouldEqual, 1)
	test.That(t, b.Convexity, test.ShouldEqual, 1)
	test.That(t, b.InertiaRatio, test.ShouldEqual, 1)
	test.That(t, b.Repeatability, test.ShouldEqual, len(permissive().Levels()))

	// a single cell is below the default minimum area
	blobs, err = Detect(hm, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)
}

func TestDetectSeparateBlobs(t *testing.T) {
	hm := newHeatMap(40, 40)
	fillRect(hm, 5, 5, 8, 8, 200)
	fillRect(hm, 30, 20, 33, 23, 200)

	blobs, err := Detect(hm, DefaultParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 2)
	test.That(t, blobs[0].Center.X, test.ShouldAlmostEqual, 6.5)
	test.That(t, blobs[0].Center.Y, test.ShouldAlmostEqual, 6.5)
	test.That(t, blobs[1].Center.X, test.ShouldAlmostEqual, 31.5)
	test.That(t, blobs[1].Center.Y, test.ShouldAlmostEqual, 21.5)
	for _, b := range blobs {
		test.That(t, b.Area, test.ShouldEqual, 9)
		test.That(t, b.Repeatability, test.ShouldEqual, 15)
		test.That(t, b.InertiaRatio, test.ShouldAlmostEqual, 1)
	}
}

func TestDetectMergesAcrossLevels(t *testing.T) {
	hm := newHeatMap(9, 9)
	fillRect(hm, 2, 2, 7, 7, 100)
	hm.Pix[4*9+4] = 250

	blobs, err := Detect(hm, permissive())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	b := blobs[0]
	test.That(t, b.Center.X, test.ShouldAlmostEqual, 4.5)
	test.That(t, b.Center.Y, test.ShouldAlmostEqual, 4.5)
	test.That(t, b.Repeatability, test.ShouldEqual, 17)
	// twelve levels see only the peak, so it represents the group
	test.That(t, b.Area, test.ShouldEqual, 1)
}

func TestDetectMinRepeatability(t *testing.T) {
	hm := newHeatMap(10, 10)
	// only the first level sees this region
	fillRect(hm, 2, 2, 6, 6, 55)

	p := permissive()
	blobs, err := Detect(hm, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	p.MinRepeatability = 1
	blobs, err = Detect(hm, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].Area, test.ShouldEqual, 16)
}

func TestDetectShapeFilters(t *testing.T) {
	line := newHeatMap(5, 20)
	fillRect(line, 2, 2, 14, 3, 200)

	blobs, err := Detect(line, permissive())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].InertiaRatio, test.ShouldAlmostEqual, 0)
	test.That(t, blobs[0].Circularity, test.ShouldAlmostEqual, 0)

	p := permissive()
	p.FilterByInertia = true
	blobs, err = Detect(line, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	p = permissive()
	p.FilterByCircularity = true
	p.MinCircularity = 0.5
	blobs, err = Detect(line, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	square := newHeatMap(12, 12)
	fillRect(square, 3, 3, 9, 9, 200)
	p = permissive()
	p.FilterByConvexity = true
	p.FilterByInertia = true
	blobs, err = Detect(square, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].Convexity, test.ShouldAlmostEqual, 1)
}

func TestDetectColorFilter(t *testing.T) {
	ring := newHeatMap(11, 11)
	fillRect(ring, 2, 2, 9, 9, 200)
	fillRect(ring, 3, 3, 8, 8, 0)

	p := permissive()
	p.FilterByColor = true
	blobs, err := Detect(ring, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldBeEmpty)

	p.BlobColor = 0
	blobs, err = Detect(ring, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].Center.X, test.ShouldAlmostEqual, 5.5)
	test.That(t, blobs[0].Area, test.ShouldEqual, 24)
}

func noisyHeatMap(seed int64) *heatmap.HeatMap {
	r := rand.New(rand.NewSource(seed))
	hm := newHeatMap(48, 64)
	for i := 0; i < 25; i++ {
		x, y := r.Intn(58), r.Intn(42)
		w, h := 1+r.Intn(6), 1+r.Intn(6)
		fillRect(hm, x, y, x+w, y+h, uint8(60+r.Intn(196)))
	}
	for i := range hm.Pix {
		if r.Intn(10) == 0 {
			hm.Pix[i] = uint8(r.Intn(256))
		}
	}
	return hm
}

func TestDetectDeterministic(t *testing.T) {
	hm := noisyHeatMap(7)
	first, err := Detect(hm, permissive())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldNotBeEmpty)
	for i := 0; i < 3; i++ {
		again, err := Detect(hm, permissive())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, again, test.ShouldResemble, first)
	}
}

func TestDetectMinAreaMonotone(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		hm := noisyHeatMap(seed)
		prev := -1
		for minArea := 0.0; minArea <= 40; minArea++ {
			p := DefaultParams()
			p.MinArea = minArea
			blobs, err := Detect(hm, p)
			test.That(t, err, test.ShouldBeNil)
			if prev >= 0 {
				test.That(t, len(blobs), test.ShouldBeLessThanOrEqualTo, prev)
			}
			prev = len(blobs)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	test.That(t, DefaultParams().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(p *Params)
	}{
		{"step", func(p *Params) { p.ThresholdStep = 0 }},
		{"range", func(p *Params) { p.MinThreshold = 230 }},
		{"max threshold", func(p *Params) { p.MaxThreshold = 300 }},
		{"repeatability", func(p *Params) { p.MinRepeatability = 0 }},
		{"distance", func(p *Params) { p.MinDistBetweenBlobs = -1 }},
		{"area", func(p *Params) { p.MinArea = 6000 }},
		{"circularity", func(p *Params) { p.FilterByCircularity = true; p.MinCircularity = -1 }},
		{"color", func(p *Params) { p.FilterByColor = true; p.BlobColor = 7 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
			_, err = Detect(newHeatMap(2, 2), p)
			test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
		})
	}

	// disabled filters are not checked
	p := DefaultParams()
	p.MinConvexity = 5
	p.MaxConvexity = 1
	test.That(t, p.Validate(), test.ShouldBeNil)
}

func TestLevels(t *testing.T) {
	levels := DefaultParams().Levels()
	test.That(t, levels, test.ShouldHaveLength, 17)
	test.That(t, levels[0], test.ShouldEqual, 50)
	test.That(t, levels[16], test.ShouldEqual, 210)

	p := DefaultParams()
	p.MinThreshold, p.MaxThreshold = 100, 100
	test.That(t, p.Levels(), test.ShouldBeEmpty)
}

func TestTraceContour(t *testing.T) {
	mask := func(rows, cols int, cells ...[2]int) []bool {
		m := make([]bool, rows*cols)
		for _, c := range cells {
			m[c[1]*cols+c[0]] = true
		}
		return m
	}

	comps, lm := findComponents(mask(3, 3, [2]int{1, 1}), 3, 3)
	test.That(t, comps, test.ShouldHaveLength, 1)
	contour, perimeter := traceContour(comps[0], lm)
	test.That(t, contour, test.ShouldHaveLength, 1)
	test.That(t, perimeter, test.ShouldEqual, 0)

	comps, lm = findComponents(mask(4, 4, [2]int{1, 1}, [2]int{2, 1}, [2]int{1, 2}, [2]int{2, 2}), 4, 4)
	test.That(t, comps, test.ShouldHaveLength, 1)
	contour, perimeter = traceContour(comps[0], lm)
	test.That(t, contour, test.ShouldHaveLength, 4)
	test.That(t, perimeter, test.ShouldEqual, 4)
	test.That(t, polygonArea(toCenters(contour)), test.ShouldAlmostEqual, 1)

	// diagonal neighbours belong to the same component
	comps, lm = findComponents(mask(3, 3, [2]int{0, 0}, [2]int{1, 1}, [2]int{2, 2}), 3, 3)
	test.That(t, comps, test.ShouldHaveLength, 1)
	_, perimeter = traceContour(comps[0], lm)
	test.That(t, perimeter, test.ShouldAlmostEqual, 4*sqrt2)

	comps, _ = findComponents(mask(3, 5, [2]int{0, 0}, [2]int{4, 2}), 3, 5)
	test.That(t, comps, test.ShouldHaveLength, 2)
}

func TestGeometry(t *testing.T) {
	square := []r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 1, Y: 1}}
	hull := convexHull(square)
	test.That(t, hull, test.ShouldHaveLength, 4)
	test.That(t, polygonArea(hull), test.ShouldAlmostEqual, 4)

	test.That(t, medianDistance(r2.Point{}, []r2.Point{{X: 1}, {X: 2}, {X: 3}, {X: 10}}), test.ShouldAlmostEqual, 2.5)
	test.That(t, medianDistance(r2.Point{}, nil), test.ShouldEqual, 0)
}
