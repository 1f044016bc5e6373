package objectdetection

import (
	"github.com/samber/lo"

	"go.viam.com/stopsign/vision/blob"
)

// Postprocessor defines a function that filters/modifies on an incoming array of blobs.
type Postprocessor func([]blob.Blob) []blob.Blob

// NewAreaFilter returns a function that filters out blobs below a certain area.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []blob.Blob) []blob.Blob {
		return lo.Filter(in, func(b blob.Blob, _ int) bool { return b.Area >= area })
	}
}

// NewRepeatabilityFilter returns a function that filters out blobs seen at fewer than n
// threshold levels.
func NewRepeatabilityFilter(n int) Postprocessor {
	return func(in []blob.Blob) []blob.Blob {
		return lo.Filter(in, func(b blob.Blob, _ int) bool { return b.Repeatability >= n })
	}
}

// NewMaxCountFilter keeps at most n blobs, preferring those seen at the most threshold levels.
// Ties keep their original order.
func NewMaxCountFilter(n int) Postprocessor {
	return func(in []blob.Blob) []blob.Blob {
		if len(in) <= n {
			return in
		}
		idx := lo.Range(len(in))
		for i := 1; i < len(idx); i++ {
			for j := i; j > 0 && in[idx[j]].Repeatability > in[idx[j-1]].Repeatability; j-- {
				idx[j], idx[j-1] = idx[j-1], idx[j]
			}
		}
		keep := lo.Associate(idx[:n], func(i int) (int, bool) { return i, true })
		return lo.Filter(in, func(_ blob.Blob, i int) bool { return keep[i] })
	}
}
