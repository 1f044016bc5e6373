package objectdetection

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/stopsign/vision/blob"
)

func TestPostprocessors(t *testing.T) {
	blobs := []blob.Blob{
		{Area: 3, Repeatability: 2},
		{Area: 10, Repeatability: 9},
		{Area: 6, Repeatability: 5},
		{Area: 20, Repeatability: 9},
	}

	out := NewAreaFilter(6)(blobs)
	test.That(t, out, test.ShouldHaveLength, 3)
	test.That(t, out[0].Area, test.ShouldEqual, 10)

	out = NewRepeatabilityFilter(5)(blobs)
	test.That(t, out, test.ShouldHaveLength, 3)
	test.That(t, out[0].Area, test.ShouldEqual, 10)

	out = NewMaxCountFilter(2)(blobs)
	test.That(t, out, test.ShouldResemble, []blob.Blob{blobs[1], blobs[3]})

	out = NewMaxCountFilter(10)(blobs)
	test.That(t, out, test.ShouldResemble, blobs)

	test.That(t, NewAreaFilter(1)(nil), test.ShouldBeEmpty)
}
