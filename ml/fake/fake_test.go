package fake

import (
	"context"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func batchOf(n, size int) *tensor.Dense {
	backing := make([]uint8, n*size*size*3)
	for i := 0; i < n; i++ {
		backing[i*size*size*3] = uint8(i)
	}
	return tensor.New(tensor.WithShape(n, size, size, 3), tensor.WithBacking(backing))
}

func TestScoreFunc(t *testing.T) {
	c := &Classifier{ScoreFunc: func(i int, window []uint8, size int) float64 {
		return float64(window[0]) / 10
	}}
	scores, err := c.ClassifyBatch(context.Background(), batchOf(3, 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scores, test.ShouldResemble, []float64{0, 0.1, 0.2})
	test.That(t, c.Calls(), test.ShouldEqual, 1)
	test.That(t, c.Windows(), test.ShouldEqual, 3)
}

func TestFixedAndConstant(t *testing.T) {
	c := NewFixed([]float64{1, 0})
	scores, err := c.ClassifyBatch(context.Background(), batchOf(2, 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scores, test.ShouldResemble, []float64{1, 0})

	k := NewConstant(0.5)
	scores, err = k.ClassifyBatch(context.Background(), batchOf(4, 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scores, test.ShouldResemble, []float64{0.5, 0.5, 0.5, 0.5})

	zero := &Classifier{}
	scores, err = zero.ClassifyBatch(context.Background(), batchOf(2, 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scores, test.ShouldResemble, []float64{0, 0})

	_, err = zero.ClassifyBatch(context.Background(), nil)
	test.That(t, err, test.ShouldNotBeNil)
}
