package colorscore

import (
	"context"
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"

	"go.viam.com/stopsign/utils"
)

func fill(window []uint8, from, to int, r, g, b uint8) {
	for i := from; i < to; i++ {
		window[i*3], window[i*3+1], window[i*3+2] = r, g, b
	}
}

func TestIsRed(t *testing.T) {
	c, err := NewClassifier(DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.IsRed(200, 20, 30), test.ShouldBeTrue)
	test.That(t, c.IsRed(200, 10, 60), test.ShouldBeTrue)
	test.That(t, c.IsRed(20, 200, 30), test.ShouldBeFalse)
	test.That(t, c.IsRed(255, 255, 255), test.ShouldBeFalse)
	test.That(t, c.IsRed(30, 2, 2), test.ShouldBeFalse)
}

func TestClassifyBatchOrder(t *testing.T) {
	orig := utils.ParallelFactor
	defer func() { utils.ParallelFactor = orig }()
	utils.ParallelFactor = 3

	c, err := NewClassifier(DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	const size, n = 4, 7
	winLen := size * size * 3
	backing := make([]uint8, n*winLen)
	// window i has i red pixels out of 16
	for i := 0; i < n; i++ {
		fill(backing[i*winLen:(i+1)*winLen], 0, i, 220, 10, 10)
	}
	batch := tensor.New(tensor.WithShape(n, size, size, 3), tensor.WithBacking(backing))

	scores, err := c.ClassifyBatch(context.Background(), batch)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scores, test.ShouldHaveLength, n)
	for i, s := range scores {
		test.That(t, s, test.ShouldAlmostEqual, float64(i)/16/0.5)
	}

	full := make([]uint8, winLen)
	fill(full, 0, size*size, 220, 10, 10)
	test.That(t, c.Score(full), test.ShouldEqual, 1)
	test.That(t, c.Score(nil), test.ShouldEqual, 0)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	cfg.FullScaleFraction = 0
	test.That(t, utils.IsConfigurationError(cfg.Validate()), test.ShouldBeTrue)

	cfg = DefaultConfig()
	cfg.MaxHue = 350
	test.That(t, utils.IsConfigurationError(cfg.Validate()), test.ShouldBeTrue)

	cfg = DefaultConfig()
	cfg.MinSaturation = 2
	_, err := NewClassifier(cfg)
	test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
}
