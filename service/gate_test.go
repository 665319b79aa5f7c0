package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestGateAcceptsCanonicalBrightImage(t *testing.T) {
	gate := NewOptimizedGate(testOptimizerConfig())
	img := solidImage(1200, 1200, white)
	defer img.Close()
	gocv.Rectangle(&img, centeredRect(1200, 1200, 600, 600), color.RGBA{R: 40, G: 40, B: 40, A: 255}, -1)

	assert.InDelta(t, 0.75, gate.BrightRatio(img), 0.01)
	assert.True(t, gate.IsAlreadyOptimized(img, 150*1024))
}

func TestGateRejects(t *testing.T) {
	gate := NewOptimizedGate(testOptimizerConfig())

	bright := solidImage(1200, 1200, white)
	defer bright.Close()
	assert.False(t, gate.IsAlreadyOptimized(bright, 200*1024), "byte ceiling is exclusive")
	assert.False(t, gate.IsAlreadyOptimized(bright, 500*1024))

	wrongSize := solidImage(1200, 1000, white)
	defer wrongSize.Close()
	assert.False(t, gate.IsAlreadyOptimized(wrongSize, 10*1024))

	dark := solidImage(1200, 1200, white)
	defer dark.Close()
	gocv.Rectangle(&dark, image.Rect(0, 0, 1200, 600), color.RGBA{A: 255}, -1)
	assert.False(t, gate.IsAlreadyOptimized(dark, 10*1024))
}
