package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestSampleBackgroundUniform(t *testing.T) {
	c := color.RGBA{R: 200, G: 180, B: 20, A: 255}
	img := solidImage(300, 200, c)
	defer img.Close()

	assert.Equal(t, c, SampleBackground(img))
}

func TestSampleBackgroundIgnoresCenter(t *testing.T) {
	img := solidImage(400, 400, white)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(50, 50, 350, 350), color.RGBA{A: 255}, -1)

	got := SampleBackground(img)
	assert.Equal(t, white, got)
}

func TestSampleBackgroundRegionView(t *testing.T) {
	img := solidImage(100, 100, color.RGBA{R: 220, A: 255})
	defer img.Close()
	inner := image.Rect(10, 10, 90, 90)
	gocv.Rectangle(&img, inner, white, -1)

	roi := img.Region(inner)
	defer roi.Close()
	assert.False(t, roi.IsContinuous())
	assert.Equal(t, white, SampleBackground(roi))
}

func TestSampleBackgroundDegenerate(t *testing.T) {
	img := solidImage(1, 1, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	defer img.Close()

	assert.Equal(t, neutralFill, SampleBackground(img))
}
