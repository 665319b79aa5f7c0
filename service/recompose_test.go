package service

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestRecomposeWithMask(t *testing.T) {
	product := centeredRect(1600, 1000, 400, 400)
	// 浅灰背景，验证背景被替换为纯白
	img := solidImage(1600, 1000, color.RGBA{R: 225, G: 225, B: 225, A: 255})
	defer img.Close()
	gocv.Rectangle(&img, product, productBlue, -1)

	mp := NewMaskProcessor()
	mask := &ProductMask{Mat: mp.RectMask(1600, 1000, product), Strategy: StrategyEdge}
	defer mask.Close()
	before := gocv.CountNonZero(mask.Mat)

	out, stats := NewRecomposer(testOptimizerConfig(), nil).Recompose(img, mask)
	defer out.Close()

	assert.Equal(t, 1200, out.Cols())
	assert.Equal(t, 1200, out.Rows())
	assert.True(t, stats.CropApplied)
	assert.True(t, stats.BackgroundReplaced)
	assert.Equal(t, SharpenProduct, stats.SharpenScope)
	assert.Equal(t, [3]uint8{255, 255, 255}, pixelAt(out, 2, 2))
	assert.Equal(t, [3]uint8{255, 255, 255}, pixelAt(out, 1197, 1197))

	// 产品占满约 90% 画布，中心仍是产品颜色
	center := pixelAt(out, 600, 600)
	assert.Equal(t, [3]uint8{productBlue.B, productBlue.G, productBlue.R}, center)

	// 输入不被修改
	assert.Equal(t, before, gocv.CountNonZero(mask.Mat))
	assert.Equal(t, 1600, img.Cols())
	assert.Equal(t, [3]uint8{225, 225, 225}, pixelAt(img, 0, 0))
}

func TestRecomposeWithoutMask(t *testing.T) {
	img := solidImage(800, 600, productBlue)
	defer img.Close()

	out, stats := NewRecomposer(testOptimizerConfig(), nil).Recompose(img, nil)
	defer out.Close()

	assert.Equal(t, 1200, out.Cols())
	assert.Equal(t, 1200, out.Rows())
	assert.False(t, stats.CropApplied)
	assert.False(t, stats.BackgroundReplaced)
	assert.Equal(t, SharpenCanvas, stats.SharpenScope)
}

func TestRecomposeEmptyMaskSkipsCrop(t *testing.T) {
	img := solidImage(800, 600, white)
	defer img.Close()

	mask := &ProductMask{Mat: NewMaskProcessor().RectMask(800, 600, centeredRect(800, 600, 0, 0))}
	defer mask.Close()

	out, stats := NewRecomposer(testOptimizerConfig(), nil).Recompose(img, mask)
	defer out.Close()

	require.Equal(t, 1200, out.Cols())
	assert.False(t, stats.CropApplied)
}

func TestExpandRectClamps(t *testing.T) {
	r := ExpandRect(centeredRect(100, 100, 90, 90), 20, 100, 100)
	assert.Equal(t, 0, r.Min.X)
	assert.Equal(t, 100, r.Max.Y)
}
