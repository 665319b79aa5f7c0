package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var tileColors = []color.RGBA{
	{R: 250, G: 250, B: 250, A: 255},
	{R: 230, G: 220, B: 200, A: 255},
	{R: 60, G: 60, B: 70, A: 255},
	{R: 245, G: 245, B: 240, A: 255},
	{R: 25, G: 20, B: 30, A: 255},
	{R: 210, G: 230, B: 250, A: 255},
}

// gridImage 每个分块一种背景色，中央一个产品
func gridImage(t *testing.T, layout GridLayout, width, height int) []byte {
	t.Helper()
	img := solidImage(layout.Width, layout.Height, white)
	defer img.Close()

	for i := 0; i < layout.TileCount(); i++ {
		r := layout.tileRect(i)
		gocv.Rectangle(&img, r, tileColors[i%len(tileColors)], -1)
		gocv.Circle(&img, image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2), r.Dx()/5, productBlue, -1)
	}

	if width != layout.Width || height != layout.Height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationArea)
		return encodePNG(t, resized)
	}
	return encodePNG(t, img)
}

func newTestGenerator(seed int64) *VariantGenerator {
	opts := VariantOptionsFromConfig(&config.Default().Variants)
	opts.Seed = seed
	return NewVariantGenerator(opts, nil, zap.NewNop())
}

func collect(t *testing.T, g *VariantGenerator, data []byte, layout GridLayout) ([]model.Variant, int) {
	t.Helper()
	var variants []model.Variant
	attempted, err := g.GenerateAll(data, layout, func(v model.Variant) bool {
		variants = append(variants, v)
		return true
	})
	require.NoError(t, err)
	return variants, attempted
}

func TestSpecsCoverEveryTile(t *testing.T) {
	for _, tc := range []struct {
		layout GridLayout
		want   int
	}{
		{Grid2x3, 30},
		{Grid2x2, 20},
	} {
		specs := Specs(tc.layout)
		require.Len(t, specs, tc.want)

		for i, s := range specs {
			assert.Equal(t, i, s.GlobalIndex)
			assert.Equal(t, s.TileIndex*VariantsPerTile+s.VariantIndex, s.GlobalIndex)
			assert.Equal(t, variantTypes[s.VariantIndex], s.VariantType)
			assert.NotEmpty(t, s.VariantLabel)
			assert.Equal(t, tc.layout.TileNames[s.TileIndex], s.TileName)
		}
	}
}

func TestSpecsToneAlternates(t *testing.T) {
	specs := Specs(Grid2x2)

	assert.Equal(t, ToneWarm, specs[2].Tone)
	assert.Equal(t, "Warm Minimal", specs[2].VariantLabel)
	assert.Equal(t, ToneCool, specs[7].Tone)
	assert.Equal(t, "Cool Minimal", specs[7].VariantLabel)
	assert.Empty(t, specs[0].Tone)
}

func TestLayoutByName(t *testing.T) {
	l, err := LayoutByName("2x2")
	require.NoError(t, err)
	assert.Equal(t, 4, l.TileCount())

	l, err = LayoutByName("2x3")
	require.NoError(t, err)
	assert.Equal(t, 6, l.TileCount())
	assert.Equal(t, image.Rect(512, 1024, 1024, 1536), l.tileRect(5))

	_, err = LayoutByName("3x3")
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestTileNameFallback(t *testing.T) {
	assert.Equal(t, "Dark Luxury", Grid2x2.TileName(3))
	assert.Equal(t, "Tile 7", Grid2x3.TileName(6))
}

func TestGenerateAll2x3(t *testing.T) {
	variants, attempted := collect(t, newTestGenerator(7), gridImage(t, Grid2x3, 1024, 1536), Grid2x3)

	assert.Equal(t, 30, attempted)
	require.Len(t, variants, 30)
	seen := map[int]bool{}
	for i, v := range variants {
		assert.Equal(t, i, v.GlobalIndex)
		assert.False(t, seen[v.GlobalIndex])
		seen[v.GlobalIndex] = true

		assert.Equal(t, model.Dimensions{Width: 1200, Height: 1200}, v.Dimensions)
		assert.NotEmpty(t, v.Data)
		assert.LessOrEqual(t, len(v.Data), 300*1024)
	}
}

func TestGenerateAll2x2ResizesGrid(t *testing.T) {
	variants, attempted := collect(t, newTestGenerator(7), gridImage(t, Grid2x2, 800, 800), Grid2x2)

	assert.Equal(t, 20, attempted)
	assert.Len(t, variants, 20)
	assert.Equal(t, 19, variants[len(variants)-1].GlobalIndex)
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	g := newTestGenerator(7)
	rotate := g.transforms[VariantDynamicAngle]
	g.transforms[VariantDynamicAngle] = func(tile gocv.Mat, spec VariantSpec) (gocv.Mat, error) {
		if spec.GlobalIndex == 8 {
			panic("rotation failed")
		}
		return rotate(tile, spec)
	}

	variants, attempted := collect(t, g, gridImage(t, Grid2x3, 1024, 1536), Grid2x3)

	assert.Equal(t, 30, attempted)
	require.Len(t, variants, 29)
	for _, v := range variants {
		assert.NotEqual(t, 8, v.GlobalIndex)
	}
}

func TestGenerateAllStopsEarly(t *testing.T) {
	g := newTestGenerator(7)
	var got []int
	attempted, err := g.GenerateAll(gridImage(t, Grid2x2, 1024, 1024), Grid2x2, func(v model.Variant) bool {
		got = append(got, v.GlobalIndex)
		return len(got) < 3
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempted)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestGenerateAllDecodeError(t *testing.T) {
	_, err := newTestGenerator(0).GenerateAll([]byte("nope"), Grid2x2, func(model.Variant) bool { return true })
	assert.ErrorIs(t, err, ErrDecode)
}

func TestHeroCompactUsesBackgroundColor(t *testing.T) {
	bg := color.RGBA{R: 200, G: 40, B: 40, A: 255}
	tile := solidImage(512, 512, bg)
	defer tile.Close()
	gocv.Circle(&tile, image.Pt(256, 256), 100, productBlue, -1)

	out, err := newTestGenerator(0).heroCompact(tile, VariantSpec{})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 512, out.Cols())
	assert.Equal(t, 512, out.Rows())
	assert.Equal(t, [3]uint8{bg.B, bg.G, bg.R}, pixelAt(out, 3, 3))
	assert.Equal(t, [3]uint8{productBlue.B, productBlue.G, productBlue.R}, pixelAt(out, 256, 256))
}

func TestToneMinimalDirection(t *testing.T) {
	tile := solidImage(256, 256, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	defer tile.Close()
	g := newTestGenerator(0)

	warm, err := g.toneMinimal(tile, VariantSpec{VariantInfo: model.VariantInfo{Tone: ToneWarm}})
	require.NoError(t, err)
	defer warm.Close()
	p := pixelAt(warm, 10, 10)
	assert.Greater(t, p[2], p[0], "warm tone lifts red over blue")

	cool, err := g.toneMinimal(tile, VariantSpec{VariantInfo: model.VariantInfo{Tone: ToneCool}})
	require.NoError(t, err)
	defer cool.Close()
	p = pixelAt(cool, 10, 10)
	assert.Greater(t, p[0], p[2], "cool tone lifts blue over red")
}

func TestDynamicAngleFillsCorners(t *testing.T) {
	bg := color.RGBA{R: 20, G: 200, B: 20, A: 255}
	tile := solidImage(512, 512, bg)
	defer tile.Close()

	out, err := newTestGenerator(0).dynamicAngle(tile, VariantSpec{})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 512, out.Cols())
	assert.Equal(t, [3]uint8{bg.B, bg.G, bg.R}, pixelAt(out, 0, 0))
	assert.Equal(t, [3]uint8{bg.B, bg.G, bg.R}, pixelAt(out, 511, 511))
}

func TestPromoStickerSeeded(t *testing.T) {
	tile := solidImage(512, 512, white)
	defer tile.Close()
	spec := VariantSpec{VariantInfo: model.VariantInfo{GlobalIndex: 4, VariantType: VariantPromoSticker}}

	a, err := newTestGenerator(99).GenerateVariant(tile, spec)
	require.NoError(t, err)
	b, err := newTestGenerator(99).GenerateVariant(tile, spec)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)

	out, err := newTestGenerator(99).promoSticker(tile, spec)
	require.NoError(t, err)
	defer out.Close()
	// 徽章只出现在角落，中心保持原样
	assert.Equal(t, [3]uint8{255, 255, 255}, pixelAt(out, 256, 256))
	assert.NotEqual(t, gocv.CountNonZero(whiteMask(t, tile)), gocv.CountNonZero(whiteMask(t, out)))
}

// whiteMask 纯白像素掩码
func whiteMask(t *testing.T, img gocv.Mat) gocv.Mat {
	t.Helper()
	mask := gocv.NewMat()
	gocv.InRangeWithScalar(img, gocv.NewScalar(255, 255, 255, 0), gocv.NewScalar(255, 255, 255, 0), &mask)
	t.Cleanup(func() { mask.Close() })
	return mask
}
