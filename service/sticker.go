package service

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

type badgeShape int

const (
	badgeSeal badgeShape = iota
	badgeStarburst
)

// 角落编号
const (
	cornerTopLeft = iota
	cornerTopRight
	cornerBottomLeft
	cornerBottomRight
)

const (
	badgeSizeRatio   = 0.22
	badgeMarginRatio = 0.04
	badgePairScale   = 0.75
	sealTeeth        = 24
	starburstPoints  = 12
)

var badgeTexts = []string{"SALE", "NEW", "HOT", "BEST", "TOP", "-20%"}

var badgeColors = []color.RGBA{
	{R: 220, G: 38, B: 38, A: 255},
	{R: 234, G: 88, B: 12, A: 255},
	{R: 22, G: 163, B: 74, A: 255},
	{R: 37, G: 99, B: 235, A: 255},
	{R: 147, G: 51, B: 234, A: 255},
}

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// badgePlacement 一个徽章的位置与外观
type badgePlacement struct {
	Corner   int
	Rect     image.Rectangle
	Shape    badgeShape
	Text     string
	Color    color.RGBA
	Rotation float64
}

// planBadges 选择一到两个角落放置徽章，两个时整体缩小
func planBadges(width, height int, rng *rand.Rand) []badgePlacement {
	minDim := min(width, height)
	count := 1 + rng.IntN(2)

	size := int(float64(minDim) * badgeSizeRatio)
	if count == 2 {
		size = int(float64(size) * badgePairScale)
	}
	margin := int(float64(minDim) * badgeMarginRatio)
	if size < 8 {
		return nil
	}

	corners := rng.Perm(4)[:count]
	badges := make([]badgePlacement, 0, count)
	for _, corner := range corners {
		jx := rng.IntN(margin/2 + 1)
		jy := rng.IntN(margin/2 + 1)

		x := margin + jx
		if corner == cornerTopRight || corner == cornerBottomRight {
			x = width - margin - jx - size
		}
		y := margin + jy
		if corner == cornerBottomLeft || corner == cornerBottomRight {
			y = height - margin - jy - size
		}

		badges = append(badges, badgePlacement{
			Corner:   corner,
			Rect:     image.Rect(x, y, x+size, y+size),
			Shape:    badgeShape(rng.IntN(2)),
			Text:     badgeTexts[rng.IntN(len(badgeTexts))],
			Color:    badgeColors[rng.IntN(len(badgeColors))],
			Rotation: rng.Float64() * 2 * math.Pi,
		})
	}
	return badges
}

// applyStickers 把徽章合成到分块上，返回新图像
func applyStickers(tile gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	src, err := tile.ToImage()
	if err != nil {
		return gocv.Mat{}, err
	}

	b := src.Bounds()
	out := imaging.Clone(src)
	for _, badge := range planBadges(b.Dx(), b.Dy(), rng) {
		rendered, err := renderBadge(badge)
		if err != nil {
			return gocv.Mat{}, err
		}
		out = imaging.Overlay(out, rendered, badge.Rect.Min, 1.0)
	}

	return gocv.ImageToMatRGB(out)
}

// renderBadge 在透明画布上绘制徽章与居中文字
func renderBadge(badge badgePlacement) (*image.RGBA, error) {
	size := badge.Rect.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float32(size) / 2
	outer := c * 0.98

	switch badge.Shape {
	case badgeStarburst:
		fillStar(dst, c, outer, outer*0.62, starburstPoints, badge.Rotation, badge.Color)
	default:
		fillStar(dst, c, outer, outer*0.88, sealTeeth, badge.Rotation, badge.Color)
		fillStar(dst, c, outer*0.74, outer*0.74, 64, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		fillStar(dst, c, outer*0.68, outer*0.68, 64, 0, badge.Color)
	}

	if err := drawCenteredText(dst, badge.Text, float64(size)*0.2); err != nil {
		return nil, err
	}
	return dst, nil
}

// fillStar 交替使用外径与内径绘制闭合多边形，内外径相等时近似圆
func fillStar(dst *image.RGBA, center, outerR, innerR float32, points int, rotation float64, fill color.Color) {
	size := dst.Bounds().Dx()
	r := vector.NewRasterizer(size, size)
	r.DrawOp = draw.Over

	n := points * 2
	for i := 0; i < n; i++ {
		radius := outerR
		if i%2 == 1 {
			radius = innerR
		}
		angle := rotation + float64(i)*math.Pi/float64(points)
		x := center + radius*float32(math.Cos(angle))
		y := center + radius*float32(math.Sin(angle))
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{})
}

func drawCenteredText(dst *image.RGBA, text string, sizePt float64) error {
	f, err := boldFont()
	if err != nil {
		return err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	size := fixed.I(dst.Bounds().Dx())
	metrics := face.Metrics()
	d.Dot = fixed.Point26_6{
		X: (size - d.MeasureString(text)) / 2,
		Y: (size + metrics.Ascent - metrics.Descent) / 2,
	}
	d.DrawString(text)
	return nil
}
