package service

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	white       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	productBlue = color.RGBA{R: 160, G: 90, B: 40, A: 255}
)

func testOptimizerConfig() *config.OptimizerConfig {
	cfg := config.Default().Optimizer
	return &cfg
}

func testGrabCutConfig() *config.GrabCutConfig {
	cfg := config.Default().GrabCut
	return &cfg
}

// solidImage 纯色 BGR 图像
func solidImage(width, height int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(scalarFromColor(c), height, width, gocv.MatTypeCV8UC3)
}

// productPhoto 白底中央一个带噪声的矩形产品
func productPhoto(width, height int, product image.Rectangle) gocv.Mat {
	img := solidImage(width, height, white)
	roi := img.Region(product)
	base := scalarFromColor(productBlue)
	gocv.RandU(&roi,
		gocv.NewScalar(base.Val1-6, base.Val2-6, base.Val3-6, 0),
		gocv.NewScalar(base.Val1+6, base.Val2+6, base.Val3+6, 0))
	roi.Close()
	return img
}

// centeredRect 以图像中心为中心的矩形
func centeredRect(width, height, w, h int) image.Rectangle {
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func encodePNG(t *testing.T, img gocv.Mat) []byte {
	t.Helper()
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	require.NoError(t, err)
	defer buf.Close()
	return bytes.Clone(buf.GetBytes())
}

func encodeJPEGAt(t *testing.T, img gocv.Mat, quality int) []byte {
	t.Helper()
	data, err := EncodeJPEG(img, quality)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, data []byte) gocv.Mat {
	t.Helper()
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	require.False(t, img.Empty())
	return img
}

// pixelAt 返回 BGR 像素
func pixelAt(img gocv.Mat, x, y int) [3]uint8 {
	v := img.GetVecbAt(y, x)
	return [3]uint8{v[0], v[1], v[2]}
}
