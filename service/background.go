package service

import (
	"image/color"

	"gocv.io/x/gocv"
)

// neutralFill 退化图像使用的默认填充色
var neutralFill = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// SampleBackground 沿四条边按 1/20 步长采样，返回平均颜色。
// 用作缩放、旋转产生的空白区域的填充色。
func SampleBackground(img gocv.Mat) color.RGBA {
	width := img.Cols()
	height := img.Rows()
	channels := img.Channels()
	if width < 2 || height < 2 || channels < 3 {
		return neutralFill
	}

	// Region 视图的行不连续，按连续内存索引前先拷贝
	if !img.IsContinuous() {
		img = img.Clone()
		defer img.Close()
	}

	data := img.ToBytes()
	var sumB, sumG, sumR, n int
	sample := func(x, y int) {
		i := (y*width + x) * channels
		sumB += int(data[i])
		sumG += int(data[i+1])
		sumR += int(data[i+2])
		n++
	}

	stepX := max(1, width/20)
	stepY := max(1, height/20)
	for x := 0; x < width; x += stepX {
		sample(x, 0)
		sample(x, height-1)
	}
	for y := 0; y < height; y += stepY {
		sample(0, y)
		sample(width-1, y)
	}

	return color.RGBA{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
		A: 255,
	}
}

// scalarFromColor 将 RGBA 颜色转换为 BGR 顺序的 Scalar
func scalarFromColor(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}
