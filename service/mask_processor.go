package service

import (
	"image"

	"gocv.io/x/gocv"
)

// GrabCut 掩码中的前景取值
const (
	gcForeground         = 1
	gcProbableForeground = 3
)

// ProductMask 二值前景掩码（0/255），与其来源图像同尺寸
type ProductMask struct {
	Mat      gocv.Mat
	Strategy string
}

// Close 释放掩码，nil 安全
func (m *ProductMask) Close() error {
	if m == nil {
		return nil
	}
	return m.Mat.Close()
}

// MaskProcessor 负责处理图像掩码
type MaskProcessor struct{}

func NewMaskProcessor() *MaskProcessor {
	return &MaskProcessor{}
}

// ExtractForeground 提取确定前景与可能前景
func (mp *MaskProcessor) ExtractForeground(mask *gocv.Mat) gocv.Mat {
	fgMask := gocv.NewMat()
	defer fgMask.Close()
	gocv.InRangeWithScalar(*mask,
		gocv.NewScalar(gcForeground, 0, 0, 0),
		gocv.NewScalar(gcForeground, 0, 0, 0), &fgMask)

	fgMaskPr := gocv.NewMat()
	defer fgMaskPr.Close()
	gocv.InRangeWithScalar(*mask,
		gocv.NewScalar(gcProbableForeground, 0, 0, 0),
		gocv.NewScalar(gcProbableForeground, 0, 0, 0), &fgMaskPr)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fgMask, fgMaskPr, &combined)

	return combined
}

// ColorMask 按每通道容差选出与给定 BGR 颜色相近的像素
func (mp *MaskProcessor) ColorMask(img *gocv.Mat, bgr [3]float64, tolerance float64) gocv.Mat {
	lower := gocv.NewScalar(
		clampChannel(bgr[0]-tolerance),
		clampChannel(bgr[1]-tolerance),
		clampChannel(bgr[2]-tolerance), 0)
	upper := gocv.NewScalar(
		clampChannel(bgr[0]+tolerance),
		clampChannel(bgr[1]+tolerance),
		clampChannel(bgr[2]+tolerance), 0)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(*img, lower, upper, &mask)
	return mask
}

// Dilate 椭圆核膨胀，闭合细小空隙
func (mp *MaskProcessor) Dilate(mask *gocv.Mat, kernelSize, iterations int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	current := mask.Clone()
	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(current, &next, kernel)
		current.Close()
		current = next
	}
	return current
}

// LargestRegion 返回最大外轮廓的边界框。
// 面积相同（例如 Canny 产生的开放轮廓面积为 0）时取边界框更大的一个。
func (mp *MaskProcessor) LargestRegion(mask *gocv.Mat) (image.Rectangle, bool) {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return image.Rectangle{}, false
	}

	var best image.Rectangle
	bestArea := -1.0
	bestBoxArea := -1
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		rect := gocv.BoundingRect(contour)
		boxArea := rect.Dx() * rect.Dy()
		if area > bestArea || (area == bestArea && boxArea > bestBoxArea) {
			bestArea = area
			bestBoxArea = boxArea
			best = rect
		}
	}

	return best, !best.Empty()
}

// RectMask 生成只有给定矩形为前景的掩码
func (mp *MaskProcessor) RectMask(width, height int, rect image.Rectangle) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8U)
	rect = rect.Intersect(image.Rect(0, 0, width, height))
	if rect.Empty() {
		return mask
	}

	roi := mask.Region(rect)
	roi.SetTo(gocv.NewScalar(255, 0, 0, 0))
	roi.Close()
	return mask
}

// Resize 最近邻缩放，保持掩码严格二值
func (mp *MaskProcessor) Resize(mask *gocv.Mat, width, height int) gocv.Mat {
	resized := gocv.NewMat()
	gocv.Resize(*mask, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationNearestNeighbor)
	return resized
}

// ExpandRect 四周扩展 margin 并裁剪到图像范围内
func ExpandRect(rect image.Rectangle, margin, width, height int) image.Rectangle {
	expanded := image.Rect(
		rect.Min.X-margin, rect.Min.Y-margin,
		rect.Max.X+margin, rect.Max.Y+margin,
	)
	return expanded.Intersect(image.Rect(0, 0, width, height))
}

func clampChannel(v float64) float64 {
	return min(255, max(0, v))
}
