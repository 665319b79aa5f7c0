package service

import (
	"image"

	"github.com/TIANLI0/ShipKit/config"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 锐化范围
const (
	SharpenProduct = "product"
	SharpenCanvas  = "canvas"
)

// sharpenKernel 3x3 锐化核，系数和为 1
var sharpenKernel = [9]float32{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// RecomposeStats 重构阶段的执行情况
type RecomposeStats struct {
	CropApplied        bool
	BackgroundReplaced bool
	SharpenScope       string
}

// Recomposer 裁剪、缩放到画布、白底替换与选择性锐化
type Recomposer struct {
	canvasSize int
	fillRatio  float64
	logger     *zap.Logger
}

func NewRecomposer(cfg *config.OptimizerConfig, logger *zap.Logger) *Recomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recomposer{
		canvasSize: cfg.CanvasSize,
		fillRatio:  cfg.FillRatio,
		logger:     logger,
	}
}

// Recompose 返回 canvasSize×canvasSize 的新图像，不修改输入
func (r *Recomposer) Recompose(img gocv.Mat, mask *ProductMask) (gocv.Mat, RecomposeStats) {
	var stats RecomposeStats

	var maskMat *gocv.Mat
	if mask != nil {
		m := mask.Mat.Clone()
		maskMat = &m
	}
	defer func() {
		if maskMat != nil {
			maskMat.Close()
		}
	}()

	// 1. 裁剪，掩码同步裁剪
	current := img.Clone()
	if maskMat != nil {
		cropped, croppedMask, ok := r.guard("crop", func() (gocv.Mat, gocv.Mat, bool) {
			return r.crop(current, *maskMat)
		})
		if ok {
			current.Close()
			maskMat.Close()
			current = cropped
			*maskMat = croppedMask
			stats.CropApplied = true
		}
	}

	// 2. 缩放到画布
	resized, resizedMask, ok := r.guard("resize", func() (gocv.Mat, gocv.Mat, bool) {
		return r.resize(current, maskMat)
	})
	if ok {
		current.Close()
		current = resized
		if maskMat != nil {
			maskMat.Close()
			*maskMat = resizedMask
		}
	}

	// 3. 背景替换为纯白
	if maskMat != nil && sameSize(*maskMat, current) {
		whitened, _, ok := r.guard("background", func() (gocv.Mat, gocv.Mat, bool) {
			return r.whitenBackground(current, *maskMat), gocv.Mat{}, true
		})
		if ok {
			current.Close()
			current = whitened
			stats.BackgroundReplaced = true
		}
	}

	// 4. 选择性锐化
	useMask := maskMat != nil && sameSize(*maskMat, current)
	sharpened, _, ok := r.guard("sharpen", func() (gocv.Mat, gocv.Mat, bool) {
		if useMask {
			return r.sharpen(current, maskMat), gocv.Mat{}, true
		}
		return r.sharpen(current, nil), gocv.Mat{}, true
	})
	if ok {
		current.Close()
		current = sharpened
		stats.SharpenScope = SharpenCanvas
		if useMask {
			stats.SharpenScope = SharpenProduct
		}
	}

	return current, stats
}

// guard 子步骤 panic 时返回 ok=false，由调用方保留该步骤的输入
func (r *Recomposer) guard(step string, fn func() (gocv.Mat, gocv.Mat, bool)) (out gocv.Mat, outMask gocv.Mat, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("recompose step failed, keeping its input",
				zap.String("step", step),
				zap.Any("panic", rec))
			out, outMask, ok = gocv.Mat{}, gocv.Mat{}, false
		}
	}()
	return fn()
}

func (r *Recomposer) crop(img, mask gocv.Mat) (gocv.Mat, gocv.Mat, bool) {
	box, ok := NewMaskProcessor().LargestRegion(&mask)
	if !ok {
		return gocv.Mat{}, gocv.Mat{}, false
	}

	margin := int(float64(min(box.Dx(), box.Dy())) * (1 - r.fillRatio) / 2)
	rect := ExpandRect(box, margin, img.Cols(), img.Rows())
	if rect.Empty() {
		return gocv.Mat{}, gocv.Mat{}, false
	}

	imgROI := img.Region(rect)
	defer imgROI.Close()
	maskROI := mask.Region(rect)
	defer maskROI.Close()

	return imgROI.Clone(), maskROI.Clone(), true
}

func (r *Recomposer) resize(img gocv.Mat, mask *gocv.Mat) (gocv.Mat, gocv.Mat, bool) {
	size := image.Point{X: r.canvasSize, Y: r.canvasSize}

	out := gocv.NewMat()
	gocv.Resize(img, &out, size, 0, 0, gocv.InterpolationLanczos4)

	if mask == nil {
		return out, gocv.Mat{}, true
	}
	outMask := NewMaskProcessor().Resize(mask, r.canvasSize, r.canvasSize)
	return out, outMask, true
}

// whitenBackground 掩码为 0 的像素置为白色
func (r *Recomposer) whitenBackground(img, mask gocv.Mat) gocv.Mat {
	out := img.Clone()

	background := gocv.NewMat()
	defer background.Close()
	gocv.BitwiseNot(mask, &background)

	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), img.Rows(), img.Cols(), img.Type())
	defer white.Close()
	white.CopyToWithMask(&out, background)

	return out
}

// sharpen 有掩码时只替换产品像素，否则整幅锐化
func (r *Recomposer) sharpen(img gocv.Mat, mask *gocv.Mat) gocv.Mat {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i, v := range sharpenKernel {
		kernel.SetFloatAt(i/3, i%3, v)
	}

	sharp := gocv.NewMat()
	gocv.Filter2D(img, &sharp, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	if mask == nil {
		return sharp
	}
	defer sharp.Close()

	out := img.Clone()
	sharp.CopyToWithMask(&out, *mask)
	return out
}
