package service

import (
	"github.com/TIANLI0/ShipKit/config"
	"gocv.io/x/gocv"
)

// OptimizedGate 判断输入是否已经是规范图片，命中时整条流程跳过
type OptimizedGate struct {
	canvasSize      int
	maxBytes        int
	brightThreshold float32
	brightFraction  float64
}

func NewOptimizedGate(cfg *config.OptimizerConfig) *OptimizedGate {
	return &OptimizedGate{
		canvasSize:      cfg.CanvasSize,
		maxBytes:        cfg.SkipMaxKB * 1024,
		brightThreshold: float32(cfg.BrightThreshold),
		brightFraction:  cfg.BrightFraction,
	}
}

// IsAlreadyOptimized 字节数小于上限、尺寸等于画布、且亮像素占比达标
func (g *OptimizedGate) IsAlreadyOptimized(img gocv.Mat, byteLen int) bool {
	if byteLen >= g.maxBytes {
		return false
	}
	if img.Cols() != g.canvasSize || img.Rows() != g.canvasSize {
		return false
	}

	return g.BrightRatio(img) >= g.brightFraction
}

// BrightRatio 亮度超过阈值的像素比例
func (g *OptimizedGate) BrightRatio(img gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, g.brightThreshold, 255, gocv.ThresholdBinary)

	total := img.Rows() * img.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(bright)) / float64(total)
}
