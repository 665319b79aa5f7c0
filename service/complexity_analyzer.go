package service

import (
	"gocv.io/x/gocv"
)

// featureless 判定阈值：没有任何边缘且颜色几乎不变
const (
	featurelessEdgeDensity   = 0.0005
	featurelessColorVariance = 2.0
)

// ComplexityAnalyzer 负责分析图像的复杂度
type ComplexityAnalyzer struct{}

type ComplexityInfo struct {
	EdgeDensity   float64
	ColorVariance float64
}

// NewComplexityAnalyzer 创建一个新的ComplexityAnalyzer实例
func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{}
}

// Analyze 分析图像的复杂度
func (ca *ComplexityAnalyzer) Analyze(img *gocv.Mat) ComplexityInfo {
	return ComplexityInfo{
		EdgeDensity:   ca.calculateEdgeDensity(img),
		ColorVariance: ca.calculateColorVariance(img),
	}
}

// IsFeatureless 空白图像没有可分割的产品
func (ci ComplexityInfo) IsFeatureless() bool {
	return ci.EdgeDensity < featurelessEdgeDensity && ci.ColorVariance < featurelessColorVariance
}

// calculateEdgeDensity 计算图像的边缘密度
func (ca *ComplexityAnalyzer) calculateEdgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	edgePixels := float64(gocv.CountNonZero(edges))
	totalPixels := float64(img.Rows() * img.Cols())

	return edgePixels / totalPixels
}

// calculateColorVariance 计算图像的颜色标准差均值
func (ca *ComplexityAnalyzer) calculateColorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	variance := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		variance += stddev.GetDoubleAt(i, 0)
	}

	return variance / float64(stddev.Rows())
}
