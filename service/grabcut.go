package service

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"sort"

	"github.com/TIANLI0/ShipKit/config"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	// 参与聚类的前景像素下限与采样上限
	minClusterSamples = 100
	maxClusterSamples = 20000
	colorMaskKernel   = 5
	colorMaskDilate   = 2
	// 工作图短边下限，过小时 GrabCut 的 GMM 初始化样本不足
	minGrabCutSide = 16
)

var errClusteringFailed = errors.New("color clustering failed")

// GrabCutSegmenter 以居中矩形为种子运行 GrabCut，再用主色聚类精化前景
type GrabCutSegmenter struct {
	iterations         int
	workSize           int
	clusters           int
	colorTolerance     float64
	complexityAnalyzer *ComplexityAnalyzer
	maskProcessor      *MaskProcessor
	logger             *zap.Logger
}

func NewGrabCutSegmenter(cfg *config.GrabCutConfig, logger *zap.Logger) *GrabCutSegmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrabCutSegmenter{
		iterations:         cfg.Iterations,
		workSize:           cfg.WorkSize,
		clusters:           cfg.Clusters,
		colorTolerance:     float64(cfg.ColorTolerance),
		complexityAnalyzer: NewComplexityAnalyzer(),
		maskProcessor:      NewMaskProcessor(),
		logger:             logger,
	}
}

func (s *GrabCutSegmenter) Name() string { return StrategyGrabCut }

// Segment 返回与输入同尺寸的前景掩码
func (s *GrabCutSegmenter) Segment(img gocv.Mat) (*ProductMask, bool) {
	width := img.Cols()
	height := img.Rows()

	// 智能缩放
	work, scale := s.smartResize(&img, s.workSize)
	defer work.Close()

	if min(work.Cols(), work.Rows()) < minGrabCutSide {
		s.logger.Debug("image too small for grabcut",
			zap.Int("width", work.Cols()),
			zap.Int("height", work.Rows()))
		return nil, false
	}

	complexity := s.complexityAnalyzer.Analyze(&work)
	if complexity.IsFeatureless() {
		s.logger.Info("image is featureless, nothing to segment",
			zap.Float64("edge_density", complexity.EdgeDensity),
			zap.Float64("color_variance", complexity.ColorVariance))
		return nil, false
	}

	workWidth := work.Cols()
	workHeight := work.Rows()
	initRect := image.Rect(workWidth/4, workHeight/4, workWidth/4+workWidth/2, workHeight/4+workHeight/2)
	if initRect.Empty() {
		return nil, false
	}

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(work, &mask, initRect, &bgdModel, &fgdModel, s.iterations, gocv.GCInitWithRect)

	probable := s.maskProcessor.ExtractForeground(&mask)
	if gocv.CountNonZero(probable) == 0 {
		probable.Close()
		return nil, false
	}

	fgMask := probable
	refined, err := s.refineByDominantColor(&work, &probable)
	switch {
	case err != nil:
		s.logger.Warn("dominant color refinement skipped", zap.Error(err))
	case gocv.CountNonZero(refined) == 0:
		refined.Close()
	default:
		probable.Close()
		fgMask = refined
	}

	// 还原到原始尺寸
	if scale != 1.0 {
		resized := s.maskProcessor.Resize(&fgMask, width, height)
		fgMask.Close()
		fgMask = resized
	}

	return &ProductMask{Mat: fgMask, Strategy: StrategyGrabCut}, true
}

// refineByDominantColor 对前景像素做 k-means，取成员最多的簇作为主色，
// 以每通道容差构造颜色掩码并膨胀
func (s *GrabCutSegmenter) refineByDominantColor(img, fgMask *gocv.Mat) (gocv.Mat, error) {
	samples := s.foregroundSamples(img, fgMask)
	if len(samples) <= minClusterSamples {
		return gocv.Mat{}, errClusteringFailed
	}

	dominant, err := s.dominantColor(samples)
	if err != nil {
		return gocv.Mat{}, err
	}

	colorMask := s.maskProcessor.ColorMask(img, dominant, s.colorTolerance)
	defer colorMask.Close()

	return s.maskProcessor.Dilate(&colorMask, colorMaskKernel, colorMaskDilate), nil
}

// foregroundSamples 按固定步长抽取前景像素（BGR）
func (s *GrabCutSegmenter) foregroundSamples(img, fgMask *gocv.Mat) [][3]float32 {
	pixels := img.ToBytes()
	maskBytes := fgMask.ToBytes()
	channels := img.Channels()

	count := 0
	for _, v := range maskBytes {
		if v != 0 {
			count++
		}
	}
	stride := max(1, count/maxClusterSamples)

	samples := make([][3]float32, 0, min(count, maxClusterSamples+1))
	seen := 0
	for i, v := range maskBytes {
		if v == 0 {
			continue
		}
		if seen%stride == 0 {
			p := i * channels
			samples = append(samples, [3]float32{float32(pixels[p]), float32(pixels[p+1]), float32(pixels[p+2])})
		}
		seen++
	}
	return samples
}

// dominantColor 聚类并返回成员最多的簇中心。
// 初始标签按亮度三分位给出，结果对同一输入可复现。
func (s *GrabCutSegmenter) dominantColor(samples [][3]float32) ([3]float64, error) {
	n := len(samples)
	k := s.clusters

	data, err := float32Mat(samples)
	if err != nil {
		return [3]float64{}, err
	}
	defer data.Close()

	labels, err := lumaTercileLabels(samples, k)
	if err != nil {
		return [3]float64{}, err
	}
	defer labels.Close()

	centers := gocv.NewMat()
	defer centers.Close()

	criteria := gocv.NewTermCriteria(gocv.EPS+gocv.MaxIter, 20, 1.0)
	gocv.KMeans(data, k, &labels, criteria, 1, gocv.KMeansUseInitialLabels, &centers)

	if labels.Rows() != n || centers.Rows() != k {
		return [3]float64{}, errClusteringFailed
	}

	counts := make([]int, k)
	labelBytes := labels.ToBytes()
	for i := 0; i < n; i++ {
		label := int(int32(binary.LittleEndian.Uint32(labelBytes[i*4:])))
		if label >= 0 && label < k {
			counts[label]++
		}
	}

	best := 0
	for i := 1; i < k; i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}

	dominant := [3]float64{
		float64(centers.GetFloatAt(best, 0)),
		float64(centers.GetFloatAt(best, 1)),
		float64(centers.GetFloatAt(best, 2)),
	}
	for _, c := range dominant {
		if math.IsNaN(c) {
			return [3]float64{}, errClusteringFailed
		}
	}
	return dominant, nil
}

// smartResize 智能缩放图像以适应最大尺寸
func (s *GrabCutSegmenter) smartResize(img *gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}

// float32Mat 构造 N×3 CV32F 样本矩阵
func float32Mat(samples [][3]float32) (gocv.Mat, error) {
	buf := make([]byte, len(samples)*3*4)
	for i, px := range samples {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(buf[(i*3+c)*4:], math.Float32bits(px[c]))
		}
	}

	view, err := gocv.NewMatFromBytes(len(samples), 3, gocv.MatTypeCV32F, buf)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer view.Close()
	return view.Clone(), nil
}

// lumaTercileLabels 按亮度排序后均分为 k 组作为初始标签（N×1 CV32S）
func lumaTercileLabels(samples [][3]float32, k int) (gocv.Mat, error) {
	n := len(samples)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	luma := func(px [3]float32) float32 {
		return 0.114*px[0] + 0.587*px[1] + 0.299*px[2]
	}
	sort.SliceStable(order, func(a, b int) bool {
		return luma(samples[order[a]]) < luma(samples[order[b]])
	})

	buf := make([]byte, n*4)
	for rank, idx := range order {
		label := rank * k / n
		binary.LittleEndian.PutUint32(buf[idx*4:], uint32(label))
	}

	view, err := gocv.NewMatFromBytes(n, 1, gocv.MatTypeCV32S, buf)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer view.Close()
	return view.Clone(), nil
}
