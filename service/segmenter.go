package service

import (
	"fmt"

	"github.com/TIANLI0/ShipKit/config"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 分割策略名称
const (
	StrategyGrabCut = "grabcut"
	StrategyEdge    = "edge"
	StrategyNone    = "none"
)

// edgeMarginRatio 边缘策略的外扩比例（相对 min(w,h)）
const edgeMarginRatio = 0.10

// Segmenter 产品分割策略。返回 false 表示没有找到产品。
type Segmenter interface {
	Name() string
	Segment(img gocv.Mat) (*ProductMask, bool)
}

// NewSegmenter 按配置选择分割策略
func NewSegmenter(cfg *config.GrabCutConfig, logger *zap.Logger) (Segmenter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Strategy {
	case StrategyGrabCut, "":
		return NewChainSegmenter(logger,
			NewGrabCutSegmenter(cfg, logger),
			NewEdgeSegmenter(),
		), nil
	case StrategyEdge:
		return NewChainSegmenter(logger, NewEdgeSegmenter()), nil
	case StrategyNone:
		return NullSegmenter{}, nil
	default:
		return nil, fmt.Errorf("unknown segmentation strategy %q", cfg.Strategy)
	}
}

// EdgeSegmenter 只做裁剪的兜底策略：最大轮廓的外扩边界框
type EdgeSegmenter struct {
	maskProcessor *MaskProcessor
}

func NewEdgeSegmenter() *EdgeSegmenter {
	return &EdgeSegmenter{maskProcessor: NewMaskProcessor()}
}

func (s *EdgeSegmenter) Name() string { return StrategyEdge }

func (s *EdgeSegmenter) Segment(img gocv.Mat) (*ProductMask, bool) {
	width := img.Cols()
	height := img.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	if gocv.CountNonZero(edges) == 0 {
		return nil, false
	}

	box, ok := s.maskProcessor.LargestRegion(&edges)
	if !ok {
		return nil, false
	}

	margin := int(float64(min(width, height)) * edgeMarginRatio)
	box = ExpandRect(box, margin, width, height)
	if box.Empty() {
		return nil, false
	}

	return &ProductMask{
		Mat:      s.maskProcessor.RectMask(width, height, box),
		Strategy: StrategyEdge,
	}, true
}

// ChainSegmenter 依次尝试各策略，返回第一个掩码
type ChainSegmenter struct {
	stages []Segmenter
	logger *zap.Logger
}

func NewChainSegmenter(logger *zap.Logger, stages ...Segmenter) *ChainSegmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainSegmenter{stages: stages, logger: logger}
}

func (c *ChainSegmenter) Name() string {
	if len(c.stages) == 0 {
		return StrategyNone
	}
	return c.stages[0].Name()
}

func (c *ChainSegmenter) Segment(img gocv.Mat) (*ProductMask, bool) {
	for _, stage := range c.stages {
		mask, ok := c.try(stage, img)
		if ok {
			return mask, true
		}
		c.logger.Debug("segmentation stage found no product", zap.String("strategy", stage.Name()))
	}
	return nil, false
}

// try 策略内部 panic 视为没有掩码
func (c *ChainSegmenter) try(stage Segmenter, img gocv.Mat) (mask *ProductMask, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("segmentation stage panicked",
				zap.String("strategy", stage.Name()),
				zap.Any("panic", r))
			mask, ok = nil, false
		}
	}()

	mask, ok = stage.Segment(img)
	if ok && (mask == nil || mask.Mat.Empty() || !sameSize(mask.Mat, img)) {
		mask.Close()
		return nil, false
	}
	return mask, ok
}

// NullSegmenter 从不返回掩码
type NullSegmenter struct{}

func (NullSegmenter) Name() string { return StrategyNone }

func (NullSegmenter) Segment(gocv.Mat) (*ProductMask, bool) { return nil, false }

func sameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}
