package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// OptimizerVersion 写入指标与记录
const OptimizerVersion = "2.1.0-grabcut"

// OptimizeOptions 单次优化的可选输入
type OptimizeOptions struct {
	Filename      string
	ActualWeightG *float64
	DimensionsCm  *Dimensions
}

// Optimizer 主流程：快速路径 → 分割 → 重构 → 编码 → 运费估算
type Optimizer struct {
	cfg        *config.OptimizerConfig
	gate       *OptimizedGate
	segmenter  Segmenter
	recomposer *Recomposer
	encode     func(gocv.Mat, ByteWindow) (EncodeResult, error)
	logger     *zap.Logger
}

func NewOptimizer(cfg *config.OptimizerConfig, segmenter Segmenter, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if segmenter == nil {
		segmenter = NullSegmenter{}
	}
	// 分割失败只会降级为无掩码
	if _, ok := segmenter.(*ChainSegmenter); !ok {
		segmenter = NewChainSegmenter(logger, segmenter)
	}
	return &Optimizer{
		cfg:        cfg,
		gate:       NewOptimizedGate(cfg),
		segmenter:  segmenter,
		recomposer: NewRecomposer(cfg, logger),
		encode:     NewEncoder(cfg.MinQuality, cfg.MaxQuality, cfg.FallbackQuality).Encode,
		logger:     logger,
	}
}

// Optimize 返回优化后的字节与指标。
// 解码失败返回 ErrDecode 且没有指标；其余失败返回 *PipelineError。
func (o *Optimizer) Optimize(data []byte, opts OptimizeOptions) (out []byte, _ *model.PipelineMetrics, err error) {
	if err := ValidateShippingInput(opts.ActualWeightG, opts.DimensionsCm); err != nil {
		return nil, nil, err
	}

	start := time.Now()

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		if err == nil {
			img.Close()
		}
		return nil, nil, ErrDecode
	}
	defer img.Close()

	metrics := &model.PipelineMetrics{
		InputSizeBytes:   len(data),
		InputDimensions:  model.Dimensions{Width: img.Cols(), Height: img.Rows()},
		OptimizerVersion: OptimizerVersion,
		StageMetrics:     map[string]any{},
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
		if err != nil {
			metrics.ProcessingTimeMs = elapsedMs(start)
			metrics.Error = err.Error()
			o.logger.Error("optimization failed",
				zap.String("filename", opts.Filename),
				zap.Error(err))
			out, err = nil, &PipelineError{Metrics: metrics, Err: err}
		}
	}()

	// 已是规范图片，原样返回
	if o.gate.IsAlreadyOptimized(img, len(data)) {
		metrics.StageMetrics["optimization_skipped"] = true
		metrics.OutputSizeBytes = len(data)
		metrics.OutputDimensions = metrics.InputDimensions
		metrics.SizeReductionPercent = 0
		metrics.Cost = o.estimate(img.Cols(), img.Rows(), opts)
		metrics.ProcessingTimeMs = elapsedMs(start)

		o.logger.Info("image already optimized, skipping",
			zap.String("filename", opts.Filename),
			zap.Int("bytes", len(data)))
		return data, metrics, nil
	}
	metrics.StageMetrics["optimization_skipped"] = false

	// 分割
	segStart := time.Now()
	mask, found := o.segmenter.Segment(img)
	defer mask.Close()
	metrics.StageMetrics["product_detected"] = found
	metrics.StageMetrics["segmentation_strategy"] = StrategyNone
	if found {
		metrics.StageMetrics["segmentation_strategy"] = mask.Strategy
	}
	metrics.StageMetrics["segmentation_ms"] = elapsedMs(segStart)

	// 裁剪、白底、锐化
	canvas, stats := o.recomposer.Recompose(img, mask)
	defer canvas.Close()
	metrics.StageMetrics["crop_applied"] = stats.CropApplied
	metrics.StageMetrics["background_replaced"] = stats.BackgroundReplaced
	metrics.StageMetrics["sharpen_scope"] = stats.SharpenScope

	// 编码
	encoded, err := o.encode(canvas, Ceiling(o.cfg.MaxOutputKB*1024))
	if err != nil {
		return nil, nil, fmt.Errorf("encode output: %w", err)
	}
	metrics.StageMetrics["encode_quality"] = encoded.Quality
	metrics.StageMetrics["encode_within_target"] = encoded.WithinWindow
	metrics.StageMetrics["encode_attempts"] = encoded.Attempts

	metrics.OutputSizeBytes = len(encoded.Data)
	metrics.OutputDimensions = model.Dimensions{Width: canvas.Cols(), Height: canvas.Rows()}
	metrics.SizeReductionPercent = reductionPercent(len(data), len(encoded.Data))
	metrics.Cost = o.estimate(canvas.Cols(), canvas.Rows(), opts)
	metrics.ProcessingTimeMs = elapsedMs(start)

	o.logger.Info("image optimized",
		zap.String("filename", opts.Filename),
		zap.Int("input_bytes", metrics.InputSizeBytes),
		zap.Int("output_bytes", metrics.OutputSizeBytes),
		zap.Bool("product_detected", found),
		zap.Int("quality", encoded.Quality),
		zap.Float64("elapsed_ms", metrics.ProcessingTimeMs))

	return encoded.Data, metrics, nil
}

func (o *Optimizer) estimate(width, height int, opts OptimizeOptions) *model.CostEstimate {
	dims := DimensionsFromPixels(width, height)
	if opts.DimensionsCm != nil {
		dims = *opts.DimensionsCm
	}
	cost := EstimateShippingCost(dims, opts.ActualWeightG)
	return &cost
}

// IsPipelineError 取出失败时的部分指标
func IsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func reductionPercent(inputBytes, outputBytes int) float64 {
	if inputBytes == 0 {
		return 0
	}
	return float64(inputBytes-outputBytes) / float64(inputBytes) * 100
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
