package model

// Dimensions 像素尺寸
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CostEstimate 运费估算结果
type CostEstimate struct {
	ActualWeightG     *float64 `json:"actual_weight_g"`
	VolumetricWeightG float64  `json:"volumetric_weight_g"`
	BillableWeightG   float64  `json:"billable_weight_g"`
	ShippingCost      int      `json:"shipping_cost"`
}

// PipelineMetrics 单次优化的指标，失败时也会部分填充
type PipelineMetrics struct {
	InputSizeBytes       int            `json:"input_size_bytes"`
	OutputSizeBytes      int            `json:"output_size_bytes"`
	InputDimensions      Dimensions     `json:"input_dimensions"`
	OutputDimensions     Dimensions     `json:"output_dimensions"`
	ProcessingTimeMs     float64        `json:"processing_time_ms"`
	SizeReductionPercent float64        `json:"size_reduction_percent"`
	Cost                 *CostEstimate  `json:"cost_fields,omitempty"`
	OptimizerVersion     string         `json:"optimizer_version"`
	StageMetrics         map[string]any `json:"stage_metrics"`
	Error                string         `json:"error,omitempty"`
}

// Skipped 是否命中已优化快速路径
func (m *PipelineMetrics) Skipped() bool {
	skipped, _ := m.StageMetrics["optimization_skipped"].(bool)
	return skipped
}

// OptimizeResult 优化接口的返回数据，同时作为缓存内容
type OptimizeResult struct {
	MD5         string           `json:"md5"`
	RecordID    string           `json:"record_id,omitempty"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"content_type"`
	Image       []byte           `json:"image"`
	Metrics     *PipelineMetrics `json:"metrics"`
	Timestamp   int64            `json:"timestamp"`
}
