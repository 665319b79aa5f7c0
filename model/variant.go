package model

// VariantInfo 描述一个变体在网格中的位置
type VariantInfo struct {
	TileIndex    int    `json:"tile_index"`
	VariantIndex int    `json:"variant_index"`
	GlobalIndex  int    `json:"index"`
	VariantType  string `json:"variant_type"`
	Tone         string `json:"tone,omitempty"`
	TileName     string `json:"tile_name"`
	VariantLabel string `json:"variant_label"`
}

// Variant 编码完成的变体
type Variant struct {
	VariantInfo
	Data         []byte     `json:"-"`
	Quality      int        `json:"quality"`
	WithinTarget bool       `json:"within_target"`
	Dimensions   Dimensions `json:"dimensions"`
}

// VariantEvent SSE variant 事件负载
type VariantEvent struct {
	VariantInfo
	SizeBytes int    `json:"size_bytes"`
	Quality   int    `json:"quality"`
	Image     string `json:"image"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// StatusEvent SSE status 事件负载
type StatusEvent struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
}

// VariantErrorEvent SSE error 事件负载
type VariantErrorEvent struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Index       int    `json:"variant_index"`
}

// CompleteEvent SSE complete 事件负载
type CompleteEvent struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}
