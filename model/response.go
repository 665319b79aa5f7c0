package model

// OptimizeResponse 优化响应
type OptimizeResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *OptimizeResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
