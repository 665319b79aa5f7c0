package service

import (
	"errors"

	"github.com/TIANLI0/ShipKit/model"
)

var (
	ErrDecode               = errors.New("failed to decode image")
	ErrInvalidShippingInput = errors.New("invalid shipping input")
	ErrUnknownLayout        = errors.New("unknown grid layout")
	ErrQueueTimeout         = errors.New("processing queue is full, please retry later")
)

// PipelineError 流程失败时携带已填充的部分指标
type PipelineError struct {
	Metrics *model.PipelineMetrics
	Err     error
}

func (e *PipelineError) Error() string {
	return "optimization pipeline failed: " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
