package service

import (
	"context"
	"time"
)

// ProcessLimiter 限制同时运行的优化流程数量，排队超时即拒绝
type ProcessLimiter struct {
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewProcessLimiter(maxConcurrent int, queueTimeout time.Duration) *ProcessLimiter {
	return &ProcessLimiter{
		semaphore:    make(chan struct{}, max(1, maxConcurrent)),
		queueTimeout: queueTimeout,
	}
}

// Acquire 获取执行槽位，返回的函数用于释放
func (l *ProcessLimiter) Acquire(ctx context.Context) (func(), error) {
	if l.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.queueTimeout)
		defer cancel()
	}

	select {
	case l.semaphore <- struct{}{}:
		return func() { <-l.semaphore }, nil
	case <-ctx.Done():
		return nil, ErrQueueTimeout
	}
}
