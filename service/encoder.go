package service

import (
	"bytes"
	"fmt"

	"gocv.io/x/gocv"
)

// ByteWindow 目标字节区间，Min 为 0 时只有上限
type ByteWindow struct {
	Min int
	Max int
}

// Ceiling 只有上限的窗口
func Ceiling(maxBytes int) ByteWindow {
	return ByteWindow{Max: maxBytes}
}

func (w ByteWindow) contains(n int) bool {
	return n >= w.Min && n <= w.Max
}

// EncodeResult 编码结果
type EncodeResult struct {
	Data         []byte
	Quality      int
	WithinWindow bool
	Attempts     int
}

// Encoder 以二分搜索 JPEG 质量的方式把图像压进字节窗口
type Encoder struct {
	minQuality      int
	maxQuality      int
	fallbackQuality int
}

func NewEncoder(minQuality, maxQuality, fallbackQuality int) *Encoder {
	return &Encoder{
		minQuality:      minQuality,
		maxQuality:      maxQuality,
		fallbackQuality: fallbackQuality,
	}
}

// EncodeJPEG 以固定质量编码
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	params := []int{int(gocv.IMWriteJpegQuality), quality, int(gocv.IMWriteJpegOptimize), 1}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, params)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode at quality %d: %w", quality, err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// Encode 返回窗口内的结果；无法命中时依次退回到
// 不超过上限的最大编码、不低于下限的最小编码、固定质量编码
func (e *Encoder) Encode(img gocv.Mat, win ByteWindow) (EncodeResult, error) {
	var bestUnder, bestOver *EncodeResult
	attempts := 0

	lo, hi := e.minQuality, e.maxQuality
	for lo <= hi {
		q := (lo + hi) / 2
		data, err := EncodeJPEG(img, q)
		if err != nil {
			return EncodeResult{}, err
		}
		attempts++
		size := len(data)

		candidate := EncodeResult{Data: data, Quality: q, WithinWindow: win.contains(size)}
		if win.Min > 0 && candidate.WithinWindow {
			candidate.Attempts = attempts
			return candidate, nil
		}

		if size <= win.Max {
			if bestUnder == nil || size > len(bestUnder.Data) {
				bestUnder = &candidate
			}
			lo = q + 1
		} else {
			if size >= win.Min && (bestOver == nil || size < len(bestOver.Data)) {
				bestOver = &candidate
			}
			hi = q - 1
		}
	}

	switch {
	case bestUnder != nil:
		bestUnder.Attempts = attempts
		return *bestUnder, nil
	case bestOver != nil:
		bestOver.Attempts = attempts
		return *bestOver, nil
	}

	data, err := EncodeJPEG(img, e.fallbackQuality)
	if err != nil {
		return EncodeResult{}, err
	}
	return EncodeResult{
		Data:         data,
		Quality:      e.fallbackQuality,
		WithinWindow: win.contains(len(data)),
		Attempts:     attempts + 1,
	}, nil
}
