package service

import (
	"fmt"
	"math"

	"github.com/TIANLI0/ShipKit/model"
)

const (
	// PixelsToCm 1200 像素对应 20 厘米
	PixelsToCm        = 20.0 / 1200.0
	DefaultDepthCm    = 2.0
	VolumetricDivisor = 5000.0
)

// shippingTiers 计费重量上限（含）与运费
var shippingTiers = []struct {
	maxWeightG float64
	cost       int
}{
	{500, 45},
	{1000, 65},
	{2000, 85},
}

const maxTierCost = 110

// Dimensions 包裹尺寸（厘米）
type Dimensions struct {
	LengthCm float64
	WidthCm  float64
	DepthCm  float64
}

// DimensionsFromPixels 按固定比例由像素尺寸换算，深度取默认值
func DimensionsFromPixels(width, height int) Dimensions {
	return Dimensions{
		LengthCm: float64(width) * PixelsToCm,
		WidthCm:  float64(height) * PixelsToCm,
		DepthCm:  DefaultDepthCm,
	}
}

// VolumetricWeight 体积重（克）
func (d Dimensions) VolumetricWeight() float64 {
	return d.LengthCm * d.WidthCm * d.DepthCm / VolumetricDivisor
}

// ShippingCostForWeight 计费重量对应的运费档位
func ShippingCostForWeight(billableG float64) int {
	for _, tier := range shippingTiers {
		if billableG <= tier.maxWeightG {
			return tier.cost
		}
	}
	return maxTierCost
}

// EstimateShippingCost 体积重是计费重量的下限
func EstimateShippingCost(dims Dimensions, actualWeightG *float64) model.CostEstimate {
	volumetric := dims.VolumetricWeight()
	billable := volumetric
	if actualWeightG != nil {
		billable = math.Max(*actualWeightG, volumetric)
	}

	var actual *float64
	if actualWeightG != nil {
		v := *actualWeightG
		actual = &v
	}

	return model.CostEstimate{
		ActualWeightG:     actual,
		VolumetricWeightG: volumetric,
		BillableWeightG:   billable,
		ShippingCost:      ShippingCostForWeight(billable),
	}
}

// ValidateShippingInput 拒绝负数、NaN 与无穷大
func ValidateShippingInput(actualWeightG *float64, dims *Dimensions) error {
	if actualWeightG != nil {
		if err := checkMeasure("actual_weight_g", *actualWeightG); err != nil {
			return err
		}
	}
	if dims != nil {
		for _, m := range []struct {
			name  string
			value float64
		}{
			{"length_cm", dims.LengthCm},
			{"width_cm", dims.WidthCm},
			{"depth_cm", dims.DepthCm},
		} {
			if err := checkMeasure(m.name, m.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkMeasure(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidShippingInput, name, v)
	}
	return nil
}
