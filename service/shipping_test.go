package service

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestEstimateShippingCostVolumetricFloor(t *testing.T) {
	dims := Dimensions{LengthCm: 150, WidthCm: 100, DepthCm: 100}

	est := EstimateShippingCost(dims, ptr(50))
	assert.InDelta(t, 300, est.VolumetricWeightG, 1e-9)
	assert.InDelta(t, 300, est.BillableWeightG, 1e-9)
	assert.Equal(t, 45, est.ShippingCost)
	require.NotNil(t, est.ActualWeightG)
	assert.InDelta(t, 50, *est.ActualWeightG, 1e-9)
}

func TestEstimateShippingCostActualHeavier(t *testing.T) {
	est := EstimateShippingCost(DimensionsFromPixels(1200, 1200), ptr(1500))

	assert.InDelta(t, 0.16, est.VolumetricWeightG, 1e-9)
	assert.InDelta(t, 1500, est.BillableWeightG, 1e-9)
	assert.Equal(t, 85, est.ShippingCost)
}

func TestEstimateShippingCostWithoutActual(t *testing.T) {
	est := EstimateShippingCost(Dimensions{LengthCm: 100, WidthCm: 100, DepthCm: 100}, nil)

	assert.Nil(t, est.ActualWeightG)
	assert.InDelta(t, 200, est.BillableWeightG, 1e-9)
	assert.Equal(t, 45, est.ShippingCost)
}

func TestBillableNeverBelowVolumetric(t *testing.T) {
	dims := Dimensions{LengthCm: 40, WidthCm: 30, DepthCm: 20}
	for _, actual := range []*float64{nil, ptr(0), ptr(1), ptr(479), ptr(480), ptr(10_000)} {
		est := EstimateShippingCost(dims, actual)
		assert.GreaterOrEqual(t, est.BillableWeightG, est.VolumetricWeightG)
	}
}

func TestShippingCostTiers(t *testing.T) {
	cases := []struct {
		weight float64
		cost   int
	}{
		{0, 45}, {500, 45}, {500.01, 65}, {1000, 65}, {1000.5, 85}, {2000, 85}, {2000.1, 110}, {1e6, 110},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.cost, ShippingCostForWeight(tc.weight), "weight %v", tc.weight)
	}
}

func TestShippingCostMonotonic(t *testing.T) {
	prev := ShippingCostForWeight(0)
	for w := 0.0; w <= 3000; w += 7.5 {
		cost := ShippingCostForWeight(w)
		assert.GreaterOrEqual(t, cost, prev, "weight %v", w)
		prev = cost
	}
}

func TestValidateShippingInput(t *testing.T) {
	assert.NoError(t, ValidateShippingInput(nil, nil))
	assert.NoError(t, ValidateShippingInput(ptr(0), &Dimensions{LengthCm: 1, WidthCm: 2, DepthCm: 3}))

	for _, err := range []error{
		ValidateShippingInput(ptr(-1), nil),
		ValidateShippingInput(ptr(math.NaN()), nil),
		ValidateShippingInput(ptr(math.Inf(1)), nil),
		ValidateShippingInput(nil, &Dimensions{LengthCm: 10, WidthCm: -2, DepthCm: 1}),
		ValidateShippingInput(nil, &Dimensions{LengthCm: 10, WidthCm: 2, DepthCm: math.NaN()}),
	} {
		assert.True(t, errors.Is(err, ErrInvalidShippingInput), "got %v", err)
	}
}
