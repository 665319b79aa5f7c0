package service

import (
	"image"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBadgesStayInCorners(t *testing.T) {
	const w, h = 1200, 1200
	center := image.Rect(w*3/10, h*3/10, w*7/10, h*7/10)
	bounds := image.Rect(0, 0, w, h)

	for seed := uint64(1); seed <= 500; seed++ {
		badges := planBadges(w, h, rand.New(rand.NewPCG(seed, 4)))
		require.NotEmpty(t, badges)
		require.LessOrEqual(t, len(badges), 2)

		corners := map[int]bool{}
		for _, b := range badges {
			assert.True(t, b.Rect.In(bounds), "seed %d: %v outside image", seed, b.Rect)
			assert.False(t, b.Rect.Overlaps(center), "seed %d: %v covers center", seed, b.Rect)
			assert.False(t, corners[b.Corner])
			corners[b.Corner] = true
		}

		size := badges[0].Rect.Dx()
		if len(badges) == 2 {
			assert.Equal(t, int(float64(int(w*badgeSizeRatio))*badgePairScale), size)
			assert.False(t, badges[0].Rect.Overlaps(badges[1].Rect))
		} else {
			assert.Equal(t, int(w*badgeSizeRatio), size)
		}
	}
}

func TestPlanBadgesDeterministic(t *testing.T) {
	a := planBadges(800, 600, rand.New(rand.NewPCG(42, 9)))
	b := planBadges(800, 600, rand.New(rand.NewPCG(42, 9)))
	assert.Equal(t, a, b)
}

func TestPlanBadgesTinyImage(t *testing.T) {
	assert.Empty(t, planBadges(20, 20, rand.New(rand.NewPCG(1, 1))))
}

func TestRenderBadge(t *testing.T) {
	for _, shape := range []badgeShape{badgeSeal, badgeStarburst} {
		badge := badgePlacement{
			Rect:  image.Rect(0, 0, 200, 200),
			Shape: shape,
			Text:  "SALE",
			Color: badgeColors[0],
		}
		img, err := renderBadge(badge)
		require.NoError(t, err)

		assert.Equal(t, uint8(0), img.RGBAAt(0, 0).A, "corner stays transparent")
		assert.Equal(t, uint8(255), img.RGBAAt(100, 30).A, "badge body is opaque")
	}
}
