package scenario

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsymmetricFuel(t *testing.T) {
	left, right := AsymmetricFuel(25, 25, 0)
	assert.Equal(t, 25.0, left)
	assert.Equal(t, 25.0, right)

	left, right = AsymmetricFuel(25, 25, 10)
	assert.InDelta(t, 24.5, left, 1e-9)
	assert.InDelta(t, 23.5, right, 1e-9)
	assert.Greater(t, left, right)

	// Long exposure clamps at empty.
	left, right = AsymmetricFuel(25, 25, 10000)
	assert.Equal(t, 0.0, left)
	assert.Equal(t, 0.0, right)
}

func TestFluctuateDown(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for elapsed := 0.0; elapsed <= 60; elapsed += 0.5 {
		v := PrecursorValue(PatternFluctuateDown, 80, elapsed, rng)
		assert.GreaterOrEqual(t, v, 30.0)
		assert.LessOrEqual(t, v, 80-(elapsed/15)*20+5+1e-9)
	}
}

func TestGradualDrop(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v0 := PrecursorValue(PatternGradualDrop, 2400, 0, rng)
	assert.InDelta(t, 2400, v0, 1.0)

	for elapsed := 0.0; elapsed <= 120; elapsed += 1 {
		v := PrecursorValue(PatternGradualDrop, 2400, elapsed, rng)
		assert.GreaterOrEqual(t, v, 2300.0)
	}
}

func TestDischarge(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := PrecursorValue(PatternDischarge, 0, 0, rng)
	assert.InDelta(t, -5, v, 1.0)

	for elapsed := 0.0; elapsed <= 60; elapsed += 1 {
		v := PrecursorValue(PatternDischarge, 0, elapsed, rng)
		assert.GreaterOrEqual(t, v, -20.0)
		assert.Negative(t, v)
	}
}

func TestUnknownPatternReturnsBaseline(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, 5.0, PrecursorValue(Pattern("nonsense"), 5.0, 30, rng))
}

func TestAlertValue(t *testing.T) {
	v, ok := AlertValue("oil_p")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = AlertValue("rpm")
	assert.True(t, ok)
	assert.Equal(t, 2100.0, v)

	_, ok = AlertValue("fuel_qty")
	assert.False(t, ok)
}
