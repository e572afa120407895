package location

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(27.70, 85.32, 27.70, 85.32))
}

func TestHaversineKm_AntipodalIsHalfCircumference(t *testing.T) {
	d := HaversineKm(0, 0, 0, 180)
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.001)
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Kathmandu to Pokhara is roughly 140 km as the crow flies.
	d := HaversineKm(27.7172, 85.3240, 28.2096, 83.9856)
	assert.InDelta(t, 142, d, 5)
}

func TestBoxAroundKm_Equator(t *testing.T) {
	b := BoxAroundKm(0, 0, KmPerDegree)
	assert.InDelta(t, -1, b.MinLat, 1e-9)
	assert.InDelta(t, 1, b.MaxLat, 1e-9)
	assert.InDelta(t, -1, b.MinLng, 1e-9)
	assert.InDelta(t, 1, b.MaxLng, 1e-9)
}

func TestBoxAroundKm_LongitudeWidensWithLatitude(t *testing.T) {
	b := BoxAroundKm(60, 10, 10)
	dLat := b.MaxLat - 60
	dLng := b.MaxLng - 10
	assert.InDelta(t, 2*dLat, dLng, 1e-9)
}

func TestBoxAroundKm_ZeroRadiusIsPoint(t *testing.T) {
	b := BoxAroundKm(27.7, 85.3, 0)
	assert.True(t, b.Contains(27.7, 85.3))
	assert.False(t, b.Contains(27.7, 85.30001))
}

func TestBoxAroundKm_NegativeRadiusMatchesNothing(t *testing.T) {
	b := BoxAroundKm(27.7, 85.3, -5)
	assert.True(t, b.Empty())
	assert.False(t, b.Contains(27.7, 85.3))
}

func TestBoxAroundKm_PoleCoversAllLongitudes(t *testing.T) {
	b := BoxAroundKm(90, 45, 10)
	assert.Equal(t, -180.0, b.MinLng)
	assert.Equal(t, 180.0, b.MaxLng)
	assert.True(t, b.Contains(89.95, -170))

	near := BoxAroundKm(89.99, 0, 50)
	assert.Equal(t, -180.0, near.MinLng)
	assert.Equal(t, 180.0, near.MaxLng)
}

func TestBoxAroundDegrees(t *testing.T) {
	b := BoxAroundDegrees(27.705, 85.325, 0.1)
	assert.True(t, b.Contains(27.70, 85.32))
	assert.False(t, b.Contains(28.90, 85.32))
}
