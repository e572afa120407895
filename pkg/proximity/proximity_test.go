package proximity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	id       string
	lat, lng float64
}

func (p point) Coordinates() (float64, float64) { return p.lat, p.lng }

func TestWithin_EveryResultInsideBox(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		q := Radius(r.Float64()*160-80, r.Float64()*340-170, r.Float64()*50)
		pts := make([]point, 100)
		for j := range pts {
			pts[j] = point{lat: q.Latitude + r.Float64()*2 - 1, lng: q.Longitude + r.Float64()*2 - 1}
		}
		box := q.Box()
		got := Within(q, pts)
		inside := 0
		for _, p := range pts {
			if box.Contains(p.lat, p.lng) {
				inside++
			}
		}
		require.Len(t, got, inside)
		for _, c := range got {
			assert.True(t, box.Contains(c.Item.lat, c.Item.lng))
		}
	}
}

func TestWithin_CornerBeyondRadiusStillMatches(t *testing.T) {
	q := Radius(0, 0, 10)
	box := q.Box()
	corner := point{id: "corner", lat: box.MaxLat * 0.99, lng: box.MaxLng * 0.99}
	got := Within(q, []point{corner})
	require.Len(t, got, 1)
	assert.Greater(t, got[0].DistanceKm, 10.0)
}

func TestWithin_DispatchScenario(t *testing.T) {
	q := Degrees(27.705, 85.325, DispatchDegrees)
	near := point{id: "near", lat: 27.70, lng: 85.32}
	far := point{id: "far", lat: 28.90, lng: 85.32}
	got := Within(q, []point{near, far})
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Item.id)
	assert.InDelta(t, 0.74, got[0].DistanceKm, 0.01)
}

func TestWithin_PreservesOrder(t *testing.T) {
	q := Radius(27.7, 85.3, DefaultRadiusKm)
	pts := []point{{id: "a", lat: 27.72, lng: 85.3}, {id: "b", lat: 27.7, lng: 85.3}, {id: "c", lat: 27.69, lng: 85.31}}
	got := Within(q, pts)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Item.id)
	assert.Equal(t, "b", got[1].Item.id)
	assert.Equal(t, 0.0, got[1].DistanceKm)
}

func TestWithin_NonPositiveRadius(t *testing.T) {
	p := point{lat: 27.7, lng: 85.3}
	assert.Len(t, Within(Radius(27.7, 85.3, 0), []point{p}), 1)
	assert.Empty(t, Within(Radius(27.7, 85.3, -1), []point{p}))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Very Close", Describe(1, 10))
	assert.Equal(t, "Nearby", Describe(4, 10))
	assert.Equal(t, "Within Area", Describe(7, 10))
	assert.Equal(t, "Far (within range)", Describe(9, 10))
	assert.Equal(t, "Edge of range", Describe(12, 10))
}
