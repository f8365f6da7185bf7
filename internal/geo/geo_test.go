package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/socialtinder/internal/geo"
)

func TestDistance(t *testing.T) {
	// London -> Paris is roughly 344 km
	d := geo.Distance(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 343.6, d, 1.0)

	assert.Zero(t, geo.Distance(10, 10, 10, 10))

	// symmetric
	assert.InDelta(t, d, geo.Distance(48.8566, 2.3522, 51.5074, -0.1278), 1e-9)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 343.6, geo.Round1(343.5561))
	assert.Equal(t, 0.1, geo.Round1(0.05))
}
