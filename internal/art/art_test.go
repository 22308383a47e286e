package art

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/forecast-summary/internal/weather"
)

func TestResolverDefaults(t *testing.T) {
	r := NewResolver("", "")
	assert.Equal(t, DefaultPrefix, r.Prefix)
	assert.Equal(t, DefaultBucket, r.Bucket)
	assert.Equal(t, "default_rain", r.Name(weather.ArtRain))
}

func TestResolverURL(t *testing.T) {
	r := NewResolver("night_", "my-bucket.appspot.com")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/my-bucket.appspot.com/o/backgrounds%2Fnight_fog.png?alt=media",
		r.URL(weather.ArtFog))
}

func TestResolverForIcon(t *testing.T) {
	r := NewResolver("", "")

	a := r.ForIcon("10n", "Rain")
	assert.Equal(t, weather.ArtRain, a.Base)
	assert.Equal(t, "default_rain", a.Name)
	assert.Equal(t, weather.EffectRain, a.Effect)
	assert.Contains(t, a.URL, "backgrounds%2Fdefault_rain.png")

	a = r.ForIcon("", "Tornado")
	assert.Equal(t, weather.ArtDefault, a.Base)
	assert.Equal(t, weather.EffectNone, a.Effect)
}
