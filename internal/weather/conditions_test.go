package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapIcon(t *testing.T) {
	tests := map[string]string{
		"01d": "sun.max.fill",
		"01n": "moon.fill",
		"02d": "cloud.sun.fill",
		"02n": "cloud.moon.fill",
		"03n": "cloud.fill",
		"04d": "smoke.fill",
		"09n": "cloud.drizzle.fill",
		"10d": "cloud.rain.fill",
		"11n": "cloud.bolt.rain.fill",
		"13d": "snowflake",
		"50n": "cloud.fog.fill",
		"":    FallbackIcon,
		"99x": FallbackIcon,
		"01":  FallbackIcon,
	}
	for code, want := range tests {
		assert.Equal(t, want, MapIcon(code), "icon %q", code)
	}
}

func TestMapEffect(t *testing.T) {
	tests := []struct {
		id   int
		want EffectKind
	}{
		{0, EffectNone},
		{200, EffectThunderstorm},
		{232, EffectThunderstorm},
		{300, EffectLightRain},
		{321, EffectLightRain},
		{500, EffectRain},
		{504, EffectRain},
		{511, EffectSnow},
		{520, EffectRain},
		{531, EffectRain},
		{600, EffectSnow},
		{622, EffectSnow},
		{701, EffectFog},
		{781, EffectFog},
		{800, EffectNone},
		{801, EffectLeaves},
		{804, EffectLeaves},
		{900, EffectNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapEffect(tt.id), "condition %d", tt.id)
	}
}

func TestBackgroundArt(t *testing.T) {
	tests := []struct {
		icon, main string
		want       string
	}{
		{"01d", "Clear", ArtClear},
		{"02n", "Clouds", ArtPartlyCloudy},
		{"04d", "Clouds", ArtCloudy},
		{"11d", "Thunderstorm", ArtRain},
		{"13n", "Snow", ArtSnow},
		{"50d", "Mist", ArtFog},
		// icon wins over text
		{"01d", "Rain", ArtClear},
		{"", "Drizzle", ArtRain},
		{"", "Haze", ArtFog},
		{"", "Clear", ArtClear},
		{"", "Clouds", ArtCloudy},
		{"", "Tornado", ArtDefault},
		{"", "", ArtDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BackgroundArt(tt.icon, tt.main), "icon %q main %q", tt.icon, tt.main)
	}
}

func TestEffectForArt(t *testing.T) {
	kind, ok := EffectForArt(ArtRain)
	assert.True(t, ok)
	assert.Equal(t, EffectRain, kind)

	kind, ok = EffectForArt(ArtCloudy)
	assert.True(t, ok)
	assert.Equal(t, EffectLeaves, kind)

	_, ok = EffectForArt(ArtDefault)
	assert.False(t, ok)
}

func TestIsNight(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 3, 4, h, 30, 0, 0, time.UTC) }

	assert.True(t, IsNight(at(20)))
	assert.True(t, IsNight(at(2)))
	assert.False(t, IsNight(at(6)))
	assert.False(t, IsNight(at(19)))
}

func TestSummarizeCurrentUsesSunTimes(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cur := Current{
		Place:   "Las Vegas",
		Country: "US",
		Sample: RawSample{
			Temperature:          38.6,
			ConditionID:          800,
			ConditionMain:        "Clear",
			ConditionIcon:        "01d",
			ConditionDescription: "clear sky",
		},
		Sunrise: day.Add(5 * time.Hour),
		Sunset:  day.Add(22 * time.Hour),
	}

	// 21:00 is night by the clock but before sunset
	got := SummarizeCurrent(cur, day.Add(21*time.Hour), false)
	assert.False(t, got.Night)
	assert.Equal(t, 39, got.Temperature)
	assert.Equal(t, "Clear Sky", got.Condition)
	assert.Equal(t, "sun.max.fill", got.Icon)
	assert.Equal(t, ArtClear, got.Art)

	got = SummarizeCurrent(cur, day.Add(23*time.Hour), false)
	assert.True(t, got.Night)

	cur.Sunrise, cur.Sunset = time.Time{}, time.Time{}
	got = SummarizeCurrent(cur, day.Add(21*time.Hour), true)
	assert.True(t, got.Night)
	assert.True(t, got.IsFahrenheit)
}
