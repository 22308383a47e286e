package weather

import (
	"strings"
	"time"

	"github.com/i474232898/forecast-summary/internal/common"
)

// FallbackIcon is used for any icon token outside the known table.
const FallbackIcon = "cloud"

// EffectKind is the closed set of decorative animated-effect categories.
type EffectKind string

const (
	EffectNone         EffectKind = "none"
	EffectLightRain    EffectKind = "light_rain"
	EffectRain         EffectKind = "rain"
	EffectSnow         EffectKind = "snow"
	EffectFog          EffectKind = "fog"
	EffectLeaves       EffectKind = "leaves"
	EffectThunderstorm EffectKind = "thunderstorm"
)

// Background art base names. Remote assets are looked up as prefix + name.
const (
	ArtClear        = "clear"
	ArtPartlyCloudy = "partly_cloudy"
	ArtCloudy       = "cloudy"
	ArtRain         = "rain"
	ArtSnow         = "snow"
	ArtFog          = "fog"
	ArtDefault      = "default"
)

var iconTable = map[string]string{
	"01d": "sun.max.fill",
	"01n": "moon.fill",
	"02d": "cloud.sun.fill",
	"02n": "cloud.moon.fill",
	"03d": "cloud.fill",
	"03n": "cloud.fill",
	"04d": "smoke.fill",
	"04n": "smoke.fill",
	"09d": "cloud.drizzle.fill",
	"09n": "cloud.drizzle.fill",
	"10d": "cloud.rain.fill",
	"10n": "cloud.rain.fill",
	"11d": "cloud.bolt.rain.fill",
	"11n": "cloud.bolt.rain.fill",
	"13d": "snowflake",
	"13n": "snowflake",
	"50d": "cloud.fog.fill",
	"50n": "cloud.fog.fill",
}

// MapIcon maps an upstream icon token (e.g. "10n") to a symbolic icon name.
// Unknown or empty tokens map to FallbackIcon.
func MapIcon(code string) string {
	if icon, ok := iconTable[code]; ok {
		return icon
	}
	return FallbackIcon
}

// MapEffect maps a numeric condition id to an animated-effect category.
// An absent id (0) and anything outside the documented ranges yield EffectNone.
func MapEffect(id int) EffectKind {
	switch {
	case id >= 200 && id <= 232:
		return EffectThunderstorm
	case id >= 300 && id <= 321:
		return EffectLightRain
	case id >= 500 && id <= 504:
		return EffectRain
	case id == 511:
		return EffectSnow
	case id >= 520 && id <= 531:
		return EffectRain
	case id >= 600 && id <= 622:
		return EffectSnow
	case id >= 700 && id <= 781:
		return EffectFog
	case id >= 801 && id <= 804:
		return EffectLeaves
	default:
		return EffectNone
	}
}

// BackgroundArt picks the background art name for a day. The icon token wins;
// the condition group text is only consulted when the icon is missing or
// unknown.
func BackgroundArt(iconCode, main string) string {
	if len(iconCode) >= 2 {
		switch iconCode[:2] {
		case "01":
			return ArtClear
		case "02":
			return ArtPartlyCloudy
		case "03", "04":
			return ArtCloudy
		case "09", "10", "11":
			return ArtRain
		case "13":
			return ArtSnow
		case "50":
			return ArtFog
		}
	}

	m := strings.ToLower(main)
	switch {
	case m == "":
		return ArtDefault
	case common.HasAny(m, "rain", "drizzle", "thunder"):
		return ArtRain
	case common.HasAny(m, "snow", "sleet"):
		return ArtSnow
	case common.HasAny(m, "mist", "fog", "haze", "smoke", "dust", "sand", "ash"):
		return ArtFog
	case m == "clear":
		return ArtClear
	case common.HasAny(m, "cloud"):
		return ArtCloudy
	default:
		return ArtDefault
	}
}

// EffectForArt returns the effect matching a background art name, used when
// browsing art previews. ok is false for names without a mapping.
func EffectForArt(name string) (kind EffectKind, ok bool) {
	switch name {
	case ArtRain:
		return EffectRain, true
	case ArtSnow:
		return EffectSnow, true
	case ArtFog:
		return EffectFog, true
	case ArtPartlyCloudy, ArtCloudy:
		return EffectLeaves, true
	case ArtClear:
		return EffectNone, true
	default:
		return "", false
	}
}

// IsNight is a plain clock heuristic: 20:00 to 06:00 local time.
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= 20 || h < 6
}
