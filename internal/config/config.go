package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// CityPreset is a named place offered for quick selection.
type CityPreset struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Country string `yaml:"country" json:"country,omitempty"`
}

// AppConfig is populated from the environment, with city presets read from
// an optional YAML file.
type AppConfig struct {
	AppName  string `envconfig:"APP_NAME" default:"forecast-summary"`
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	OpenWeatherAPIKey  string        `envconfig:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	Language           string        `envconfig:"FORECAST_LANGUAGE" default:"en"`
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	// FetchRetries of zero keeps the single-attempt behaviour.
	FetchRetries   int     `envconfig:"FETCH_RETRIES" default:"0" validate:"gte=0,lte=10"`
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"1" validate:"gte=0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"5" validate:"gte=0"`

	// RefreshInterval of zero disables periodic refresh.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30m" validate:"gte=0"`

	DefaultCity     string   `envconfig:"DEFAULT_CITY" default:"Las Vegas"`
	DefaultCountry  string   `envconfig:"DEFAULT_COUNTRY" default:"US"`
	UnitsFahrenheit bool     `envconfig:"UNITS_FAHRENHEIT" default:"false"`
	WeekdayNames    []string `envconfig:"WEEKDAY_NAMES" default:"Sun,Mon,Tue,Wed,Thu,Fri,Sat" validate:"len=7,dive,required"`

	LocationEnabled bool     `envconfig:"LOCATION_ENABLED" default:"false"`
	LocationLat     *float64 `envconfig:"LOCATION_LAT" validate:"omitempty,gte=-90,lte=90"`
	LocationLon     *float64 `envconfig:"LOCATION_LON" validate:"omitempty,gte=-180,lte=180"`
	LocationCity    string   `envconfig:"LOCATION_CITY"`
	LocationState   string   `envconfig:"LOCATION_STATE"`
	LocationCountry string   `envconfig:"LOCATION_COUNTRY"`
	GeocoderAPIKey  string   `envconfig:"GOOGLE_GEOCODER_API_KEY"`

	ArtPrefix string `envconfig:"ART_PREFIX" default:"default_"`
	ArtBucket string `envconfig:"ART_BUCKET" default:"weather-girls-2.firebasestorage.app"`

	StateHistory int `envconfig:"STATE_HISTORY" default:"10" validate:"gte=1"`

	ConfigFile string       `envconfig:"CONFIG_FILE" default:"config/config.yaml"`
	Presets    []CityPreset `ignored:"true" validate:"dive"`
}

// fileConfig is the shape of the optional YAML file.
type fileConfig struct {
	Presets []CityPreset `yaml:"presets"`
}

var validate = validator.New()

// Load reads configuration from a .env file (if any), the environment and
// the YAML presets file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return load()
}

func load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	presets, err := loadPresets(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.Presets = presets

	if (cfg.LocationLat == nil) != (cfg.LocationLon == nil) {
		return nil, errors.New("LOCATION_LAT and LOCATION_LON must be set together")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadPresets reads presets from path. A missing file is not an error.
func loadPresets(path string) ([]CityPreset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc.Presets, nil
}

// Weekdays returns the configured weekday names indexed by time.Weekday.
func (c *AppConfig) Weekdays() [7]string {
	var out [7]string
	for i := 0; i < len(out) && i < len(c.WeekdayNames); i++ {
		out[i] = strings.TrimSpace(c.WeekdayNames[i])
	}
	return out
}

// HasStaticLocation reports whether fixed device coordinates are configured.
func (c *AppConfig) HasStaticLocation() bool {
	return c.LocationLat != nil && c.LocationLon != nil
}
