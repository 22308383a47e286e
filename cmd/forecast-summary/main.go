package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/forecast-summary/internal/api/http"
	"github.com/i474232898/forecast-summary/internal/art"
	"github.com/i474232898/forecast-summary/internal/config"
	"github.com/i474232898/forecast-summary/internal/location"
	"github.com/i474232898/forecast-summary/internal/logger"
	"github.com/i474232898/forecast-summary/internal/metrics"
	"github.com/i474232898/forecast-summary/internal/scheduler"
	"github.com/i474232898/forecast-summary/internal/store"
	"github.com/i474232898/forecast-summary/internal/weather"
	"github.com/i474232898/forecast-summary/internal/weather/providers"
)

const startupFetchTimeout = 30 * time.Second

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l := logger.NewZapLogger(cfg.AppName)
	l.SetEnv(cfg.AppEnv)
	l.SetLevel(cfg.LogLevel)
	defer func() { _ = l.Stop() }()

	m := metrics.New()

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	client := providers.NewOpenWeatherClient(providers.OpenWeatherConfig{
		APIKey:   cfg.OpenWeatherAPIKey,
		BaseURL:  cfg.OpenWeatherBaseURL,
		Language: cfg.Language,
		Client:   httpClient,
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.FetchRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Metrics:   m,
		Logger:    l,
	})
	if cfg.OpenWeatherAPIKey == "" {
		l.Warning("OPENWEATHER_API_KEY is not set; forecast fetches will fail")
	}

	memStore := store.NewMemoryStore(cfg.StateHistory)

	service := weather.NewService(client, memStore, l,
		weather.WithMetrics(m),
		weather.WithWeekdays(cfg.Weekdays()),
		weather.WithFahrenheit(cfg.UnitsFahrenheit),
	)
	service.Subscribe(func(st weather.State) {
		l.Debug("view state changed", map[string]any{
			"place":      st.Place,
			"days":       len(st.Summaries),
			"selected":   st.Selected,
			"fahrenheit": st.Fahrenheit,
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial fetch for the default city.
	if cfg.DefaultCity != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, startupFetchTimeout)
		if err := service.FetchByCity(fetchCtx, cfg.DefaultCity, cfg.DefaultCountry); err != nil {
			l.Warning("initial forecast fetch failed", map[string]any{"city": cfg.DefaultCity, "err": err})
		}
		cancel()
	}

	// Device location replaces the default city once permission is granted.
	locations := location.NewManager(newLocationResolver(cfg), cfg.LocationEnabled, l)
	locations.OnLocationChanged(func(c location.Coordinate) {
		fetchCtx, cancel := context.WithTimeout(ctx, startupFetchTimeout)
		defer cancel()
		if err := service.FetchByCoordinates(fetchCtx, c.Lat, c.Lon); err != nil {
			l.Warning("forecast fetch for device location failed", map[string]any{"coordinate": c.String(), "err": err})
		}
	})
	if err := locations.RequestPermission(ctx); err != nil {
		l.Warning("location request failed", map[string]any{"err": err})
	}

	// Scheduler that periodically refreshes the shown place.
	sched := scheduler.New(service, cfg.RefreshInterval, l)
	if err := sched.Start(); err != nil {
		l.Fatal("failed to start scheduler", map[string]any{"err": err})
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				l.Error(err, map[string]any{"path": c.Path(), "status": code})
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": cfg.AppName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpapi.RegisterRoutes(app, service, art.NewResolver(cfg.ArtPrefix, cfg.ArtBucket), cfg.Presets)

	go func() {
		l.Info("http server listening", map[string]any{"port": cfg.Port})
		if err := app.Listen(":" + cfg.Port); err != nil {
			l.Warning("fiber server stopped", map[string]any{"err": err})
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		l.Warning("error during shutdown", map[string]any{"err": err})
	}
}

// newLocationResolver picks fixed coordinates when configured, otherwise a
// geocoded address. It returns nil when neither is available.
func newLocationResolver(cfg *config.AppConfig) location.Resolver {
	if cfg.HasStaticLocation() {
		return location.StaticResolver{Coordinate: location.Coordinate{Lat: *cfg.LocationLat, Lon: *cfg.LocationLon}}
	}
	if cfg.LocationCity != "" && cfg.GeocoderAPIKey != "" {
		return location.NewGeocodingResolver(location.Address{
			City:    cfg.LocationCity,
			State:   cfg.LocationState,
			Country: cfg.LocationCountry,
		}, location.NewGoogleGeocoder(cfg.GeocoderAPIKey))
	}
	return nil
}
