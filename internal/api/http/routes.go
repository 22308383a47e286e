package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/forecast-summary/internal/art"
	"github.com/i474232898/forecast-summary/internal/config"
	"github.com/i474232898/forecast-summary/internal/store"
	"github.com/i474232898/forecast-summary/internal/weather"
	"github.com/i474232898/forecast-summary/internal/weather/providers"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, arts art.Resolver, presets []config.CityPreset) {
	if presets == nil {
		presets = []config.CityPreset{}
	}

	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		state, err := service.Snapshot()
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(state))
	})

	v1.Post("/forecast/city", func(c *fiber.Ctx) error {
		var req cityRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := service.FetchByCity(c.UserContext(), req.City, strings.ToUpper(req.Country)); err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(service.State()))
	})

	v1.Post("/forecast/location", func(c *fiber.Ctx) error {
		var req coordinateRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := service.FetchByCoordinates(c.UserContext(), *req.Lat, *req.Lon); err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(service.State()))
	})

	v1.Put("/forecast/units", func(c *fiber.Ctx) error {
		var req unitsRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := service.SetFahrenheit(c.UserContext(), *req.Fahrenheit); err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(service.State()))
	})

	v1.Put("/forecast/selection", func(c *fiber.Ctx) error {
		var req selectionRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		if err := service.Select(*req.Index); err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(service.State()))
	})

	v1.Get("/forecast/history", func(c *fiber.Ctx) error {
		states := service.History()
		out := make([]stateResponse, 0, len(states))
		for _, st := range states {
			out = append(out, newStateResponse(st))
		}
		return c.JSON(fiber.Map{"states": out})
	})

	v1.Get("/forecast/history/latest", func(c *fiber.Ctx) error {
		state, err := service.Latest()
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(newStateResponse(state))
	})

	v1.Get("/forecast/lookup", func(c *fiber.Ctx) error {
		q, units, err := parsePlaceQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		fc, summaries, err := service.Lookup(c.UserContext(), q, units)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"place":     fc.Place,
			"units":     units,
			"summaries": summaries,
		})
	})

	v1.Get("/forecast/current", func(c *fiber.Ctx) error {
		q, units, err := parsePlaceQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		cur, err := service.Current(c.UserContext(), q, units)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(cur)
	})

	v1.Get("/art", func(c *fiber.Ctx) error {
		icon := strings.TrimSpace(c.Query("icon"))
		main := strings.TrimSpace(c.Query("main"))
		if icon == "" && main == "" {
			return fiber.NewError(fiber.StatusBadRequest, "icon or main query parameter is required")
		}
		return c.JSON(arts.ForIcon(icon, main))
	})

	v1.Get("/presets", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"presets": presets})
	})
}

type cityRequest struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"omitempty,alpha,len=2"`
}

type coordinateRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

type unitsRequest struct {
	Fahrenheit *bool `json:"fahrenheit" validate:"required"`
}

type selectionRequest struct {
	Index *int `json:"index" validate:"required"`
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// placeQuery holds query parameters identifying a place and unit system.
type placeQuery struct {
	City    string  `validate:"omitempty,max=100"`
	Country string  `validate:"omitempty,alpha,len=2"`
	Lat     float64 `validate:"gte=-90,lte=90"`
	Lon     float64 `validate:"gte=-180,lte=180"`
	Units   string  `validate:"omitempty,oneof=metric imperial"`

	hasLat, hasLon bool
}

func parsePlaceQuery(c *fiber.Ctx) (weather.Query, weather.Units, error) {
	var q placeQuery

	q.City = strings.TrimSpace(c.Query("city"))
	q.Country = strings.ToUpper(strings.TrimSpace(c.Query("country")))
	q.Units = c.Query("units")

	var err error
	if q.Lat, q.hasLat, err = parseOptionalFloat(c.Query("lat")); err != nil {
		return weather.Query{}, "", errors.New("lat must be a number")
	}
	if q.Lon, q.hasLon, err = parseOptionalFloat(c.Query("lon")); err != nil {
		return weather.Query{}, "", errors.New("lon must be a number")
	}
	if q.hasLat != q.hasLon {
		return weather.Query{}, "", errors.New("lat and lon must be given together")
	}
	if q.City == "" && !q.hasLat {
		return weather.Query{}, "", errors.New("either city or lat/lon query parameters are required")
	}

	if err := validate.Struct(q); err != nil {
		return weather.Query{}, "", err
	}

	units := weather.UnitsMetric
	if q.Units != "" {
		units = weather.Units(q.Units)
	}

	if q.hasLat {
		return weather.CoordinateQuery(q.Lat, q.Lon), units, nil
	}
	return weather.CityQuery(q.City, q.Country), units, nil
}

func parseOptionalFloat(s string) (float64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

type stateResponse struct {
	weather.State
	Display         []string            `json:"display"`
	SelectedSummary *weather.DaySummary `json:"selectedSummary,omitempty"`
}

func newStateResponse(st weather.State) stateResponse {
	display := make([]string, 0, len(st.Summaries))
	for _, d := range st.Summaries {
		display = append(display, d.Display())
	}
	resp := stateResponse{State: st, Display: display}
	if d, ok := st.SelectedSummary(); ok {
		resp.SelectedSummary = &d
	}
	return resp
}

// statusFor maps service and client failures onto HTTP status codes.
func statusFor(err error) int {
	var (
		statusErr *providers.StatusError
		apiErr    *providers.APIError
	)
	switch {
	case errors.Is(err, weather.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, weather.ErrNoForecast), errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrOutOfRange), errors.Is(err, weather.ErrUnsupportedUnits),
		errors.Is(err, providers.ErrMalformedRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrCurrentUnsupported):
		return fiber.StatusNotImplemented
	case errors.Is(err, providers.ErrMissingCredential):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &statusErr), errors.As(err, &apiErr),
		errors.Is(err, providers.ErrTransport), errors.Is(err, providers.ErrDecode):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func toFiberError(err error) error {
	return fiber.NewError(statusFor(err), err.Error())
}
