package weather

import (
	"fmt"
	"strings"
	"time"
)

// Units is the unit system token sent upstream with every forecast request.
type Units string

const (
	UnitsStandard Units = "standard" // Kelvin
	UnitsMetric   Units = "metric"   // Celsius
	UnitsImperial Units = "imperial" // Fahrenheit
)

// UnitsFor returns the unit system matching the Fahrenheit toggle.
func UnitsFor(fahrenheit bool) Units {
	if fahrenheit {
		return UnitsImperial
	}
	return UnitsMetric
}

// Valid reports whether u is one of the known unit tokens.
func (u Units) Valid() bool {
	switch u {
	case UnitsStandard, UnitsMetric, UnitsImperial:
		return true
	}
	return false
}

// Symbol returns the display suffix for temperatures in this unit system.
func (u Units) Symbol() string {
	switch u {
	case UnitsImperial:
		return "°F"
	case UnitsStandard:
		return "K"
	default:
		return "°C"
	}
}

// Query identifies the place a forecast is requested for: either a city
// (with an optional ISO 3166 country code) or a coordinate pair.
type Query struct {
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// CityQuery builds a query by city name.
func CityQuery(city, country string) Query {
	return Query{City: city, Country: country}
}

// CoordinateQuery builds a query by latitude and longitude.
func CoordinateQuery(lat, lon float64) Query {
	return Query{Lat: &lat, Lon: &lon}
}

// HasCoordinates reports whether the query addresses a coordinate pair.
func (q Query) HasCoordinates() bool {
	return q.Lat != nil && q.Lon != nil
}

// Key returns a canonical string for logging and metrics labels.
func (q Query) Key() string {
	if q.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *q.Lat, *q.Lon)
	}
	if q.Country != "" {
		return q.City + "," + q.Country
	}
	return q.City
}

// IsZero reports whether the query names neither a city nor coordinates.
func (q Query) IsZero() bool {
	return !q.HasCoordinates() && strings.TrimSpace(q.City) == ""
}

// RawSample is one decoded 3-hour entry of the upstream forecast list.
type RawSample struct {
	Epoch                int64
	Temperature          float64
	TemperatureMax       float64
	ConditionID          int
	ConditionMain        string
	ConditionIcon        string
	ConditionDescription string
}

// Time returns the sample timestamp in loc.
func (s RawSample) Time(loc *time.Location) time.Time {
	return time.Unix(s.Epoch, 0).In(loc)
}

// chosenTemperature is temp_max when the upstream filled it in, temp otherwise.
func (s RawSample) chosenTemperature() float64 {
	if s.TemperatureMax != 0 {
		return s.TemperatureMax
	}
	return s.Temperature
}

// Forecast is what the forecast client hands to the aggregator: the ordered
// samples plus the place name resolved by the upstream.
type Forecast struct {
	Place   string
	Samples []RawSample
}

// DaySummary is the aggregated view of one calendar day.
type DaySummary struct {
	ID           string     `json:"id"`
	Day          string     `json:"day"`
	Date         time.Time  `json:"date"`
	Temperature  int        `json:"temperature"`
	Condition    string     `json:"condition"`
	IconCode     string     `json:"iconCode,omitempty"`
	Icon         string     `json:"icon"`
	ConditionID  int        `json:"conditionId,omitempty"`
	Effect       EffectKind `json:"effect"`
	Art          string     `json:"art"`
	IsFahrenheit bool       `json:"isFahrenheit"`
}

// Display renders the temperature with its unit, e.g. "25°C".
func (d DaySummary) Display() string {
	return fmt.Sprintf("%d%s", d.Temperature, UnitsFor(d.IsFahrenheit).Symbol())
}

// State is the single piece of view state the service keeps. It is replaced
// wholesale on every successful fetch.
type State struct {
	Place      string       `json:"place"`
	Summaries  []DaySummary `json:"summaries"`
	Selected   int          `json:"selected"`
	Fahrenheit bool         `json:"fahrenheit"`
	Loading    bool         `json:"loading"`
	Query      *Query       `json:"query,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand to observers.
func (s State) Clone() State {
	out := s
	if s.Summaries != nil {
		out.Summaries = make([]DaySummary, len(s.Summaries))
		copy(out.Summaries, s.Summaries)
	}
	if s.Query != nil {
		q := *s.Query
		if q.Lat != nil {
			lat := *q.Lat
			q.Lat = &lat
		}
		if q.Lon != nil {
			lon := *q.Lon
			q.Lon = &lon
		}
		out.Query = &q
	}
	return out
}

// SelectedSummary returns the currently selected day, if any.
func (s State) SelectedSummary() (DaySummary, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Summaries) {
		return DaySummary{}, false
	}
	return s.Summaries[s.Selected], true
}
