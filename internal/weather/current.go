package weather

import (
	"math"
	"time"
)

// CurrentSummary is the display view of current conditions.
type CurrentSummary struct {
	Place        string     `json:"place"`
	Country      string     `json:"country,omitempty"`
	Temperature  int        `json:"temperature"`
	Condition    string     `json:"condition"`
	IconCode     string     `json:"iconCode,omitempty"`
	Icon         string     `json:"icon"`
	ConditionID  int        `json:"conditionId,omitempty"`
	Effect       EffectKind `json:"effect"`
	Art          string     `json:"art"`
	Night        bool       `json:"night"`
	IsFahrenheit bool       `json:"isFahrenheit"`
}

// SummarizeCurrent shapes current conditions the same way Aggregate shapes a
// day. Night uses sunrise and sunset when the upstream sent them and falls
// back to the clock heuristic otherwise.
func SummarizeCurrent(c Current, now time.Time, fahrenheit bool) CurrentSummary {
	s := c.Sample

	night := IsNight(now)
	if !c.Sunrise.IsZero() && !c.Sunset.IsZero() {
		night = now.Before(c.Sunrise) || !now.Before(c.Sunset)
	}

	return CurrentSummary{
		Place:        c.Place,
		Country:      c.Country,
		Temperature:  int(math.Round(s.Temperature)),
		Condition:    conditionText(s.ConditionDescription),
		IconCode:     s.ConditionIcon,
		Icon:         MapIcon(s.ConditionIcon),
		ConditionID:  s.ConditionID,
		Effect:       MapEffect(s.ConditionID),
		Art:          BackgroundArt(s.ConditionIcon, s.ConditionMain),
		Night:        night,
		IsFahrenheit: fahrenheit,
	}
}
