package weather

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MaxDays caps the number of daily summaries produced per forecast.
	MaxDays = 5

	// TodayLabel labels the first day when it is the reference day.
	TodayLabel = "Today"

	// MissingCondition is shown when a sample carries no description.
	MissingCondition = "—"
)

// DefaultWeekdays are the abbreviated weekday names indexed by time.Weekday.
var DefaultWeekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type dayBucket struct {
	day time.Time
	rep RawSample
	max float64
}

// Aggregate groups forecast samples into calendar days and produces up to
// MaxDays summaries ordered by ascending date.
//
// Calendar days are computed in now's location. Within a day the sample with
// the highest temperature (temp_max when set, temp otherwise) drives the
// displayed condition and icon; ties keep the first sample seen. Temperatures
// are rounded but never converted: they are in whatever unit the samples were
// fetched in, and fahrenheit only records which unit that was.
func Aggregate(samples []RawSample, now time.Time, fahrenheit bool, weekdays [7]string) []DaySummary {
	loc := now.Location()

	buckets := make(map[int64]*dayBucket)
	for _, s := range samples {
		day := startOfDay(s.Time(loc))
		key := day.Unix()

		b, ok := buckets[key]
		if !ok {
			buckets[key] = &dayBucket{day: day, rep: s, max: s.chosenTemperature()}
			continue
		}
		if t := s.chosenTemperature(); t > b.max {
			b.max = t
			b.rep = s
		}
	}

	days := make([]*dayBucket, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, b)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].day.Before(days[j].day) })
	if len(days) > MaxDays {
		days = days[:MaxDays]
	}

	today := startOfDay(now)
	summaries := make([]DaySummary, 0, len(days))
	for i, b := range days {
		label := weekdays[b.day.Weekday()]
		if i == 0 && b.day.Equal(today) {
			label = TodayLabel
		}

		summaries = append(summaries, DaySummary{
			ID:           uuid.NewString(),
			Day:          label,
			Date:         b.day,
			Temperature:  int(math.Round(b.max)),
			Condition:    conditionText(b.rep.ConditionDescription),
			IconCode:     b.rep.ConditionIcon,
			Icon:         MapIcon(b.rep.ConditionIcon),
			ConditionID:  b.rep.ConditionID,
			Effect:       MapEffect(b.rep.ConditionID),
			Art:          BackgroundArt(b.rep.ConditionIcon, b.rep.ConditionMain),
			IsFahrenheit: fahrenheit,
		})
	}

	return summaries
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func conditionText(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return MissingCondition
	}
	return cases.Title(language.Und).String(description)
}
