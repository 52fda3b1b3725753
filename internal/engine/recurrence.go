package engine

import (
	"strings"
	"time"

	"questguild/internal/apperr"
)

// MaxOccurrences caps how many instances one recurring task may create.
const MaxOccurrences = 366

type RepeatUnit string

const (
	RepeatDay  RepeatUnit = "day"
	RepeatWeek RepeatUnit = "week"
)

func (u RepeatUnit) IsValid() bool {
	return u == RepeatDay || u == RepeatWeek
}

func ParseRepeatUnit(input string) (RepeatUnit, bool) {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "day", "days", "daily", "d":
		return RepeatDay, true
	case "week", "weeks", "weekly", "w":
		return RepeatWeek, true
	default:
		return "", false
	}
}

// Recurrence repeats a task every Interval units until Until (inclusive).
type Recurrence struct {
	Interval int
	Unit     RepeatUnit
	Until    time.Time
}

// Occurrences lists the scheduled instants of every instance, starting at
// start.
func (r Recurrence) Occurrences(start time.Time) ([]time.Time, error) {
	if r.Interval < 1 {
		return nil, apperr.New(apperr.CodeTaskInvalidInput, "repeat interval must be at least 1")
	}
	if !r.Unit.IsValid() {
		return nil, apperr.Newf(apperr.CodeTaskInvalidInput, "invalid repeat unit %q", r.Unit)
	}
	if r.Until.IsZero() || r.Until.Before(start) {
		return nil, apperr.New(apperr.CodeTaskInvalidInput, "repeat end must not be before the start")
	}

	step := r.Interval
	if r.Unit == RepeatWeek {
		step *= 7
	}
	var out []time.Time
	for k := 0; ; k++ {
		at := start.AddDate(0, 0, k*step)
		if at.After(r.Until) {
			break
		}
		if len(out) == MaxOccurrences {
			return nil, apperr.WithMetadata(apperr.CodeTaskInvalidInput,
				"recurrence creates too many instances",
				map[string]string{"max": "366"})
		}
		out = append(out, at)
	}
	return out, nil
}
