package engine

import "time"

// QuotaClass decides the cap and the window of a (difficulty, importance)
// pair. Completions are counted per pair, so two pairs of the same class
// never consume each other's allowance.
type QuotaClass string

const (
	QuotaSpecial QuotaClass = "special_monthly"
	QuotaExtreme QuotaClass = "extreme_weekly"
	QuotaHard    QuotaClass = "hard_daily"
	QuotaRegular QuotaClass = "regular_daily"
)

type QuotaPeriod string

const (
	PeriodDay   QuotaPeriod = "day"
	PeriodWeek  QuotaPeriod = "week"
	PeriodMonth QuotaPeriod = "month"
)

// QuotaClassFor picks the class of a (difficulty, importance) pair. When
// both dimensions qualify, the stricter class wins.
func QuotaClassFor(d Difficulty, i Importance) QuotaClass {
	switch {
	case i == ImportanceSpecial:
		return QuotaSpecial
	case d == DifficultyExtreme:
		return QuotaExtreme
	case d == DifficultyHard || i == ImportanceVeryImportant:
		return QuotaHard
	default:
		return QuotaRegular
	}
}

func (q QuotaClass) Limit() int {
	switch q {
	case QuotaSpecial, QuotaExtreme:
		return 1
	case QuotaHard:
		return 2
	default:
		return 5
	}
}

func (q QuotaClass) Period() QuotaPeriod {
	switch q {
	case QuotaSpecial:
		return PeriodMonth
	case QuotaExtreme:
		return PeriodWeek
	default:
		return PeriodDay
	}
}

// Window returns the calendar window [from, to) containing now, in loc.
// Weeks run Monday through Sunday.
func (q QuotaClass) Window(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch q.Period() {
	case PeriodMonth:
		from = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		from = day.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}
