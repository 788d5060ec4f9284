package eventualconsistency

import (
	"fmt"
	"time"
)

// cohortKeys is the set of time-cohort partition keys a transaction
// carries: hour, day, ISO week, and month, all computed in the configured
// timezone.
type cohortKeys struct {
	Hour  string
	Day   string
	Week  string
	Month string
}

// computeCohorts derives cohortKeys for t in loc.
func computeCohorts(t time.Time, loc *time.Location) cohortKeys {
	t = t.In(loc)
	year, week := t.ISOWeek()
	return cohortKeys{
		Hour:  t.Format("2006-01-02T15"),
		Day:   t.Format("2006-01-02"),
		Week:  fmt.Sprintf("%04d-W%02d", year, week),
		Month: t.Format("2006-01"),
	}
}

// forPeriod extracts the cohort key matching one of the enabled analytics
// periods ("hour", "day", "week", "month").
func (k cohortKeys) forPeriod(period string) string {
	switch period {
	case "hour":
		return k.Hour
	case "day":
		return k.Day
	case "week":
		return k.Week
	case "month":
		return k.Month
	}
	return ""
}
