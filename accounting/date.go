package accounting

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// WeekdayLabels are the Dutch day names, indexed Monday = 0.
var WeekdayLabels = [7]string{"Maandag", "Dinsdag", "Woensdag", "Donderdag", "Vrijdag", "Zaterdag", "Zondag"}

// Day builds a calendar date at UTC midnight.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf drops the time of day, keeping the calendar date of t.
func DayOf(t time.Time) time.Time {
	return Day(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "use format YYYY-MM-DD"}
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// WeekdayIndex returns the day of the week with Monday = 0 ... Sunday = 6.
func WeekdayIndex(d time.Time) int { return (int(d.Weekday()) + 6) % 7 }

// WeekdayLabel returns the Dutch name of the day.
func WeekdayLabel(d time.Time) string { return WeekdayLabels[WeekdayIndex(d)] }

// ParseWeekday accepts an index ("1") or a Dutch label ("Dinsdag").
func ParseWeekday(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for i, lbl := range WeekdayLabels {
		if strings.EqualFold(lbl, s) {
			return i, true
		}
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return int(s[0] - '0'), true
	}
	return 0, false
}

// =============================================================================
// PERIOD - inclusive date range
// =============================================================================

// Period is an inclusive date range [Start, End].
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates and normalizes a range.
func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{Start: DayOf(from), End: DayOf(to)}
	if p.End.Before(p.Start) {
		return Period{}, &ValidationError{Field: "to", Reason: "must not be before from"}
	}
	return p, nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d time.Time) bool {
	d = DayOf(d)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns every date of the period.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + FormatDate(p.Start) + ", " + FormatDate(p.End) + "]"
}
