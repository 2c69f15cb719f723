/*
calendar.go - Speelweek bounds and week-number allocation

PURPOSE:
  Maps a sale date to its programming week. The first weekday of a week is
  a setting (0 = Monday .. 6 = Sunday); week numbers come from a persisted
  counter, not from the calendar.

BOUNDS:
  start = d - ((weekday(d) - startWeekday) mod 7) days
  end   = start + 7 days (exclusive)

  Example, startWeekday = 1 (Tuesday):
    Fri 2024-03-15 -> [Tue 2024-03-12, Tue 2024-03-19)
    Wed 2024-03-20 -> [Tue 2024-03-19, Tue 2024-03-26)

ALLOCATION:
  Resolve reads the weekday setting, looks the bounds up, and on a miss
  inserts the week with the current counter value and stores counter + 1.
  All of it runs in one store transaction. A concurrent creator losing the
  unique (start, end) race re-reads the winner's row.
*/
package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cinemacentral/borderel/logger"
)

// WeekBounds returns the start (inclusive) and end (exclusive) of the week
// containing d. startWeekday outside 0..6 is reduced modulo 7.
func WeekBounds(d time.Time, startWeekday int) (start, end time.Time) {
	d = DayOf(d)
	offset := ((WeekdayIndex(d)-startWeekday)%7 + 7) % 7
	start = d.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// Calendar resolves dates to speelweken.
type Calendar struct {
	store TxStore
	log   zerolog.Logger
}

func NewCalendar(store TxStore) *Calendar {
	return &Calendar{store: store, log: logger.WithComponent("calendar")}
}

// Resolve returns the speelweek containing d, creating it when the window
// has not been seen before. An existing week is returned unchanged.
func (c *Calendar) Resolve(ctx context.Context, d time.Time) (*Speelweek, error) {
	if d.IsZero() {
		return nil, &ValidationError{Field: "date", Reason: "is required"}
	}

	var week *Speelweek
	created := false
	err := c.store.WithTx(ctx, func(st Store) error {
		w, ok, err := resolveWeek(ctx, st, d)
		week, created = w, ok
		return err
	})

	if errors.Is(err, ErrDuplicate) {
		// Another caller created the same window first.
		start, end, berr := c.bounds(ctx, d)
		if berr != nil {
			return nil, berr
		}
		week, err = c.store.FindSpeelweek(ctx, start, end)
		if err == nil && week == nil {
			err = &StorageError{Op: "resolve speelweek", Err: ErrDuplicate}
		}
		created = false
	}
	if err != nil {
		return nil, wrapStorage("resolve speelweek", err)
	}

	if created {
		c.log.Info().
			Int64("speelweek_id", int64(week.ID)).
			Int("week_number", week.WeekNumber).
			Str("start", FormatDate(week.Start)).
			Msg("Speelweek created")
	}
	return week, nil
}

// Current returns the inclusive date range of the week containing today,
// without creating the week.
func (c *Calendar) Current(ctx context.Context, today time.Time) (Period, error) {
	start, end, err := c.bounds(ctx, today)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: start, End: end.AddDate(0, 0, -1)}, nil
}

func (c *Calendar) bounds(ctx context.Context, d time.Time) (time.Time, time.Time, error) {
	wd, err := NewSettings(c.store).WeekStartWeekday(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := WeekBounds(d, wd)
	return start, end, nil
}

// resolveWeek is the transactional body of Resolve. The bool reports whether
// the week was created.
func resolveWeek(ctx context.Context, st Store, d time.Time) (*Speelweek, bool, error) {
	settings := NewSettings(st)
	wd, err := settings.WeekStartWeekday(ctx)
	if err != nil {
		return nil, false, err
	}
	start, end := WeekBounds(d, wd)

	existing, err := st.FindSpeelweek(ctx, start, end)
	if err != nil {
		return nil, false, wrapStorage("find speelweek", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	number, err := settings.WeekCounter(ctx)
	if err != nil {
		return nil, false, err
	}
	w := &Speelweek{WeekNumber: number, Start: start, End: end}
	if err := st.InsertSpeelweek(ctx, w); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, false, err
		}
		return nil, false, wrapStorage("insert speelweek", err)
	}
	if err := settings.SetInt(ctx, KeyWeekCounter, number+1); err != nil {
		return nil, false, err
	}
	return w, true, nil
}
