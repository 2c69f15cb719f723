package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/logger"
)

// History is the read side over stored sales, plus week-number correction.
type History struct {
	store TxStore
	log   zerolog.Logger
}

func NewHistory(store TxStore) *History {
	return &History{store: store, log: logger.WithComponent("history")}
}

// Rows returns the sales in [from, to] ordered by date, room name and film
// title.
func (h *History) Rows(ctx context.Context, from, to time.Time) ([]HistoryRow, error) {
	p, err := NewPeriod(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.History(ctx, p.Start, p.End)
	if err != nil {
		return nil, wrapStorage("history", err)
	}
	return rows, nil
}

// HistoryTotals is the totals line under a history listing.
type HistoryTotals struct {
	Rows         int
	PaidAdultQty int
	PaidChildQty int
	FreeAdultQty int
	FreeChildQty int
	TotalQty     int
	AdultAmount  decimal.Decimal
	ChildAmount  decimal.Decimal
	TotalAmount  decimal.Decimal
}

// Totals sums a listing.
func (h *History) Totals(rows []HistoryRow) HistoryTotals {
	t := HistoryTotals{Rows: len(rows), AdultAmount: decimal.Zero, ChildAmount: decimal.Zero}
	for _, r := range rows {
		t.PaidAdultQty += r.PaidAdultQty
		t.PaidChildQty += r.PaidChildQty
		t.FreeAdultQty += r.FreeAdultQty
		t.FreeChildQty += r.FreeChildQty
		t.TotalQty += r.TotalQty()
		t.AdultAmount = t.AdultAmount.Add(r.AdultAmount)
		t.ChildAmount = t.ChildAmount.Add(r.ChildAmount)
	}
	t.TotalAmount = t.AdultAmount.Add(t.ChildAmount)
	return t
}

// RenumberWeek sets the week number of a speelweek. Bounds, ticket ranges
// and sales are untouched. The number must be at least 1 and must not be
// used by another week starting in the same calendar year.
func (h *History) RenumberWeek(ctx context.Context, id SpeelweekID, number int) (*Speelweek, error) {
	if number < 1 {
		return nil, &ValidationError{Field: "week_number", Reason: "must be >= 1"}
	}

	var week *Speelweek
	err := h.store.WithTx(ctx, func(st Store) error {
		w, err := st.GetSpeelweek(ctx, id)
		if err != nil {
			return wrapStorage("get speelweek", err)
		}
		if w == nil {
			return notFound("speelweek", int64(id))
		}
		if w.WeekNumber == number {
			week = w
			return nil
		}

		yearStart := time.Date(w.Start.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		taken, err := st.WeekNumberInUse(ctx, number, yearStart, yearStart.AddDate(1, 0, 0), id)
		if err != nil {
			return wrapStorage("week number in use", err)
		}
		if taken {
			return fmt.Errorf("week %d in %d: %w", number, w.Start.Year(), ErrWeekNumberTaken)
		}

		if err := st.UpdateWeekNumber(ctx, id, number); err != nil {
			return wrapStorage("update week number", err)
		}
		w.WeekNumber = number
		week = w
		return nil
	})
	if err != nil {
		return nil, wrapStorage("renumber speelweek", err)
	}

	h.log.Info().
		Int64("speelweek_id", int64(id)).
		Int("week_number", number).
		Msg("Speelweek renumbered")
	return week, nil
}
