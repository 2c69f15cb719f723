/*
tickets.go - Ticket-number ranges continuing across speelweken

PURPOSE:
  Every (week, film, room) gets a first adult and a first child ticket
  number, allocated once. The numbers continue from the previous run of the
  same film in the same room, so printed ticket numbers never repeat.

ALLOCATION (Allocate):
  1. Existing range for the key      -> returned verbatim
  2. Previous range (same film+room, week start strictly earlier)
       begin = TicketEnd(prev.begin, prev week's paid qty) + 1
  3. No previous range               -> global counters
                                        ticket_counter_volw / _kind
  4. Insert the range, then raise each global counter to
     max(counter, begin).

  Steps 1-4 run in one store transaction; the unique key on
  (speelweek, film, room) makes a racing second insert fail with
  ErrDuplicate, after which the stored range is re-read.

END NUMBERS:
  TicketEnd(b, q) = b + q - 1 when q > 0, else b - 1.
  A stream with no paid tickets does not advance the numbering.

SNAPSHOT SEMANTICS:
  A range is never recomputed. Correcting a week's quantities after the
  following week was allocated leaves a gap or overlap between the two;
  Audit reports such boundaries without changing anything.
*/
package accounting

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cinemacentral/borderel/logger"
)

// TicketEnd returns the last ticket number of a run starting at begin with
// qty tickets. It is begin-1 for an empty run.
func TicketEnd(begin, qty int) int {
	if qty > 0 {
		return begin + qty - 1
	}
	return begin - 1
}

// Allocator hands out ticket ranges.
type Allocator struct {
	store TxStore
	log   zerolog.Logger
}

func NewAllocator(store TxStore) *Allocator {
	return &Allocator{store: store, log: logger.WithComponent("tickets")}
}

// Allocate returns the ticket range of key, creating it on first use.
func (a *Allocator) Allocate(ctx context.Context, key StatementKey) (TicketRange, error) {
	var rng TicketRange
	created := false
	err := a.store.WithTx(ctx, func(st Store) error {
		r, ok, err := allocateRange(ctx, st, key)
		rng, created = r, ok
		return err
	})

	if errors.Is(err, ErrDuplicate) {
		existing, ferr := a.store.FindTicketRange(ctx, key)
		if ferr != nil {
			return TicketRange{}, wrapStorage("find ticket range", ferr)
		}
		if existing == nil {
			return TicketRange{}, &StorageError{Op: "allocate ticket range", Err: err}
		}
		return *existing, nil
	}
	if err != nil {
		return TicketRange{}, wrapStorage("allocate ticket range", err)
	}

	if created {
		a.log.Info().
			Int64("speelweek_id", int64(key.SpeelweekID)).
			Int64("film_id", int64(key.FilmID)).
			Int64("room_id", int64(key.RoomID)).
			Int("begin_adult", rng.BeginAdult).
			Int("begin_child", rng.BeginChild).
			Msg("Ticket range allocated")
	}
	return rng, nil
}

func allocateRange(ctx context.Context, st Store, key StatementKey) (TicketRange, bool, error) {
	existing, err := st.FindTicketRange(ctx, key)
	if err != nil {
		return TicketRange{}, false, wrapStorage("find ticket range", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	week, err := st.GetSpeelweek(ctx, key.SpeelweekID)
	if err != nil {
		return TicketRange{}, false, wrapStorage("get speelweek", err)
	}
	if week == nil {
		return TicketRange{}, false, notFound("speelweek", int64(key.SpeelweekID))
	}

	settings := NewSettings(st)
	rng := TicketRange{SpeelweekID: key.SpeelweekID, FilmID: key.FilmID, RoomID: key.RoomID}

	prev, err := st.PreviousTicketRange(ctx, key.FilmID, key.RoomID, week.Start)
	if err != nil {
		return TicketRange{}, false, wrapStorage("previous ticket range", err)
	}
	if prev != nil {
		rows, err := st.ListWeekSales(ctx, prev.Key())
		if err != nil {
			return TicketRange{}, false, wrapStorage("list week sales", err)
		}
		adultQty, childQty := paidTotals(rows)
		rng.BeginAdult = TicketEnd(prev.BeginAdult, adultQty) + 1
		rng.BeginChild = TicketEnd(prev.BeginChild, childQty) + 1
	} else {
		rng.BeginAdult, rng.BeginChild, err = settings.TicketCounters(ctx)
		if err != nil {
			return TicketRange{}, false, err
		}
	}

	if err := st.InsertTicketRange(ctx, rng); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return TicketRange{}, false, err
		}
		return TicketRange{}, false, wrapStorage("insert ticket range", err)
	}

	adult, child, err := settings.TicketCounters(ctx)
	if err != nil {
		return TicketRange{}, false, err
	}
	if rng.BeginAdult > adult {
		if err := settings.SetInt(ctx, KeyTicketCounterAdult, rng.BeginAdult); err != nil {
			return TicketRange{}, false, err
		}
	}
	if rng.BeginChild > child {
		if err := settings.SetInt(ctx, KeyTicketCounterChild, rng.BeginChild); err != nil {
			return TicketRange{}, false, err
		}
	}
	return rng, true, nil
}

// =============================================================================
// AUDIT
// =============================================================================

// Ticket streams.
const (
	StreamAdult = "adult"
	StreamChild = "child"
)

// TicketDrift is a boundary where a range does not start right after the
// realized end of the previous run.
type TicketDrift struct {
	SpeelweekID         SpeelweekID
	PreviousSpeelweekID SpeelweekID
	Stream              string
	Expected            int // previous realized end + 1
	Actual              int // stored begin
}

// Gap is positive when numbers were skipped, negative when they overlap.
func (d TicketDrift) Gap() int { return d.Actual - d.Expected }

// Audit compares every stored range of a film+room with the current
// quantities of the run before it.
func (a *Allocator) Audit(ctx context.Context, filmID FilmID, roomID RoomID) ([]TicketDrift, error) {
	ranges, err := a.store.ListTicketRanges(ctx, filmID, roomID)
	if err != nil {
		return nil, wrapStorage("list ticket ranges", err)
	}

	var drifts []TicketDrift
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		rows, err := a.store.ListWeekSales(ctx, prev.Key())
		if err != nil {
			return nil, wrapStorage("list week sales", err)
		}
		adultQty, childQty := paidTotals(rows)

		if want := TicketEnd(prev.BeginAdult, adultQty) + 1; want != cur.BeginAdult {
			drifts = append(drifts, TicketDrift{
				SpeelweekID: cur.SpeelweekID, PreviousSpeelweekID: prev.SpeelweekID,
				Stream: StreamAdult, Expected: want, Actual: cur.BeginAdult,
			})
		}
		if want := TicketEnd(prev.BeginChild, childQty) + 1; want != cur.BeginChild {
			drifts = append(drifts, TicketDrift{
				SpeelweekID: cur.SpeelweekID, PreviousSpeelweekID: prev.SpeelweekID,
				Stream: StreamChild, Expected: want, Actual: cur.BeginChild,
			})
		}
	}

	if len(drifts) > 0 {
		a.log.Warn().
			Int64("film_id", int64(filmID)).
			Int64("room_id", int64(roomID)).
			Int("drifts", len(drifts)).
			Msg("Ticket numbering drift detected")
	}
	return drifts, nil
}
