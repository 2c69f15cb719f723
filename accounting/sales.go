/*
sales.go - Importing day totals and correcting stored sales

IMPORT FLOW (Importer.Import):
  transaction rows ──► Aggregate ──► Calendar.Resolve(date)
                                          │
           for each (film, room) total:   ▼
             get-or-create film (FilmResolver supplies metadata)
             get-or-create room (empty name = unassigned)
             UpsertDailySales  (replaces any earlier import of the day)

  The week is resolved once per import and its failure aborts the import.
  A failing row is reported with Saved=false; the other rows still go in.

CORRECTIONS (SalesBook.Correct):
  Paid quantities are re-priced with the row's own unit price
  (amount / qty). A stored quantity of 0 has no unit price, so raising it
  needs an explicit price. Free quantities change counts only.
*/
package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/logger"
)

// =============================================================================
// FILM RESOLUTION
// =============================================================================

// FilmResolver supplies the metadata of a film seen for the first time.
type FilmResolver interface {
	ResolveFilm(ctx context.Context, internalTitle string) (Film, error)
}

// FilmResolverFunc adapts a function to FilmResolver.
type FilmResolverFunc func(ctx context.Context, internalTitle string) (Film, error)

func (f FilmResolverFunc) ResolveFilm(ctx context.Context, internalTitle string) (Film, error) {
	return f(ctx, internalTitle)
}

// DefaultFilmResolver uses the internal title as display title and leaves
// distributor and country empty.
var DefaultFilmResolver = FilmResolverFunc(func(_ context.Context, title string) (Film, error) {
	return Film{InternalTitle: title, DisplayTitle: title}, nil
})

// =============================================================================
// IMPORT
// =============================================================================

// ImportRequest is one day of POS rows.
type ImportRequest struct {
	Date       time.Time        `json:"date" validate:"required"`
	SourceFile string           `json:"source_file"`
	Rows       []TransactionRow `json:"rows"`
}

// ImportedRow is the outcome for one (film, room) total.
type ImportedRow struct {
	FilmRoomSales
	FilmID FilmID
	RoomID RoomID
	Saved  bool
	Err    error
}

// ImportResult lists what an import stored. Week is nil when there was
// nothing to import.
type ImportResult struct {
	Date  time.Time
	Week  *Speelweek
	Rows  []ImportedRow
	Saved int
}

// Failed returns the rows that were not stored.
func (r *ImportResult) Failed() []ImportedRow {
	var out []ImportedRow
	for _, row := range r.Rows {
		if !row.Saved {
			out = append(out, row)
		}
	}
	return out
}

// Importer stores POS day totals.
type Importer struct {
	store    TxStore
	calendar *Calendar
	films    FilmResolver
	log      zerolog.Logger
}

func NewImporter(store TxStore, calendar *Calendar, films FilmResolver) *Importer {
	if films == nil {
		films = DefaultFilmResolver
	}
	return &Importer{store: store, calendar: calendar, films: films, log: logger.WithComponent("import")}
}

// Import aggregates and stores one day. Importing the same rows again
// yields the same stored rows.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	date := DayOf(req.Date)
	totals := Aggregate(req.Rows)
	res := &ImportResult{Date: date}
	if len(totals) == 0 {
		im.log.Warn().Str("date", FormatDate(date)).Str("source", req.SourceFile).Msg("No film rows to import")
		return res, nil
	}

	week, err := im.calendar.Resolve(ctx, date)
	if err != nil {
		return nil, err
	}
	res.Week = week

	for _, t := range totals {
		row := ImportedRow{FilmRoomSales: t}
		if err := im.importTotal(ctx, week, date, req.SourceFile, &row); err != nil {
			im.log.Error().Err(err).
				Str("date", FormatDate(date)).
				Str("film", t.Film).
				Str("room", t.Room).
				Msg("Row not saved")
			row.Err = err
		} else {
			row.Saved = true
			res.Saved++
		}
		res.Rows = append(res.Rows, row)
	}

	im.log.Info().
		Str("date", FormatDate(date)).
		Int("week_number", week.WeekNumber).
		Int("saved", res.Saved).
		Int("failed", len(res.Rows)-res.Saved).
		Str("source", req.SourceFile).
		Msg("Import finished")
	return res, nil
}

func (im *Importer) importTotal(ctx context.Context, week *Speelweek, date time.Time, source string, row *ImportedRow) error {
	film, err := im.ensureFilm(ctx, row.Film)
	if err != nil {
		return err
	}
	room, err := ensureRoom(ctx, im.store, row.Room)
	if err != nil {
		return err
	}
	row.FilmID, row.RoomID = film.ID, room.ID

	ds := DailySales{
		Date:         date,
		SpeelweekID:  week.ID,
		FilmID:       film.ID,
		RoomID:       room.ID,
		Is3D:         row.Is3D,
		PaidAdultQty: row.PaidAdultQty,
		PaidChildQty: row.PaidChildQty,
		FreeAdultQty: row.FreeAdultQty,
		FreeChildQty: row.FreeChildQty,
		AdultAmount:  row.AdultAmount,
		ChildAmount:  row.ChildAmount,
		SourceFile:   source,

		AdultUnitPrice: unitPriceOrZero(row.AdultAmount, row.PaidAdultQty),
		ChildUnitPrice: unitPriceOrZero(row.ChildAmount, row.PaidChildQty),
	}.Normalized()
	if err := ds.Validate(); err != nil {
		return err
	}
	return wrapStorage("upsert daily sales", im.store.UpsertDailySales(ctx, ds))
}

func (im *Importer) ensureFilm(ctx context.Context, title string) (*Film, error) {
	f, err := im.store.FindFilm(ctx, title)
	if err != nil {
		return nil, wrapStorage("find film", err)
	}
	if f != nil {
		return f, nil
	}

	nf, err := im.films.ResolveFilm(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("resolve film %q: %w", title, err)
	}
	nf.InternalTitle = title
	if err := im.store.InsertFilm(ctx, &nf); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return nil, wrapStorage("insert film", err)
		}
		return refind(ctx, "film", title, im.store.FindFilm)
	}
	im.log.Info().Int64("film_id", int64(nf.ID)).Str("title", title).Msg("Film created")
	return &nf, nil
}

func ensureRoom(ctx context.Context, st Store, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	r, err := st.FindRoom(ctx, name)
	if err != nil {
		return nil, wrapStorage("find room", err)
	}
	if r != nil {
		return r, nil
	}
	nr := Room{Name: name}
	if err := st.InsertRoom(ctx, &nr); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return nil, wrapStorage("insert room", err)
		}
		return refind(ctx, "room", name, st.FindRoom)
	}
	return &nr, nil
}

// refind reads a record another caller inserted first.
func refind[T any](ctx context.Context, kind, name string, find func(context.Context, string) (*T, error)) (*T, error) {
	v, err := find(ctx, name)
	if err != nil {
		return nil, wrapStorage("find "+kind, err)
	}
	if v == nil {
		return nil, &StorageError{Op: "insert " + kind, Err: ErrDuplicate}
	}
	return v, nil
}

// =============================================================================
// CORRECTIONS
// =============================================================================

// SalesCorrection is a manual edit of one stored row. Nil fields keep their
// stored value.
type SalesCorrection struct {
	Date           time.Time        `json:"date" validate:"required"`
	FilmID         FilmID           `json:"film_id" validate:"required"`
	RoomID         RoomID           `json:"room_id" validate:"required"`
	PaidAdultQty   *int             `json:"paid_adult_qty,omitempty" validate:"omitempty,min=0"`
	PaidChildQty   *int             `json:"paid_child_qty,omitempty" validate:"omitempty,min=0"`
	FreeAdultQty   *int             `json:"free_adult_qty,omitempty" validate:"omitempty,min=0"`
	FreeChildQty   *int             `json:"free_child_qty,omitempty" validate:"omitempty,min=0"`
	AdultUnitPrice *decimal.Decimal `json:"adult_unit_price,omitempty"`
	ChildUnitPrice *decimal.Decimal `json:"child_unit_price,omitempty"`
	Is3D           *bool            `json:"is_3d,omitempty"`
}

// SalesBook edits stored daily sales.
type SalesBook struct {
	store TxStore
	log   zerolog.Logger
}

func NewSalesBook(store TxStore) *SalesBook {
	return &SalesBook{store: store, log: logger.WithComponent("sales")}
}

// Correct applies c and returns the stored row. On any error nothing is
// written.
func (b *SalesBook) Correct(ctx context.Context, c SalesCorrection) (*DailySales, error) {
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	for _, p := range []struct {
		field string
		v     *decimal.Decimal
	}{{"adult_unit_price", c.AdultUnitPrice}, {"child_unit_price", c.ChildUnitPrice}} {
		if p.v != nil && p.v.IsNegative() {
			return nil, &ValidationError{Field: p.field, Reason: "must not be negative"}
		}
	}

	key := SalesKey{Date: DayOf(c.Date), FilmID: c.FilmID, RoomID: c.RoomID}
	var out DailySales
	err := b.store.WithTx(ctx, func(st Store) error {
		row, err := st.GetDailySales(ctx, key)
		if err != nil {
			return wrapStorage("get daily sales", err)
		}
		if row == nil {
			return fmt.Errorf("sales of %s film %d room %d: %w", FormatDate(key.Date), key.FilmID, key.RoomID, ErrNotFound)
		}

		updated := *row
		updated.PaidAdultQty, updated.AdultAmount, updated.AdultUnitPrice, err = reprice("adult_unit_price",
			row.PaidAdultQty, row.AdultAmount, row.AdultUnitPrice, c.PaidAdultQty, c.AdultUnitPrice)
		if err != nil {
			return err
		}
		updated.PaidChildQty, updated.ChildAmount, updated.ChildUnitPrice, err = reprice("child_unit_price",
			row.PaidChildQty, row.ChildAmount, row.ChildUnitPrice, c.PaidChildQty, c.ChildUnitPrice)
		if err != nil {
			return err
		}
		if c.FreeAdultQty != nil {
			updated.FreeAdultQty = *c.FreeAdultQty
		}
		if c.FreeChildQty != nil {
			updated.FreeChildQty = *c.FreeChildQty
		}
		if c.Is3D != nil {
			updated.Is3D = *c.Is3D
		}

		updated = updated.Normalized()
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := st.UpsertDailySales(ctx, updated); err != nil {
			return wrapStorage("upsert daily sales", err)
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, wrapStorage("correct daily sales", err)
	}

	b.log.Info().
		Str("date", FormatDate(key.Date)).
		Int64("film_id", int64(key.FilmID)).
		Int64("room_id", int64(key.RoomID)).
		Int("paid_adult_qty", out.PaidAdultQty).
		Int("paid_child_qty", out.PaidChildQty).
		Msg("Sales corrected")
	return &out, nil
}

// reprice returns the new quantity, amount and unit price of one paid
// stream. The unit price comes from, in order: the correction, the stored
// unit price, the stored amount over the stored quantity.
func reprice(field string, qty int, amount, storedUnit decimal.Decimal, newQty *int, price *decimal.Decimal) (int, decimal.Decimal, decimal.Decimal, error) {
	if newQty == nil && price == nil {
		return qty, amount, storedUnit, nil
	}
	q := qty
	if newQty != nil {
		q = *newQty
	}

	var unit decimal.Decimal
	switch {
	case price != nil:
		unit = *price
	case !storedUnit.IsZero():
		unit = storedUnit
	case qty > 0:
		unit, _ = UnitPrice(amount, qty)
	case q > 0:
		return 0, decimal.Zero, decimal.Zero, &ValidationError{Field: field, Reason: "is required when the stored quantity is 0"}
	default:
		unit = decimal.Zero
	}
	return q, RoundMoney(unit.Mul(decimal.NewFromInt(int64(q)))), unit, nil
}
