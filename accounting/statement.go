/*
statement.go - Weekly statement ("borderel") figures

PURPOSE:
  Derives the money lines of a statement from the daily sales rows of one
  (week, film, room) and the two global rates.

FORMULAS (full precision; rounding happens only for presentation):
  gross_total  = adult_amount + child_amount
  tickets      = paid_adult_qty + paid_child_qty
  vat_amount   = gross_total * vat_rate
  net_amount   = gross_total - vat_amount
  author_fee   = net_amount * author_rate
  difference   = net_amount - author_fee
  unit prices  = amount / qty, or 0 when qty == 0

  Free tickets are reported next to these figures and never enter them.

DAY BREAKDOWN:
  Seven lines, one per date of the week, zero-filled when a day has no row.
  Price columns use the week's unit prices, not per-day ones.
*/
package accounting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/logger"
)

// Rates are the fractions applied to gross receipts.
type Rates struct {
	VAT    decimal.Decimal // on gross
	Author decimal.Decimal // on net
}

// DefaultRates returns the rates used when nothing is configured.
func DefaultRates() Rates {
	return Rates{VAT: DefaultVATRate, Author: DefaultAuthorRate}
}

// =============================================================================
// FIGURES
// =============================================================================

// Figures are the derived statement lines.
type Figures struct {
	PaidAdultQty int
	PaidChildQty int
	FreeAdultQty int
	FreeChildQty int
	TicketsTotal int

	AdultAmount    decimal.Decimal
	ChildAmount    decimal.Decimal
	GrossTotal     decimal.Decimal
	VATAmount      decimal.Decimal
	NetAmount      decimal.Decimal
	AuthorFee      decimal.Decimal
	Difference     decimal.Decimal
	AdultUnitPrice decimal.Decimal
	ChildUnitPrice decimal.Decimal
}

// FreeTotal is the number of complimentary tickets.
func (f Figures) FreeTotal() int { return f.FreeAdultQty + f.FreeChildQty }

// ComputeFigures sums rows and applies rates. It never divides by zero.
func ComputeFigures(rows []DailySales, rates Rates) Figures {
	var f Figures
	f.AdultAmount, f.ChildAmount = sumAmounts(rows)
	for _, r := range rows {
		f.PaidAdultQty += r.PaidAdultQty
		f.PaidChildQty += r.PaidChildQty
		f.FreeAdultQty += r.FreeAdultQty
		f.FreeChildQty += r.FreeChildQty
	}

	f.GrossTotal = f.AdultAmount.Add(f.ChildAmount)
	f.TicketsTotal = f.PaidAdultQty + f.PaidChildQty
	f.VATAmount = f.GrossTotal.Mul(rates.VAT)
	f.NetAmount = f.GrossTotal.Sub(f.VATAmount)
	f.AuthorFee = f.NetAmount.Mul(rates.Author)
	f.Difference = f.NetAmount.Sub(f.AuthorFee)
	f.AdultUnitPrice = unitPriceOrZero(f.AdultAmount, f.PaidAdultQty)
	f.ChildUnitPrice = unitPriceOrZero(f.ChildAmount, f.PaidChildQty)
	return f
}

// Rounded returns the figures with every amount rounded to cents.
func (f Figures) Rounded() Figures {
	r := f
	for _, p := range []*decimal.Decimal{
		&r.AdultAmount, &r.ChildAmount, &r.GrossTotal, &r.VATAmount, &r.NetAmount,
		&r.AuthorFee, &r.Difference, &r.AdultUnitPrice, &r.ChildUnitPrice,
	} {
		*p = RoundMoney(*p)
	}
	return r
}

// =============================================================================
// STATEMENT
// =============================================================================

// TicketNumbers is the printed ticket range. End numbers follow the
// current quantities; begins are the stored range.
type TicketNumbers struct {
	BeginAdult int
	EndAdult   int
	BeginChild int
	EndChild   int
}

// DayLine is one row of the day breakdown.
type DayLine struct {
	Date           time.Time
	Weekday        string
	AdultQty       int
	ChildQty       int
	FreeAdultQty   int
	FreeChildQty   int
	AdultAmount    decimal.Decimal
	ChildAmount    decimal.Decimal
	AdultUnitPrice decimal.Decimal
	ChildUnitPrice decimal.Decimal
}

// Statement is everything a renderer needs for one borderel.
type Statement struct {
	Key     StatementKey
	Week    Speelweek
	Film    Film
	Room    Room
	Is3D    bool
	Rates   Rates
	Figures Figures
	Tickets TicketNumbers
	Days    []DayLine
}

// FileName returns the export name, "bo-<week>-<distributor>-<title>".
func (s *Statement) FileName() string {
	return slug.Make(fmt.Sprintf("BO %s %s %s",
		strconv.Itoa(s.Week.WeekNumber), s.Film.Distributor, s.Film.Title()))
}

// dayBreakdown lays rows out over the seven days of week.
func dayBreakdown(week Speelweek, rows []DailySales, fig Figures) []DayLine {
	byDate := make(map[string]DailySales, len(rows))
	for _, r := range rows {
		byDate[FormatDate(r.Date)] = r
	}
	dates := week.Period().Days()
	days := make([]DayLine, len(dates))
	for i, d := range dates {
		r, ok := byDate[FormatDate(d)]
		line := DayLine{
			Date:           d,
			Weekday:        WeekdayLabel(d),
			AdultAmount:    decimal.Zero,
			ChildAmount:    decimal.Zero,
			AdultUnitPrice: fig.AdultUnitPrice,
			ChildUnitPrice: fig.ChildUnitPrice,
		}
		if ok {
			line.AdultQty, line.ChildQty = r.PaidAdultQty, r.PaidChildQty
			line.FreeAdultQty, line.FreeChildQty = r.FreeAdultQty, r.FreeChildQty
			line.AdultAmount, line.ChildAmount = r.AdultAmount, r.ChildAmount
		}
		days[i] = line
	}
	return days
}

// =============================================================================
// SERVICE
// =============================================================================

// StatementService assembles statements from storage.
type StatementService struct {
	store     TxStore
	allocator *Allocator
	log       zerolog.Logger
}

func NewStatementService(store TxStore, allocator *Allocator) *StatementService {
	return &StatementService{store: store, allocator: allocator, log: logger.WithComponent("statements")}
}

// Build returns the statement of key. A key without sales rows is ErrNoData
// and allocates nothing.
func (s *StatementService) Build(ctx context.Context, key StatementKey) (*Statement, error) {
	week, err := s.store.GetSpeelweek(ctx, key.SpeelweekID)
	if err != nil {
		return nil, wrapStorage("get speelweek", err)
	}
	if week == nil {
		return nil, notFound("speelweek", int64(key.SpeelweekID))
	}
	film, err := s.store.GetFilm(ctx, key.FilmID)
	if err != nil {
		return nil, wrapStorage("get film", err)
	}
	if film == nil {
		return nil, notFound("film", int64(key.FilmID))
	}
	room, err := s.store.GetRoom(ctx, key.RoomID)
	if err != nil {
		return nil, wrapStorage("get room", err)
	}
	if room == nil {
		return nil, notFound("room", int64(key.RoomID))
	}

	rows, err := s.store.ListWeekSales(ctx, key)
	if err != nil {
		return nil, wrapStorage("list week sales", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("week %d, %q in room %q: %w", week.WeekNumber, film.InternalTitle, room.Name, ErrNoData)
	}

	rates, err := NewSettings(s.store).Rates(ctx)
	if err != nil {
		return nil, err
	}
	fig := ComputeFigures(rows, rates)

	rng, err := s.allocator.Allocate(ctx, key)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		Key:     key,
		Week:    *week,
		Film:    *film,
		Room:    *room,
		Rates:   rates,
		Figures: fig,
		Tickets: TicketNumbers{
			BeginAdult: rng.BeginAdult,
			EndAdult:   TicketEnd(rng.BeginAdult, fig.PaidAdultQty),
			BeginChild: rng.BeginChild,
			EndChild:   TicketEnd(rng.BeginChild, fig.PaidChildQty),
		},
		Days: dayBreakdown(*week, rows, fig),
	}
	for _, r := range rows {
		st.Is3D = st.Is3D || r.Is3D
	}
	return st, nil
}

// StatementFailure records a combination that could not be built.
type StatementFailure struct {
	Key StatementKey
	Err error
}

// Batch is the result of BuildRange.
type Batch struct {
	Period     Period
	Statements []*Statement
	Failures   []StatementFailure
}

// BuildRange builds every (week, film, room) with sales in [from, to], in
// week order so each ticket range continues from an already allocated one.
// Failures of single statements are collected; storage failures while
// listing abort the batch.
func (s *StatementService) BuildRange(ctx context.Context, from, to time.Time) (*Batch, error) {
	p, err := NewPeriod(from, to)
	if err != nil {
		return nil, err
	}
	keys, err := s.store.StatementKeys(ctx, p.Start, p.End)
	if err != nil {
		return nil, wrapStorage("list statement keys", err)
	}

	batch := &Batch{Period: p}
	for _, k := range keys {
		st, err := s.Build(ctx, k)
		if err != nil {
			s.log.Error().Err(err).
				Int64("speelweek_id", int64(k.SpeelweekID)).
				Int64("film_id", int64(k.FilmID)).
				Int64("room_id", int64(k.RoomID)).
				Msg("Statement failed")
			batch.Failures = append(batch.Failures, StatementFailure{Key: k, Err: err})
			continue
		}
		batch.Statements = append(batch.Statements, st)
	}

	s.log.Info().
		Str("period", p.String()).
		Int("statements", len(batch.Statements)).
		Int("failures", len(batch.Failures)).
		Msg("Statements built")
	return batch, nil
}
