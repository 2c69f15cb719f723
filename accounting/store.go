/*
store.go - Persistence interface for the accounting engine

PURPOSE:
  Defines the contract between the accounting rules and the database.
  Implementations: store/sqlstore (SQLite, MySQL) and accounting/store
  (in-memory, for tests).

CONTRACT:
  - Lookups return (nil, nil) when the record does not exist.
  - Inserts fill in the generated ID and return ErrDuplicate when a
    unique key already exists.
  - UpsertDailySales replaces every measure of an existing
    (date, film, room) row.
  - Speelweek bounds and ticket ranges are never updated or deleted.

TRANSACTIONS:
  Get-or-create operations (speelweek + counter, ticket range + counters,
  settings updates) run through TxStore.WithTx so the lookup and the writes
  commit or roll back together.
*/
package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SettingsStore is a string key/value store.
type SettingsStore interface {
	// GetSetting returns the raw value and whether the key exists.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting inserts or replaces a value.
	SetSetting(ctx context.Context, key, value string) error
}

// Store persists the accounting entities.
type Store interface {
	SettingsStore

	// Speelweek
	FindSpeelweek(ctx context.Context, start, end time.Time) (*Speelweek, error)
	GetSpeelweek(ctx context.Context, id SpeelweekID) (*Speelweek, error)
	InsertSpeelweek(ctx context.Context, w *Speelweek) error
	UpdateWeekNumber(ctx context.Context, id SpeelweekID, number int) error
	// WeekNumberInUse reports whether another speelweek starting in
	// [from, to) carries the number.
	WeekNumberInUse(ctx context.Context, number int, from, to time.Time, exclude SpeelweekID) (bool, error)

	// Films and rooms
	FindFilm(ctx context.Context, internalTitle string) (*Film, error)
	GetFilm(ctx context.Context, id FilmID) (*Film, error)
	InsertFilm(ctx context.Context, f *Film) error
	FindRoom(ctx context.Context, name string) (*Room, error)
	GetRoom(ctx context.Context, id RoomID) (*Room, error)
	InsertRoom(ctx context.Context, r *Room) error

	// Daily sales
	UpsertDailySales(ctx context.Context, s DailySales) error
	GetDailySales(ctx context.Context, key SalesKey) (*DailySales, error)
	// ListWeekSales returns the rows of a (week, film, room), by date.
	ListWeekSales(ctx context.Context, key StatementKey) ([]DailySales, error)

	// Ticket ranges
	FindTicketRange(ctx context.Context, key StatementKey) (*TicketRange, error)
	// PreviousTicketRange returns the range of the latest speelweek with
	// start date strictly before the given date, for the same film+room.
	PreviousTicketRange(ctx context.Context, filmID FilmID, roomID RoomID, before time.Time) (*TicketRange, error)
	// ListTicketRanges returns all ranges of a film+room by week start.
	ListTicketRanges(ctx context.Context, filmID FilmID, roomID RoomID) ([]TicketRange, error)
	InsertTicketRange(ctx context.Context, r TicketRange) error

	// Read side
	History(ctx context.Context, from, to time.Time) ([]HistoryRow, error)
	// StatementKeys returns the distinct (week, film, room) combinations
	// with sales in [from, to], ordered by week start, room name, film title.
	StatementKeys(ctx context.Context, from, to time.Time) ([]StatementKey, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// HistoryRow is a daily sales row joined with its week, film and room.
type HistoryRow struct {
	DailySales
	WeekNumber int
	WeekStart  time.Time
	WeekEnd    time.Time
	FilmTitle  string
	RoomName   string
}

// paidTotals sums the paid quantities of a set of rows.
func paidTotals(rows []DailySales) (adult, child int) {
	for _, r := range rows {
		adult += r.PaidAdultQty
		child += r.PaidChildQty
	}
	return adult, child
}

// sumAmounts sums adult and child revenue.
func sumAmounts(rows []DailySales) (adult, child decimal.Decimal) {
	adult, child = decimal.Zero, decimal.Zero
	for _, r := range rows {
		adult = adult.Add(r.AdultAmount)
		child = child.Add(r.ChildAmount)
	}
	return adult, child
}
