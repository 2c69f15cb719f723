/*
Package accounting provides the speelweek and box-office accounting engine.

PURPOSE:
  Turns daily point-of-sale totals into the weekly statements ("borderel")
  a cinema files per film, room and programming week. The package owns the
  rules; persistence, transport and rendering live elsewhere.

KEY CONCEPTS IN THIS FILE (types.go):
  - Speelweek:   7-day programming week with a sequential week number
  - Film / Room: reference data, created on first encounter
  - DailySales:  one row per (date, film, room), replaced on re-import
  - TicketRange: first ticket numbers of a (week, film, room) run

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, rounded to cents at persistence
  2. Idempotency: re-importing a day overwrites, never accumulates
  3. Get-or-create: weeks and ticket ranges are allocated once, atomically

SEE ALSO:
  - calendar.go:  week bounds and week-number allocation
  - tickets.go:   ticket range continuity across weeks
  - statement.go: statement figures
*/
package accounting

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SpeelweekID int64
type FilmID int64
type RoomID int64

// =============================================================================
// SPEELWEEK
// =============================================================================

// Speelweek is a programming week. Start is inclusive, End exclusive
// (Start + 7 days). The bounds never change once stored; WeekNumber may be
// corrected by hand.
type Speelweek struct {
	ID         SpeelweekID
	WeekNumber int
	Start      time.Time
	End        time.Time
}

// Period returns the week as an inclusive date range.
func (w Speelweek) Period() Period {
	return Period{Start: w.Start, End: w.End.AddDate(0, 0, -1)}
}

// Contains reports whether d falls in [Start, End).
func (w Speelweek) Contains(d time.Time) bool {
	d = DayOf(d)
	return !d.Before(w.Start) && d.Before(w.End)
}

// =============================================================================
// FILM / ROOM
// =============================================================================

// Film is identified by its internal title, the name used by the POS export.
type Film struct {
	ID            FilmID
	InternalTitle string
	DisplayTitle  string
	Distributor   string
	Country       string
}

// Title returns the display title, falling back to the internal title.
func (f Film) Title() string {
	if f.DisplayTitle != "" {
		return f.DisplayTitle
	}
	return f.InternalTitle
}

// Room is a screening room ("zaal"). The empty name is the unassigned room.
type Room struct {
	ID   RoomID
	Name string
}

// =============================================================================
// DAILY SALES
// =============================================================================

// SalesKey identifies a DailySales row.
type SalesKey struct {
	Date   time.Time
	FilmID FilmID
	RoomID RoomID
}

// DailySales holds one day of ticket sales for a film in a room.
// Paid quantities drive revenue and ticket numbering; free quantities are
// counted for audit only.
type DailySales struct {
	Date         time.Time
	SpeelweekID  SpeelweekID
	FilmID       FilmID
	RoomID       RoomID
	Is3D         bool
	PaidAdultQty int
	PaidChildQty int
	FreeAdultQty int
	FreeChildQty int
	AdultAmount  decimal.Decimal
	ChildAmount  decimal.Decimal
	SourceFile   string

	// Unit prices at full precision as imported or last set by hand; zero
	// when unknown. Corrections re-price from these, not from the rounded
	// amounts.
	AdultUnitPrice decimal.Decimal
	ChildUnitPrice decimal.Decimal
}

// Key returns the identity of the row.
func (s DailySales) Key() SalesKey {
	return SalesKey{Date: DayOf(s.Date), FilmID: s.FilmID, RoomID: s.RoomID}
}

// PaidQty is the number of paid tickets.
func (s DailySales) PaidQty() int { return s.PaidAdultQty + s.PaidChildQty }

// FreeQty is the number of free (comp) tickets.
func (s DailySales) FreeQty() int { return s.FreeAdultQty + s.FreeChildQty }

// TotalQty counts every ticket, paid and free.
func (s DailySales) TotalQty() int { return s.PaidQty() + s.FreeQty() }

// TotalAmount is the revenue of the day.
func (s DailySales) TotalAmount() decimal.Decimal { return s.AdultAmount.Add(s.ChildAmount) }

// Normalized returns the row as it is persisted: date truncated to the day
// and amounts rounded to cents.
func (s DailySales) Normalized() DailySales {
	s.Date = DayOf(s.Date)
	s.AdultAmount = RoundMoney(s.AdultAmount)
	s.ChildAmount = RoundMoney(s.ChildAmount)
	return s
}

// Validate rejects rows that must never reach storage.
func (s DailySales) Validate() error {
	counts := []struct {
		field string
		value int
	}{
		{"paid_adult_qty", s.PaidAdultQty},
		{"paid_child_qty", s.PaidChildQty},
		{"free_adult_qty", s.FreeAdultQty},
		{"free_child_qty", s.FreeChildQty},
	}
	for _, c := range counts {
		if c.value < 0 {
			return &ValidationError{Field: c.field, Reason: "must not be negative"}
		}
	}
	if s.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	return nil
}

// =============================================================================
// TICKET RANGES
// =============================================================================

// StatementKey identifies one statement: a film in a room during a week.
type StatementKey struct {
	SpeelweekID SpeelweekID
	FilmID      FilmID
	RoomID      RoomID
}

// TicketRange stores the first adult and child ticket numbers of a
// (week, film, room). End numbers are derived from sold quantities.
type TicketRange struct {
	SpeelweekID SpeelweekID
	FilmID      FilmID
	RoomID      RoomID
	BeginAdult  int
	BeginChild  int
}

// Key returns the statement key the range belongs to.
func (r TicketRange) Key() StatementKey {
	return StatementKey{SpeelweekID: r.SpeelweekID, FilmID: r.FilmID, RoomID: r.RoomID}
}

// =============================================================================
// MONEY
// =============================================================================

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Money formats an amount the way the statements print it: "1234,50".
func Money(d decimal.Decimal) string {
	return commaDecimal(d.StringFixed(2))
}

// ParseAmount reads a money amount as typed by people or exported by the
// POS: "12,50", "12.50", "1.234,50", "1,234.50", "€ 9,00". When both "."
// and "," occur, the last one is the decimal separator and the other must
// group thousands. A single separator kind occurring once is the decimal
// separator; occurring more than once it groups thousands.
func ParseAmount(s string) (decimal.Decimal, error) {
	in := s
	s = strings.TrimPrefix(strings.TrimSpace(s), "€")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	bad := func() (decimal.Decimal, error) {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("%q is not an amount", in)}
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	var decimalSep, groupSep string
	switch {
	case comma >= 0 && dot >= 0:
		decimalSep, groupSep = ",", "."
		if dot > comma {
			decimalSep, groupSep = ".", ","
		}
		if strings.Count(s, decimalSep) > 1 {
			return bad()
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 {
			decimalSep = ","
		} else {
			groupSep = ","
		}
	case dot >= 0:
		if strings.Count(s, ".") == 1 {
			decimalSep = "."
		} else {
			groupSep = "."
		}
	}

	if groupSep != "" {
		intPart := s
		if decimalSep != "" {
			intPart = s[:strings.LastIndex(s, decimalSep)]
		}
		groups := strings.Split(intPart, groupSep)
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return bad()
			}
		}
		s = strings.ReplaceAll(s, groupSep, "")
	}
	if decimalSep == "," {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return bad()
	}
	return d, nil
}

func commaDecimal(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '.' {
			b[i] = ','
		}
	}
	return string(b)
}
