/*
settings.go - Typed access to the persistent settings table

PURPOSE:
  The settings table is a plain string key/value store. This file adds
  typed reads with get-or-default-and-persist semantics and validated,
  all-or-nothing updates.

KEYS:
  week_start_weekday   int 0..6 (0 = Monday)       default 1 (Tuesday)
  week_counter         int >= 1, next week number  default 1
  vat_rate             decimal fraction            default 0.0566
  author_rate          decimal fraction on net     default 0.0120
  ticket_counter_volw  int >= 1, adult fallback    default 1
  ticket_counter_kind  int >= 1, child fallback    default 1

CONFIGURATION ERRORS:
  A missing key is created with its default. A stored value that does not
  parse or is out of range is overwritten with the default and a warning is
  logged; callers never see an error for it.
*/
package accounting

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/logger"
)

const (
	KeyWeekStartWeekday   = "week_start_weekday"
	KeyWeekCounter        = "week_counter"
	KeyVATRate            = "vat_rate"
	KeyAuthorRate         = "author_rate"
	KeyTicketCounterAdult = "ticket_counter_volw"
	KeyTicketCounterChild = "ticket_counter_kind"
)

const (
	DefaultWeekStartWeekday = 1
	DefaultWeekCounter      = 1
	DefaultTicketCounter    = 1
)

var (
	DefaultVATRate    = decimal.RequireFromString("0.0566")
	DefaultAuthorRate = decimal.RequireFromString("0.0120")
)

// Settings reads and writes typed settings.
type Settings struct {
	store SettingsStore
	log   zerolog.Logger
}

func NewSettings(store SettingsStore) *Settings {
	return &Settings{store: store, log: logger.WithComponent("settings")}
}

// Int returns an integer setting, creating it with def when missing.
func (s *Settings) Int(ctx context.Context, key string, def int) (int, error) {
	return s.boundedInt(ctx, key, def, minInt, maxInt)
}

// Decimal returns a decimal setting, creating it with def when missing.
// Comma decimal separators are accepted.
func (s *Settings) Decimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return decimal.Zero, wrapStorage("get setting "+key, err)
	}
	if ok {
		d, perr := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
		if perr == nil && !d.IsNegative() {
			return d, nil
		}
		s.log.Warn().Str("key", key).Str("value", raw).Str("default", def.String()).
			Msg("Invalid stored setting, resetting to default")
	}
	if err := s.SetDecimal(ctx, key, def); err != nil {
		return decimal.Zero, err
	}
	return def, nil
}

// SetInt stores an integer setting.
func (s *Settings) SetInt(ctx context.Context, key string, v int) error {
	return wrapStorage("set setting "+key, s.store.SetSetting(ctx, key, strconv.Itoa(v)))
}

// SetDecimal stores a decimal setting.
func (s *Settings) SetDecimal(ctx context.Context, key string, v decimal.Decimal) error {
	return wrapStorage("set setting "+key, s.store.SetSetting(ctx, key, v.String()))
}

// WeekStartWeekday returns the first day of a speelweek (0 = Monday).
func (s *Settings) WeekStartWeekday(ctx context.Context) (int, error) {
	return s.boundedInt(ctx, KeyWeekStartWeekday, DefaultWeekStartWeekday, 0, 6)
}

// WeekCounter returns the number the next new speelweek receives.
func (s *Settings) WeekCounter(ctx context.Context) (int, error) {
	return s.boundedInt(ctx, KeyWeekCounter, DefaultWeekCounter, 1, maxInt)
}

// TicketCounters returns the global fallback begin numbers.
func (s *Settings) TicketCounters(ctx context.Context) (adult, child int, err error) {
	adult, err = s.boundedInt(ctx, KeyTicketCounterAdult, DefaultTicketCounter, 1, maxInt)
	if err != nil {
		return 0, 0, err
	}
	child, err = s.boundedInt(ctx, KeyTicketCounterChild, DefaultTicketCounter, 1, maxInt)
	if err != nil {
		return 0, 0, err
	}
	return adult, child, nil
}

// Rates returns the VAT and author's-rights rates.
func (s *Settings) Rates(ctx context.Context) (Rates, error) {
	vat, err := s.Decimal(ctx, KeyVATRate, DefaultVATRate)
	if err != nil {
		return Rates{}, err
	}
	author, err := s.Decimal(ctx, KeyAuthorRate, DefaultAuthorRate)
	if err != nil {
		return Rates{}, err
	}
	return Rates{VAT: vat, Author: author}, nil
}

const (
	minInt = -int(^uint(0)>>1) - 1
	maxInt = int(^uint(0) >> 1)
)

func (s *Settings) boundedInt(ctx context.Context, key string, def, lo, hi int) (int, error) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return 0, wrapStorage("get setting "+key, err)
	}
	if ok {
		n, perr := strconv.Atoi(strings.TrimSpace(raw))
		if perr == nil && n >= lo && n <= hi {
			return n, nil
		}
		s.log.Warn().Str("key", key).Str("value", raw).Int("default", def).
			Msg("Invalid stored setting, resetting to default")
	}
	if err := s.SetInt(ctx, key, def); err != nil {
		return 0, err
	}
	return def, nil
}

// =============================================================================
// SNAPSHOT / UPDATE
// =============================================================================

// SettingsSnapshot is the full set of business settings.
type SettingsSnapshot struct {
	WeekStartWeekday   int
	WeekCounter        int
	VATRate            decimal.Decimal
	AuthorRate         decimal.Decimal
	TicketCounterAdult int
	TicketCounterChild int
}

// Snapshot reads every setting, creating missing ones.
func (s *Settings) Snapshot(ctx context.Context) (SettingsSnapshot, error) {
	var snap SettingsSnapshot
	var err error
	if snap.WeekStartWeekday, err = s.WeekStartWeekday(ctx); err != nil {
		return snap, err
	}
	if snap.WeekCounter, err = s.WeekCounter(ctx); err != nil {
		return snap, err
	}
	rates, err := s.Rates(ctx)
	if err != nil {
		return snap, err
	}
	snap.VATRate, snap.AuthorRate = rates.VAT, rates.Author
	if snap.TicketCounterAdult, snap.TicketCounterChild, err = s.TicketCounters(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
// Rates are given as percentages ("5,66", "5.66%").
type SettingsUpdate struct {
	WeekStartWeekday   *int    `json:"week_start_weekday,omitempty" validate:"omitempty,min=0,max=6"`
	WeekCounter        *int    `json:"week_counter,omitempty" validate:"omitempty,min=1"`
	VATPercent         *string `json:"vat_percent,omitempty"`
	AuthorPercent      *string `json:"author_percent,omitempty"`
	TicketCounterAdult *int    `json:"ticket_counter_volw,omitempty" validate:"omitempty,min=1"`
	TicketCounterChild *int    `json:"ticket_counter_kind,omitempty" validate:"omitempty,min=1"`
}

// Update validates every field first and then writes them in one
// transaction when the store supports it. Nothing is written when any field
// is invalid.
func (s *Settings) Update(ctx context.Context, u SettingsUpdate) error {
	if err := validateStruct(u); err != nil {
		return err
	}
	var vat, author *decimal.Decimal
	if u.VATPercent != nil {
		r, err := parseRateField("vat_percent", *u.VATPercent)
		if err != nil {
			return err
		}
		vat = &r
	}
	if u.AuthorPercent != nil {
		r, err := parseRateField("author_percent", *u.AuthorPercent)
		if err != nil {
			return err
		}
		author = &r
	}

	write := func(st SettingsStore) error {
		w := NewSettings(st)
		ints := []struct {
			key string
			v   *int
		}{
			{KeyWeekStartWeekday, u.WeekStartWeekday},
			{KeyWeekCounter, u.WeekCounter},
			{KeyTicketCounterAdult, u.TicketCounterAdult},
			{KeyTicketCounterChild, u.TicketCounterChild},
		}
		for _, f := range ints {
			if f.v == nil {
				continue
			}
			if err := w.SetInt(ctx, f.key, *f.v); err != nil {
				return err
			}
		}
		if vat != nil {
			if err := w.SetDecimal(ctx, KeyVATRate, *vat); err != nil {
				return err
			}
		}
		if author != nil {
			if err := w.SetDecimal(ctx, KeyAuthorRate, *author); err != nil {
				return err
			}
		}
		return nil
	}

	if tx, ok := s.store.(TxStore); ok {
		err := tx.WithTx(ctx, func(st Store) error { return write(st) })
		return wrapStorage("update settings", err)
	}
	return write(s.store)
}

// =============================================================================
// RATE PARSING
// =============================================================================

// ParseRate converts a percentage as typed by a user ("5,66", "5.66",
// "5,66 %") into a fraction (0.0566). Negative and non-numeric input is a
// ValidationError.
func ParseRate(s string) (decimal.Decimal, error) {
	return parseRateField("rate", s)
}

func parseRateField(field, s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "%"))
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" {
		return decimal.Zero, &ValidationError{Field: field, Reason: "is required"}
	}
	p, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a number: " + s}
	}
	if p.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return p.Div(decimal.NewFromInt(100)), nil
}

// FormatPercent renders a fraction as a percentage with two decimals and a
// comma separator: 0.0566 -> "5,66".
func FormatPercent(rate decimal.Decimal) string {
	return commaDecimal(rate.Mul(decimal.NewFromInt(100)).StringFixed(2))
}
