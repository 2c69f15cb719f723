/*
Package posexport reads the point-of-sale day export.

FORMAT:
  CSV with a header row. The columns used are fixed:

    Categorie          "Film" for tickets; other rows are skipped later
    Naam van variant   "<screening> · <film title> · zaal beneden"
    Naam van artikel   ticket type; "kind" marks child, "3D" marks 3D
    Aantal             quantity
    Bedrag             amount, dot or comma decimal

  Other columns are ignored. Empty quantities and amounts read as 0;
  anything else that does not parse fails the read with its line number.
  Amounts go through accounting.ParseAmount, so "1.234,50" and "1,234.50"
  both read as 1234.50.

VARIANT PARSING:
  The variant is split on the first separator present out of "·", "•"
  and "|", else on " - ". The film is the second part, or the only part.
  "zaal beneden" is room 1, "zaal boven" room 2, anything else is the
  unassigned room.
*/
package posexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/accounting"
)

// Column names of the export.
const (
	ColCategory = "Categorie"
	ColVariant  = "Naam van variant"
	ColArticle  = "Naam van artikel"
	ColQuantity = "Aantal"
	ColAmount   = "Bedrag"
)

// Room names derived from the variant.
const (
	RoomDownstairs = "1"
	RoomUpstairs   = "2"
)

var ErrMissingColumn = errors.New("missing column")

// Reader parses exports. The zero value reads comma-separated files.
type Reader struct {
	// Comma is the field delimiter; 0 means ','.
	Comma rune
}

// Read parses an export with the default Reader.
func Read(r io.Reader) ([]accounting.TransactionRow, error) {
	return Reader{}.Read(r)
}

// Read parses all rows of r.
func (rd Reader) Read(r io.Reader) ([]accounting.TransactionRow, error) {
	cr := csv.NewReader(r)
	if rd.Comma != 0 {
		cr.Comma = rd.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []accounting.TransactionRow
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			i := cols[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		qty, err := parseQuantity(get(ColQuantity))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColQuantity, err)
		}
		amount, err := parseAmount(get(ColAmount))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColAmount, err)
		}

		film, room := ParseVariant(get(ColVariant))
		article := strings.ToLower(get(ColArticle))
		rows = append(rows, accounting.TransactionRow{
			Category: get(ColCategory),
			Film:     film,
			Room:     room,
			Child:    strings.Contains(article, "kind"),
			ThreeD:   strings.Contains(article, "3d"),
			Quantity: qty,
			Amount:   amount,
		})
	}
	return rows, nil
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[h] = i
	}
	for _, want := range []string{ColCategory, ColVariant, ColArticle, ColQuantity, ColAmount} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, want)
		}
	}
	return cols, nil
}

// ParseVariant extracts film title and room from a variant name.
func ParseVariant(variant string) (film, room string) {
	s := strings.TrimSpace(variant)
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "zaal beneden"):
		room = RoomDownstairs
	case strings.Contains(lower, "zaal boven"):
		room = RoomUpstairs
	}

	parts := splitVariant(s)
	switch {
	case len(parts) >= 2:
		film = parts[1]
	case len(parts) == 1:
		film = parts[0]
	}
	return film, room
}

func splitVariant(s string) []string {
	if s == "" {
		return nil
	}
	sep := " - "
	for _, c := range []string{"·", "•", "|"} {
		if strings.Contains(s, c) {
			sep = c
			break
		}
	}
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func parseQuantity(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	d, err := accounting.ParseAmount(s)
	if err != nil {
		return 0, &accounting.ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not a quantity", s)}
	}
	return int(d.IntPart()), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return accounting.ParseAmount(s)
}
