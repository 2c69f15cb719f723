package accounting

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryFilm is the POS category of cinema tickets. Other categories
// (bar, merchandise) are ignored.
const CategoryFilm = "film"

// TransactionRow is one parsed POS line.
type TransactionRow struct {
	Category string
	Film     string
	Room     string
	Child    bool
	ThreeD   bool
	// Free marks complimentary tickets. POS exports never set it; free counts
	// then stay zero until corrected by hand.
	Free     bool
	Quantity int
	Amount   decimal.Decimal
}

// FilmRoomSales is the day total of one film in one room.
type FilmRoomSales struct {
	Film         string
	Room         string
	Is3D         bool
	PaidAdultQty int
	PaidChildQty int
	FreeAdultQty int
	FreeChildQty int
	AdultAmount  decimal.Decimal
	ChildAmount  decimal.Decimal
}

// Aggregate reduces the transaction rows of one day to one total per
// (film, room), ordered by film then room.
func Aggregate(rows []TransactionRow) []FilmRoomSales {
	type key struct{ film, room string }
	totals := make(map[key]*FilmRoomSales)

	for _, r := range rows {
		if r.Category != "" && !strings.EqualFold(strings.TrimSpace(r.Category), CategoryFilm) {
			continue
		}
		film := strings.TrimSpace(r.Film)
		if film == "" {
			continue
		}
		k := key{film, strings.TrimSpace(r.Room)}
		t, ok := totals[k]
		if !ok {
			t = &FilmRoomSales{Film: k.film, Room: k.room, AdultAmount: decimal.Zero, ChildAmount: decimal.Zero}
			totals[k] = t
		}
		t.Is3D = t.Is3D || r.ThreeD

		switch {
		case r.Free && r.Child:
			t.FreeChildQty += r.Quantity
		case r.Free:
			t.FreeAdultQty += r.Quantity
		case r.Child:
			t.PaidChildQty += r.Quantity
			t.ChildAmount = t.ChildAmount.Add(r.Amount)
		default:
			t.PaidAdultQty += r.Quantity
			t.AdultAmount = t.AdultAmount.Add(r.Amount)
		}
	}

	out := make([]FilmRoomSales, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Film != out[j].Film {
			return out[i].Film < out[j].Film
		}
		return out[i].Room < out[j].Room
	})
	return out
}

// UnitPrice returns amount/qty. ok is false when qty is not positive.
func UnitPrice(amount decimal.Decimal, qty int) (price decimal.Decimal, ok bool) {
	if qty <= 0 {
		return decimal.Zero, false
	}
	return amount.Div(decimal.NewFromInt(int64(qty))), true
}

// unitPriceOrZero is the statement rule: zero when nothing was sold.
func unitPriceOrZero(amount decimal.Decimal, qty int) decimal.Decimal {
	p, _ := UnitPrice(amount, qty)
	return p
}
