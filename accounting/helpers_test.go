package accounting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/accounting/store"
)

func newEngine(t *testing.T) (*accounting.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return accounting.NewEngine(mem, nil), mem
}

func day(s string) time.Time {
	d, err := accounting.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intp(v int) *int { return &v }

// sale is one day of one film in one room, adult at 10.00 and child at 7.50.
type sale struct {
	date        string
	film, room  string
	adult, kids int
}

func (s sale) rows() []accounting.TransactionRow {
	rows := []accounting.TransactionRow{{
		Category: "Film", Film: s.film, Room: s.room,
		Quantity: s.adult, Amount: decimal.NewFromInt(int64(10 * s.adult)),
	}}
	if s.kids > 0 {
		rows = append(rows, accounting.TransactionRow{
			Category: "Film", Film: s.film, Room: s.room, Child: true,
			Quantity: s.kids, Amount: dec("7.50").Mul(decimal.NewFromInt(int64(s.kids))),
		})
	}
	return rows
}

// importSales imports each sale and returns the key of the last one.
func importSales(t *testing.T, e *accounting.Engine, sales ...sale) accounting.StatementKey {
	t.Helper()
	var key accounting.StatementKey
	for _, s := range sales {
		res, err := e.Importer.Import(context.Background(), accounting.ImportRequest{
			Date: day(s.date), SourceFile: s.date + ".csv", Rows: s.rows(),
		})
		require.NoError(t, err)
		require.Empty(t, res.Failed())
		require.NotNil(t, res.Week)
		key = accounting.StatementKey{SpeelweekID: res.Week.ID, FilmID: res.Rows[0].FilmID, RoomID: res.Rows[0].RoomID}
	}
	return key
}

func setInts(t *testing.T, e *accounting.Engine, kv map[string]int) {
	t.Helper()
	for k, v := range kv {
		require.NoError(t, e.Settings.SetInt(context.Background(), k, v))
	}
}
