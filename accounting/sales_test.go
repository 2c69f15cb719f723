package accounting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/accounting/store"
)

func TestImport_ReimportReplaces(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	s := sale{date: "2024-03-14", film: "Dune", room: "1", adult: 37, kids: 4}

	// GIVEN: The same day imported twice
	key := importSales(t, e, s, s)

	rows, err := e.Store.ListWeekSales(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 37, rows[0].PaidAdultQty)
	assert.Equal(t, "370.00", rows[0].AdultAmount.StringFixed(2))

	// WHEN: Importing a third time with a modified quantity
	s.adult = 40
	importSales(t, e, s)

	// THEN: The value is replaced, not added
	rows, err = e.Store.ListWeekSales(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 40, rows[0].PaidAdultQty)
	assert.Equal(t, 44, rows[0].TotalQty())
	assert.Equal(t, "2024-03-14.csv", rows[0].SourceFile)
}

func TestImport_RoundsAmountsAndCreatesReferenceData(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	// GIVEN: Amounts with sub-cent precision and an unassigned room
	res, err := e.Importer.Import(ctx, accounting.ImportRequest{
		Date: day("2024-03-14"),
		Rows: []accounting.TransactionRow{
			{Category: "Film", Film: "Anora", Quantity: 3, Amount: dec("28.333")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.True(t, res.Rows[0].Saved)

	// THEN: Film and room exist; the amount is stored rounded
	film, err := e.Store.FindFilm(ctx, "Anora")
	require.NoError(t, err)
	require.NotNil(t, film)
	assert.Equal(t, "Anora", film.Title())
	room, err := e.Store.FindRoom(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, room)

	stored, err := e.Store.GetDailySales(ctx, accounting.SalesKey{Date: day("2024-03-14"), FilmID: film.ID, RoomID: room.ID})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "28.33", stored.AdultAmount.String())
	assert.Equal(t, res.Week.ID, stored.SpeelweekID)
}

func TestImport_NothingToImport(t *testing.T) {
	e, _ := newEngine(t)

	res, err := e.Importer.Import(context.Background(), accounting.ImportRequest{
		Date: day("2024-03-14"),
		Rows: []accounting.TransactionRow{{Category: "Bar", Film: "Cola", Quantity: 1}},
	})

	// THEN: No week is created
	require.NoError(t, err)
	assert.Nil(t, res.Week)
	assert.Empty(t, res.Rows)
	counter, _ := e.Settings.WeekCounter(context.Background())
	assert.Equal(t, 1, counter)
}

func TestImport_MissingDate(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Importer.Import(context.Background(), accounting.ImportRequest{})
	assert.ErrorIs(t, err, accounting.ErrValidation)
}

func TestImport_ResolverFailureMarksRowUnsaved(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	resolver := accounting.FilmResolverFunc(func(_ context.Context, title string) (accounting.Film, error) {
		if title == "Onbekend" {
			return accounting.Film{}, errors.New("not in catalogue")
		}
		return accounting.Film{DisplayTitle: title + " (OV)", Distributor: "Cinéart", Country: "BE"}, nil
	})
	e := accounting.NewEngine(mem, resolver)

	// GIVEN: One film the resolver knows and one it rejects
	res, err := e.Importer.Import(ctx, accounting.ImportRequest{
		Date: day("2024-03-14"),
		Rows: []accounting.TransactionRow{
			{Category: "Film", Film: "Dune", Room: "1", Quantity: 2, Amount: dec("20")},
			{Category: "Film", Film: "Onbekend", Room: "1", Quantity: 1, Amount: dec("10")},
		},
	})
	require.NoError(t, err)

	// THEN: The good row is saved with resolved metadata, the other reported
	assert.Equal(t, 1, res.Saved)
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Onbekend", failed[0].Film)
	assert.Error(t, failed[0].Err)

	film, err := e.Store.FindFilm(ctx, "Dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune (OV)", film.Title())
	assert.Equal(t, "Cinéart", film.Distributor)
}

func TestCorrect_Reprices(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	key := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10, kids: 4})

	// WHEN: Adult quantity goes to 12, child price set to 8.00, 2 free tickets
	price := dec("8.00")
	got, err := e.Sales.Correct(ctx, accounting.SalesCorrection{
		Date: day("2024-03-14"), FilmID: key.FilmID, RoomID: key.RoomID,
		PaidAdultQty:   intp(12),
		ChildUnitPrice: &price,
		FreeAdultQty:   intp(2),
	})
	require.NoError(t, err)

	// THEN: Amounts follow unit prices; free tickets only change counts
	assert.Equal(t, "120.00", got.AdultAmount.StringFixed(2))
	assert.Equal(t, 4, got.PaidChildQty)
	assert.Equal(t, "32.00", got.ChildAmount.StringFixed(2))
	assert.Equal(t, 2, got.FreeAdultQty)
	assert.Equal(t, 18, got.TotalQty())
	assert.Equal(t, "152.00", got.TotalAmount().StringFixed(2))

	stored, err := e.Store.GetDailySales(ctx, got.Key())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 12, stored.PaidAdultQty)
	assert.True(t, stored.ChildAmount.Equal(got.ChildAmount))
}

func TestCorrect_PriceRequiredFromZero(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	key := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10})
	base := accounting.SalesCorrection{Date: day("2024-03-14"), FilmID: key.FilmID, RoomID: key.RoomID}

	// GIVEN: No child tickets stored
	// WHEN: Setting 3 child tickets without a price
	c := base
	c.PaidChildQty = intp(3)
	_, err := e.Sales.Correct(ctx, c)

	// THEN: Rejected
	var verr *accounting.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "child_unit_price", verr.Field)

	// WHEN: With a price
	price := decimal.NewFromFloat(7.5)
	c.ChildUnitPrice = &price
	got, err := e.Sales.Correct(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "22.50", got.ChildAmount.StringFixed(2))
}

func TestCorrect_Rejections(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	key := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10})
	base := accounting.SalesCorrection{Date: day("2024-03-14"), FilmID: key.FilmID, RoomID: key.RoomID}

	c := base
	c.PaidAdultQty = intp(-1)
	_, err := e.Sales.Correct(ctx, c)
	assert.ErrorIs(t, err, accounting.ErrValidation)

	c = base
	neg := dec("-1")
	c.AdultUnitPrice = &neg
	_, err = e.Sales.Correct(ctx, c)
	assert.ErrorIs(t, err, accounting.ErrValidation)

	c = base
	c.Date = day("2024-03-15")
	c.PaidAdultQty = intp(1)
	_, err = e.Sales.Correct(ctx, c)
	assert.ErrorIs(t, err, accounting.ErrNotFound)

	// THEN: The stored row is unchanged
	rows, err := e.Store.ListWeekSales(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].PaidAdultQty)
}

func TestCorrect_RoundTripKeepsImportUnitPrice(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	// GIVEN: 3 adult tickets for 10.00 in total
	res, err := e.Importer.Import(ctx, accounting.ImportRequest{
		Date: day("2024-03-14"),
		Rows: []accounting.TransactionRow{{Category: "Film", Film: "Flow", Room: "1", Quantity: 3, Amount: dec("10.00")}},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	base := accounting.SalesCorrection{Date: day("2024-03-14"), FilmID: res.Rows[0].FilmID, RoomID: res.Rows[0].RoomID}

	// WHEN: Corrected down to 1 and back up to 3
	c := base
	c.PaidAdultQty = intp(1)
	got, err := e.Sales.Correct(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "3.33", got.AdultAmount.StringFixed(2))

	c.PaidAdultQty = intp(3)
	got, err = e.Sales.Correct(ctx, c)
	require.NoError(t, err)

	// THEN: The original total comes back, not 9.99
	assert.Equal(t, "10.00", got.AdultAmount.StringFixed(2))
	stored, err := e.Store.GetDailySales(ctx, got.Key())
	require.NoError(t, err)
	assert.True(t, stored.AdultUnitPrice.Equal(dec("10").Div(dec("3"))), "unit price %s", stored.AdultUnitPrice)
}

func TestCorrect_ExplicitPriceIsKept(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	key := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10})
	base := accounting.SalesCorrection{Date: day("2024-03-14"), FilmID: key.FilmID, RoomID: key.RoomID}

	// GIVEN: The adult price set to 9.25 by hand
	price := dec("9.25")
	c := base
	c.AdultUnitPrice = &price
	_, err := e.Sales.Correct(ctx, c)
	require.NoError(t, err)

	// WHEN: Only the quantity changes afterwards
	c = base
	c.PaidAdultQty = intp(4)
	got, err := e.Sales.Correct(ctx, c)
	require.NoError(t, err)

	// THEN: The hand-set price is reused
	assert.Equal(t, "37.00", got.AdultAmount.StringFixed(2))
}
