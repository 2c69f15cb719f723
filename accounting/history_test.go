package accounting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
)

func TestHistory_OrderAndTotals(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	// GIVEN: Sales over two days in two rooms
	importSales(t, e,
		sale{date: "2024-03-15", film: "Wicked", room: "2", adult: 2},
		sale{date: "2024-03-14", film: "Wicked", room: "1", adult: 3, kids: 1},
	)
	_, err := e.Importer.Import(ctx, accounting.ImportRequest{
		Date: day("2024-03-14"),
		Rows: append(
			sale{film: "Anora", room: "1", adult: 4}.rows(),
			sale{film: "Dune", room: "2", adult: 5}.rows()...,
		),
	})
	require.NoError(t, err)

	// WHEN: Listing the week
	rows, err := e.History.Rows(ctx, day("2024-03-12"), day("2024-03-18"))
	require.NoError(t, err)

	// THEN: Ordered by date, room, film
	var got []string
	for _, r := range rows {
		got = append(got, accounting.FormatDate(r.Date)+" "+r.RoomName+" "+r.FilmTitle)
	}
	assert.Equal(t, []string{
		"2024-03-14 1 Anora",
		"2024-03-14 1 Wicked",
		"2024-03-14 2 Dune",
		"2024-03-15 2 Wicked",
	}, got)
	assert.Equal(t, 1, rows[0].WeekNumber)
	assert.NotZero(t, rows[0].SpeelweekID)

	totals := e.History.Totals(rows)
	assert.Equal(t, 4, totals.Rows)
	assert.Equal(t, 14, totals.PaidAdultQty)
	assert.Equal(t, 1, totals.PaidChildQty)
	assert.Equal(t, 15, totals.TotalQty)
	assert.Equal(t, "147.50", totals.TotalAmount.StringFixed(2))
}

func TestHistory_InclusiveBoundsAndValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 1})

	rows, err := e.History.Rows(ctx, day("2024-03-14"), day("2024-03-14"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = e.History.Rows(ctx, day("2024-03-15"), day("2024-03-20"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = e.History.Rows(ctx, day("2024-03-20"), day("2024-03-10"))
	var verr *accounting.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "to", verr.Field)
}

func TestRenumberWeek(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100})

	// GIVEN: Weeks 1 and 2 of 2024 with an allocated ticket range
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 10})
	before, err := e.Statements.Build(ctx, keyA)
	require.NoError(t, err)

	// WHEN: Week 2 takes number 1
	_, err = e.History.RenumberWeek(ctx, keyB.SpeelweekID, 1)
	// THEN: Conflict within the year
	assert.ErrorIs(t, err, accounting.ErrWeekNumberTaken)

	// WHEN: Week 1 is renumbered to 11
	w, err := e.History.RenumberWeek(ctx, keyA.SpeelweekID, 11)
	require.NoError(t, err)

	// THEN: Only the number changed
	assert.Equal(t, 11, w.WeekNumber)
	assert.Equal(t, before.Week.Start, w.Start)
	after, err := e.Statements.Build(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, before.Tickets, after.Tickets)
	assert.True(t, before.Figures.GrossTotal.Equal(after.Figures.GrossTotal))
	assert.Equal(t, "bo-11-dune", after.FileName())

	// AND: Setting the same number again is a no-op
	_, err = e.History.RenumberWeek(ctx, keyA.SpeelweekID, 11)
	assert.NoError(t, err)
}

func TestRenumberWeek_OtherYearMayReuse(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	w2023, err := e.Calendar.Resolve(ctx, day("2023-06-01"))
	require.NoError(t, err)
	w2024, err := e.Calendar.Resolve(ctx, day("2024-06-01"))
	require.NoError(t, err)

	_, err = e.History.RenumberWeek(ctx, w2024.ID, w2023.WeekNumber)
	assert.NoError(t, err)
}

func TestRenumberWeek_Invalid(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.History.RenumberWeek(ctx, 1, 0)
	assert.ErrorIs(t, err, accounting.ErrValidation)

	_, err = e.History.RenumberWeek(ctx, 42, 3)
	assert.ErrorIs(t, err, accounting.ErrNotFound)
}
