package accounting_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
)

func TestTicketEnd(t *testing.T) {
	assert.Equal(t, 136, accounting.TicketEnd(100, 37))
	assert.Equal(t, 100, accounting.TicketEnd(100, 1))
	assert.Equal(t, 99, accounting.TicketEnd(100, 0))
}

func TestAllocate_ContinuesPreviousWeek(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	// GIVEN: Week A with 37 adult and 4 child tickets, counters at 100/50
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100, accounting.KeyTicketCounterChild: 50})
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 37, kids: 4})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 12})

	// WHEN: Allocating A then B
	a, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)
	b, err := e.Allocator.Allocate(ctx, keyB)
	require.NoError(t, err)

	// THEN: A uses the counters, B continues after A's realized end
	assert.Equal(t, 100, a.BeginAdult)
	assert.Equal(t, 50, a.BeginChild)
	assert.Equal(t, 137, b.BeginAdult)
	assert.Equal(t, 54, b.BeginChild)
}

func TestAllocate_ZeroQuantityKeepsBegin(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100})

	// GIVEN: Week A sold no paid adult tickets
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 0, kids: 2})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 5})

	_, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)
	b, err := e.Allocator.Allocate(ctx, keyB)
	require.NoError(t, err)

	// THEN: B starts where A started
	assert.Equal(t, 100, b.BeginAdult)
}

func TestAllocate_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 10})

	first, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)

	// WHEN: Quantities change and the allocator runs again
	_, err = e.Sales.Correct(ctx, accounting.SalesCorrection{
		Date: day("2024-03-14"), FilmID: keyA.FilmID, RoomID: keyA.RoomID, PaidAdultQty: intp(25),
	})
	require.NoError(t, err)
	again, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)

	// THEN: The stored range is returned unchanged
	assert.Equal(t, first, again)
}

func TestAllocate_SkipsWeeksWithoutShowings(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 500})

	// GIVEN: Dune in March and again in May, another film in between
	keyMar := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 20})
	keyApr := importSales(t, e, sale{date: "2024-04-11", film: "Flow", room: "1", adult: 7})
	keyMay := importSales(t, e, sale{date: "2024-05-09", film: "Dune", room: "1", adult: 3})

	_, err := e.Allocator.Allocate(ctx, keyMar)
	require.NoError(t, err)
	apr, err := e.Allocator.Allocate(ctx, keyApr)
	require.NoError(t, err)
	may, err := e.Allocator.Allocate(ctx, keyMay)
	require.NoError(t, err)

	// THEN: Flow falls back to the counters; Dune continues its own run
	assert.Equal(t, 500, apr.BeginAdult)
	assert.Equal(t, 520, may.BeginAdult)
}

func TestAllocate_AdvancesCounters(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100, accounting.KeyTicketCounterChild: 10})

	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 37, kids: 3})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 1})
	_, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)
	_, err = e.Allocator.Allocate(ctx, keyB)
	require.NoError(t, err)

	// THEN: Counters are raised to the highest begin handed out
	adult, child, err := e.Settings.TicketCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 137, adult)
	assert.Equal(t, 13, child)
}

func TestAllocate_UnknownWeek(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Allocator.Allocate(context.Background(), accounting.StatementKey{SpeelweekID: 9, FilmID: 1, RoomID: 1})
	assert.ErrorIs(t, err, accounting.ErrNotFound)
}

func TestAudit_ReportsLateCorrection(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100})

	// GIVEN: Two allocated weeks in sequence
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 37})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 5})
	_, err := e.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)
	_, err = e.Allocator.Allocate(ctx, keyB)
	require.NoError(t, err)

	drifts, err := e.Allocator.Audit(ctx, keyA.FilmID, keyA.RoomID)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// WHEN: Week A is corrected to 40 tickets afterwards
	_, err = e.Sales.Correct(ctx, accounting.SalesCorrection{
		Date: day("2024-03-14"), FilmID: keyA.FilmID, RoomID: keyA.RoomID, PaidAdultQty: intp(40),
	})
	require.NoError(t, err)

	// THEN: The boundary overlaps by 3 adult tickets
	drifts, err = e.Allocator.Audit(ctx, keyA.FilmID, keyA.RoomID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, accounting.StreamAdult, drifts[0].Stream)
	assert.Equal(t, keyB.SpeelweekID, drifts[0].SpeelweekID)
	assert.Equal(t, 140, drifts[0].Expected)
	assert.Equal(t, 137, drifts[0].Actual)
	assert.Equal(t, -3, drifts[0].Gap())
}

// allocateConcurrently runs n Allocate calls for key at once.
func allocateConcurrently(t *testing.T, e *accounting.Engine, key accounting.StatementKey, n int) []accounting.TicketRange {
	t.Helper()
	var wg sync.WaitGroup
	got := make([]accounting.TicketRange, n)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng, err := e.Allocator.Allocate(context.Background(), key)
			if assert.NoError(t, err) {
				got[i] = rng
			}
		}(i)
	}
	wg.Wait()
	return got
}

func TestAllocate_Concurrent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	setInts(t, e, map[string]int{accounting.KeyTicketCounterAdult: 100, accounting.KeyTicketCounterChild: 50})
	keyA := importSales(t, e, sale{date: "2024-03-14", film: "Dune", room: "1", adult: 37, kids: 4})
	keyB := importSales(t, e, sale{date: "2024-03-21", film: "Dune", room: "1", adult: 12})

	// WHEN: Ten callers allocate the first range at once
	first := allocateConcurrently(t, e, keyA, 10)

	// THEN: All get the range taken from the counters
	for _, r := range first {
		assert.Equal(t, first[0], r)
	}
	assert.Equal(t, 100, first[0].BeginAdult)

	// WHEN: Ten callers allocate the continuation at once
	second := allocateConcurrently(t, e, keyB, 10)

	// THEN: One shared range, one counter raise
	for _, r := range second {
		assert.Equal(t, second[0], r)
	}
	assert.Equal(t, 137, second[0].BeginAdult)
	assert.Equal(t, 54, second[0].BeginChild)

	ranges, err := e.Store.ListTicketRanges(ctx, keyA.FilmID, keyA.RoomID)
	require.NoError(t, err)
	assert.Len(t, ranges, 2)
	adult, child, err := e.Settings.TicketCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 137, adult)
	assert.Equal(t, 54, child)
}
