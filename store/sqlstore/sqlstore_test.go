package sqlstore_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlstore.Store {
	st, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func day(m time.Month, d int) time.Time { return accounting.Day(2024, m, d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed creates a week, a film and a room and returns them.
func seed(t *testing.T, st *sqlstore.Store, start time.Time, title, room string) (*accounting.Speelweek, *accounting.Film, *accounting.Room) {
	ctx := context.Background()
	w, err := st.FindSpeelweek(ctx, start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	if w == nil {
		w = &accounting.Speelweek{WeekNumber: 1, Start: start, End: start.AddDate(0, 0, 7)}
		require.NoError(t, st.InsertSpeelweek(ctx, w))
	}
	f, err := st.FindFilm(ctx, title)
	require.NoError(t, err)
	if f == nil {
		f = &accounting.Film{InternalTitle: title, DisplayTitle: title, Distributor: "Cinéart"}
		require.NoError(t, st.InsertFilm(ctx, f))
	}
	r, err := st.FindRoom(ctx, room)
	require.NoError(t, err)
	if r == nil {
		r = &accounting.Room{Name: room}
		require.NoError(t, st.InsertRoom(ctx, r))
	}
	return w, f, r
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_GetSetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetSetting(ctx, "week_counter")
	require.NoError(t, err)
	assert.False(t, ok, "missing key reports not found")

	require.NoError(t, st.SetSetting(ctx, "week_counter", "5"))
	require.NoError(t, st.SetSetting(ctx, "week_counter", "6"))

	v, ok, err := st.GetSetting(ctx, "week_counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6", v, "second write replaces the value")
}

// =============================================================================
// SPEELWEEK
// =============================================================================

func TestSpeelweek_DuplicateBoundsRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &accounting.Speelweek{WeekNumber: 5, Start: day(3, 12), End: day(3, 19)}
	require.NoError(t, st.InsertSpeelweek(ctx, w))
	assert.NotZero(t, w.ID)

	err := st.InsertSpeelweek(ctx, &accounting.Speelweek{WeekNumber: 6, Start: day(3, 12), End: day(3, 19)})
	assert.ErrorIs(t, err, accounting.ErrDuplicate)

	got, err := st.GetSpeelweek(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.WeekNumber)
	assert.True(t, got.Start.Equal(day(3, 12)))
	assert.True(t, got.End.Equal(day(3, 19)))
}

func TestSpeelweek_ResolveExampleScenario(t *testing.T) {
	// GIVEN: weeks start on Tuesday and the counter is at 5
	st := newTestStore(t)
	ctx := context.Background()
	engine := accounting.NewEngine(st, nil)
	require.NoError(t, engine.Settings.SetInt(ctx, accounting.KeyWeekStartWeekday, 1))
	require.NoError(t, engine.Settings.SetInt(ctx, accounting.KeyWeekCounter, 5))

	// WHEN: sales arrive on Fri 15, Sun 17 and Wed 20 March 2024
	w1, err := engine.Calendar.Resolve(ctx, day(3, 15))
	require.NoError(t, err)
	w2, err := engine.Calendar.Resolve(ctx, day(3, 17))
	require.NoError(t, err)
	w3, err := engine.Calendar.Resolve(ctx, day(3, 20))
	require.NoError(t, err)

	// THEN: the first two share week 5, the third is week 6
	assert.Equal(t, w1.ID, w2.ID)
	assert.Equal(t, 5, w1.WeekNumber)
	assert.True(t, w1.Start.Equal(day(3, 12)))
	assert.Equal(t, 6, w3.WeekNumber)
	assert.True(t, w3.Start.Equal(day(3, 19)))

	counter, err := engine.Settings.WeekCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, counter)
}

func TestSpeelweek_WeekNumberInUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := &accounting.Speelweek{WeekNumber: 3, Start: day(1, 2), End: day(1, 9)}
	b := &accounting.Speelweek{WeekNumber: 4, Start: day(1, 9), End: day(1, 16)}
	require.NoError(t, st.InsertSpeelweek(ctx, a))
	require.NoError(t, st.InsertSpeelweek(ctx, b))

	inUse, err := st.WeekNumberInUse(ctx, 3, day(1, 1), accounting.Day(2025, 1, 1), b.ID)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = st.WeekNumberInUse(ctx, 3, day(1, 1), accounting.Day(2025, 1, 1), a.ID)
	require.NoError(t, err)
	assert.False(t, inUse, "a week does not collide with itself")

	require.NoError(t, st.UpdateWeekNumber(ctx, b.ID, 10))
	got, err := st.GetSpeelweek(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.WeekNumber)

	err = st.UpdateWeekNumber(ctx, 999, 1)
	assert.ErrorIs(t, err, accounting.ErrNotFound)
}

// =============================================================================
// FILMS / ROOMS
// =============================================================================

func TestFilmsAndRooms_UniqueNames(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	f := &accounting.Film{InternalTitle: "Dune", DisplayTitle: "Dune: Part Two"}
	require.NoError(t, st.InsertFilm(ctx, f))
	err := st.InsertFilm(ctx, &accounting.Film{InternalTitle: "Dune"})
	assert.ErrorIs(t, err, accounting.ErrDuplicate)

	unassigned := &accounting.Room{Name: ""}
	require.NoError(t, st.InsertRoom(ctx, unassigned))
	found, err := st.FindRoom(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, found, "the empty room name is a real row")
	assert.Equal(t, unassigned.ID, found.ID)

	missing, err := st.GetFilm(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// DAILY SALES
// =============================================================================

func TestDailySales_UpsertReplaces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	w, f, r := seed(t, st, day(3, 12), "Dune", "1")

	row := accounting.DailySales{
		Date: day(3, 15), SpeelweekID: w.ID, FilmID: f.ID, RoomID: r.ID,
		PaidAdultQty: 10, PaidChildQty: 2,
		AdultAmount: dec("105.00"), ChildAmount: dec("14.50"),
		SourceFile: "pos-0315.csv",
	}
	require.NoError(t, st.UpsertDailySales(ctx, row))

	row.PaidAdultQty = 12
	row.AdultAmount = dec("126.004")
	row.AdultUnitPrice = dec("10.5003333333333333")
	row.Is3D = true
	require.NoError(t, st.UpsertDailySales(ctx, row))

	got, err := st.GetDailySales(ctx, row.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12, got.PaidAdultQty, "second upsert replaces, not adds")
	assert.Equal(t, 2, got.PaidChildQty)
	assert.True(t, got.Is3D)
	assert.True(t, got.AdultAmount.Equal(dec("126.00")), "amount rounded to cents: %s", got.AdultAmount)
	assert.True(t, got.ChildAmount.Equal(dec("14.50")))
	assert.True(t, got.Date.Equal(day(3, 15)))
	assert.True(t, got.AdultUnitPrice.Equal(dec("10.5003333333333333")), "unit price kept at full precision: %s", got.AdultUnitPrice)
	assert.True(t, got.ChildUnitPrice.IsZero())

	rows, err := st.ListWeekSales(ctx, accounting.StatementKey{SpeelweekID: w.ID, FilmID: f.ID, RoomID: r.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOpen_AddsUnitPriceColumnsToOlderDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "borderel.db")

	// GIVEN: A database whose daily_sales has no unit price columns
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE daily_sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_date TEXT NOT NULL,
		speelweek_id INTEGER NOT NULL,
		film_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		is_3d INTEGER NOT NULL DEFAULT 0,
		paid_adult_qty INTEGER NOT NULL DEFAULT 0,
		paid_child_qty INTEGER NOT NULL DEFAULT 0,
		free_adult_qty INTEGER NOT NULL DEFAULT 0,
		free_child_qty INTEGER NOT NULL DEFAULT 0,
		adult_amount TEXT NOT NULL DEFAULT '0',
		child_amount TEXT NOT NULL DEFAULT '0',
		total_qty INTEGER NOT NULL DEFAULT 0,
		total_amount TEXT NOT NULL DEFAULT '0',
		source_file TEXT NOT NULL DEFAULT '',
		UNIQUE (sale_date, film_id, room_id)
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// WHEN: Opening it twice
	st, err := sqlstore.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	st, err = sqlstore.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// THEN: Unit prices are stored
	w, f, r := seed(t, st, day(3, 12), "Dune", "1")
	row := accounting.DailySales{
		Date: day(3, 15), SpeelweekID: w.ID, FilmID: f.ID, RoomID: r.ID,
		PaidAdultQty: 3, AdultAmount: dec("10.00"), AdultUnitPrice: dec("3.3333333333333333"),
	}
	require.NoError(t, st.UpsertDailySales(ctx, row))
	got, err := st.GetDailySales(ctx, row.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AdultUnitPrice.Equal(dec("3.3333333333333333")), got.AdultUnitPrice.String())
}

func TestHistory_OrderedByDateRoomFilm(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w, dune, room2 := seed(t, st, day(3, 12), "Dune", "2")
	_, alien, room1 := seed(t, st, day(3, 12), "Alien", "1")

	put := func(d time.Time, f *accounting.Film, r *accounting.Room) {
		require.NoError(t, st.UpsertDailySales(ctx, accounting.DailySales{
			Date: d, SpeelweekID: w.ID, FilmID: f.ID, RoomID: r.ID,
			PaidAdultQty: 1, AdultAmount: dec("10"), ChildAmount: decimal.Zero,
		}))
	}
	put(day(3, 14), dune, room2)
	put(day(3, 13), dune, room1)
	put(day(3, 13), alien, room1)
	put(day(3, 13), alien, room2)

	rows, err := st.History(ctx, day(3, 13), day(3, 14))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = accounting.FormatDate(r.Date) + "/" + r.RoomName + "/" + r.FilmTitle
	}
	assert.Equal(t, []string{
		"2024-03-13/1/Alien",
		"2024-03-13/1/Dune",
		"2024-03-13/2/Alien",
		"2024-03-14/2/Dune",
	}, got)
	assert.Equal(t, w.WeekNumber, rows[0].WeekNumber)

	keys, err := st.StatementKeys(ctx, day(3, 12), day(3, 18))
	require.NoError(t, err)
	assert.Len(t, keys, 4, "one key per (week, film, room)")
}

// =============================================================================
// TICKET RANGES
// =============================================================================

func TestTicketRanges_PreviousByWeekStart(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w1, f, r := seed(t, st, day(3, 5), "Dune", "1")
	w2, _, _ := seed(t, st, day(3, 12), "Dune", "1")
	w3, _, _ := seed(t, st, day(3, 19), "Dune", "1")

	require.NoError(t, st.InsertTicketRange(ctx, accounting.TicketRange{SpeelweekID: w1.ID, FilmID: f.ID, RoomID: r.ID, BeginAdult: 1, BeginChild: 1}))
	require.NoError(t, st.InsertTicketRange(ctx, accounting.TicketRange{SpeelweekID: w2.ID, FilmID: f.ID, RoomID: r.ID, BeginAdult: 40, BeginChild: 9}))

	err := st.InsertTicketRange(ctx, accounting.TicketRange{SpeelweekID: w2.ID, FilmID: f.ID, RoomID: r.ID, BeginAdult: 1, BeginChild: 1})
	assert.ErrorIs(t, err, accounting.ErrDuplicate)

	prev, err := st.PreviousTicketRange(ctx, f.ID, r.ID, w3.Start)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, w2.ID, prev.SpeelweekID)
	assert.Equal(t, 40, prev.BeginAdult)

	prev, err = st.PreviousTicketRange(ctx, f.ID, r.ID, w1.Start)
	require.NoError(t, err)
	assert.Nil(t, prev, "nothing before the first run")

	all, err := st.ListTicketRanges(ctx, f.ID, r.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, w1.ID, all[0].SpeelweekID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx accounting.Store) error {
		require.NoError(t, tx.SetSetting(ctx, "week_counter", "42"))
		return accounting.ErrValidation
	})
	assert.ErrorIs(t, err, accounting.ErrValidation, "fn error is returned unchanged")

	_, ok, err := st.GetSetting(ctx, "week_counter")
	require.NoError(t, err)
	assert.False(t, ok, "write was rolled back")
}

func TestStatement_BuildOnSQLite(t *testing.T) {
	// GIVEN: one imported day with 37 adult and 3 child tickets
	st := newTestStore(t)
	ctx := context.Background()
	engine := accounting.NewEngine(st, nil)
	require.NoError(t, engine.Settings.SetInt(ctx, accounting.KeyTicketCounterAdult, 100))

	res, err := engine.Importer.Import(ctx, accounting.ImportRequest{
		Date:       day(3, 15),
		SourceFile: "pos.csv",
		Rows: []accounting.TransactionRow{
			{Category: "Film", Film: "Dune", Room: "1", Quantity: 37, Amount: dec("370.00")},
			{Category: "Film", Film: "Dune", Room: "1", Child: true, Quantity: 3, Amount: dec("21.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Saved)

	// WHEN: the statement is built
	stmt, err := engine.Statements.Build(ctx, accounting.StatementKey{
		SpeelweekID: res.Week.ID, FilmID: res.Rows[0].FilmID, RoomID: res.Rows[0].RoomID,
	})
	require.NoError(t, err)

	// THEN: totals and ticket numbers match
	assert.True(t, stmt.Figures.GrossTotal.Equal(dec("391.00")))
	assert.Equal(t, 40, stmt.Figures.TicketsTotal)
	assert.Equal(t, 100, stmt.Tickets.BeginAdult)
	assert.Equal(t, 136, stmt.Tickets.EndAdult)
	assert.Len(t, stmt.Days, 7)
}

func TestReset_ClearsEverything(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	w, _, _ := seed(t, st, day(3, 12), "Dune", "1")

	require.NoError(t, st.Reset(ctx))

	got, err := st.GetSpeelweek(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConcurrentResolveAndAllocate_FileDatabase(t *testing.T) {
	st, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "borderel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	engine := accounting.NewEngine(st, nil)
	require.NoError(t, engine.Settings.SetInt(ctx, accounting.KeyTicketCounterAdult, 100))
	require.NoError(t, engine.Settings.SetInt(ctx, accounting.KeyTicketCounterChild, 50))

	importDay := func(d time.Time, adult, child int) accounting.StatementKey {
		t.Helper()
		rows := []accounting.TransactionRow{{Category: "Film", Film: "Dune", Room: "1", Quantity: adult, Amount: decimal.NewFromInt(int64(10 * adult))}}
		if child > 0 {
			rows = append(rows, accounting.TransactionRow{Category: "Film", Film: "Dune", Room: "1", Child: true, Quantity: child, Amount: decimal.NewFromInt(int64(7 * child))})
		}
		res, err := engine.Importer.Import(ctx, accounting.ImportRequest{Date: d, Rows: rows})
		require.NoError(t, err)
		require.Equal(t, 1, res.Saved)
		return accounting.StatementKey{SpeelweekID: res.Week.ID, FilmID: res.Rows[0].FilmID, RoomID: res.Rows[0].RoomID}
	}

	// GIVEN: Week 1 printed with 37 adult and 4 child tickets
	keyA := importDay(day(3, 14), 37, 4)
	_, err = engine.Allocator.Allocate(ctx, keyA)
	require.NoError(t, err)

	// WHEN: Ten callers resolve the next, unseen week at once
	var wg sync.WaitGroup
	weeks := make([]accounting.SpeelweekID, 10)
	for i := range weeks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := engine.Calendar.Resolve(ctx, day(3, 22))
			if assert.NoError(t, err) {
				weeks[i] = w.ID
			}
		}(i)
	}
	wg.Wait()

	// THEN: One week, the week counter advanced once
	for _, id := range weeks {
		assert.Equal(t, weeks[0], id)
	}
	counter, err := engine.Settings.WeekCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counter)

	// WHEN: Ten callers allocate week 2's range at once
	keyB := importDay(day(3, 22), 12, 0)
	require.Equal(t, weeks[0], keyB.SpeelweekID)
	ranges := make([]accounting.TicketRange, 10)
	for i := range ranges {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := engine.Allocator.Allocate(ctx, keyB)
			if assert.NoError(t, err) {
				ranges[i] = r
			}
		}(i)
	}
	wg.Wait()

	// THEN: One shared range and the ticket counters raised once
	for _, r := range ranges {
		assert.Equal(t, ranges[0], r)
	}
	assert.Equal(t, 137, ranges[0].BeginAdult)
	assert.Equal(t, 54, ranges[0].BeginChild)

	stored, err := st.ListTicketRanges(ctx, keyA.FilmID, keyA.RoomID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	adult, child, err := engine.Settings.TicketCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 137, adult)
	assert.Equal(t, 54, child)
}
