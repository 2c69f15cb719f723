// Package store provides an in-memory accounting.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cinemacentral/borderel/accounting"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one mutex. WithTx snapshots
// the maps and restores them when fn fails.
type Memory struct {
	mu sync.Mutex
	st *memState
}

var _ accounting.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newMemState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(accounting.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newMemState()
	return nil
}

func (m *Memory) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetSetting(ctx, key)
}

func (m *Memory) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetSetting(ctx, key, value)
}

func (m *Memory) FindSpeelweek(ctx context.Context, start, end time.Time) (*accounting.Speelweek, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FindSpeelweek(ctx, start, end)
}

func (m *Memory) GetSpeelweek(ctx context.Context, id accounting.SpeelweekID) (*accounting.Speelweek, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetSpeelweek(ctx, id)
}

func (m *Memory) InsertSpeelweek(ctx context.Context, w *accounting.Speelweek) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertSpeelweek(ctx, w)
}

func (m *Memory) UpdateWeekNumber(ctx context.Context, id accounting.SpeelweekID, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateWeekNumber(ctx, id, number)
}

func (m *Memory) WeekNumberInUse(ctx context.Context, number int, from, to time.Time, exclude accounting.SpeelweekID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.WeekNumberInUse(ctx, number, from, to, exclude)
}

func (m *Memory) FindFilm(ctx context.Context, internalTitle string) (*accounting.Film, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FindFilm(ctx, internalTitle)
}

func (m *Memory) GetFilm(ctx context.Context, id accounting.FilmID) (*accounting.Film, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetFilm(ctx, id)
}

func (m *Memory) InsertFilm(ctx context.Context, f *accounting.Film) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertFilm(ctx, f)
}

func (m *Memory) FindRoom(ctx context.Context, name string) (*accounting.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FindRoom(ctx, name)
}

func (m *Memory) GetRoom(ctx context.Context, id accounting.RoomID) (*accounting.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetRoom(ctx, id)
}

func (m *Memory) InsertRoom(ctx context.Context, r *accounting.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertRoom(ctx, r)
}

func (m *Memory) UpsertDailySales(ctx context.Context, s accounting.DailySales) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpsertDailySales(ctx, s)
}

func (m *Memory) GetDailySales(ctx context.Context, key accounting.SalesKey) (*accounting.DailySales, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetDailySales(ctx, key)
}

func (m *Memory) ListWeekSales(ctx context.Context, key accounting.StatementKey) ([]accounting.DailySales, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListWeekSales(ctx, key)
}

func (m *Memory) FindTicketRange(ctx context.Context, key accounting.StatementKey) (*accounting.TicketRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FindTicketRange(ctx, key)
}

func (m *Memory) PreviousTicketRange(ctx context.Context, filmID accounting.FilmID, roomID accounting.RoomID, before time.Time) (*accounting.TicketRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.PreviousTicketRange(ctx, filmID, roomID, before)
}

func (m *Memory) ListTicketRanges(ctx context.Context, filmID accounting.FilmID, roomID accounting.RoomID) ([]accounting.TicketRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListTicketRanges(ctx, filmID, roomID)
}

func (m *Memory) InsertTicketRange(ctx context.Context, r accounting.TicketRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertTicketRange(ctx, r)
}

func (m *Memory) History(ctx context.Context, from, to time.Time) ([]accounting.HistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.History(ctx, from, to)
}

func (m *Memory) StatementKeys(ctx context.Context, from, to time.Time) ([]accounting.StatementKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.StatementKeys(ctx, from, to)
}

// =============================================================================
// STATE - unlocked; also the view handed to WithTx callbacks
// =============================================================================

type salesKey struct {
	date   string
	filmID accounting.FilmID
	roomID accounting.RoomID
}

func keyOf(k accounting.SalesKey) salesKey {
	return salesKey{date: accounting.FormatDate(k.Date), filmID: k.FilmID, roomID: k.RoomID}
}

type memState struct {
	settings map[string]string
	weeks    map[accounting.SpeelweekID]accounting.Speelweek
	films    map[accounting.FilmID]accounting.Film
	rooms    map[accounting.RoomID]accounting.Room
	sales    map[salesKey]accounting.DailySales
	ranges   map[accounting.StatementKey]accounting.TicketRange

	nextWeek int64
	nextFilm int64
	nextRoom int64
}

func newMemState() *memState {
	return &memState{
		settings: make(map[string]string),
		weeks:    make(map[accounting.SpeelweekID]accounting.Speelweek),
		films:    make(map[accounting.FilmID]accounting.Film),
		rooms:    make(map[accounting.RoomID]accounting.Room),
		sales:    make(map[salesKey]accounting.DailySales),
		ranges:   make(map[accounting.StatementKey]accounting.TicketRange),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		settings: make(map[string]string, len(s.settings)),
		weeks:    make(map[accounting.SpeelweekID]accounting.Speelweek, len(s.weeks)),
		films:    make(map[accounting.FilmID]accounting.Film, len(s.films)),
		rooms:    make(map[accounting.RoomID]accounting.Room, len(s.rooms)),
		sales:    make(map[salesKey]accounting.DailySales, len(s.sales)),
		ranges:   make(map[accounting.StatementKey]accounting.TicketRange, len(s.ranges)),
		nextWeek: s.nextWeek,
		nextFilm: s.nextFilm,
		nextRoom: s.nextRoom,
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.weeks {
		c.weeks[k] = v
	}
	for k, v := range s.films {
		c.films[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.ranges {
		c.ranges[k] = v
	}
	return c
}

func (s *memState) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *memState) SetSetting(_ context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}

func (s *memState) FindSpeelweek(_ context.Context, start, end time.Time) (*accounting.Speelweek, error) {
	start, end = accounting.DayOf(start), accounting.DayOf(end)
	for _, w := range s.weeks {
		if w.Start.Equal(start) && w.End.Equal(end) {
			return &w, nil
		}
	}
	return nil, nil
}

func (s *memState) GetSpeelweek(_ context.Context, id accounting.SpeelweekID) (*accounting.Speelweek, error) {
	w, ok := s.weeks[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *memState) InsertSpeelweek(ctx context.Context, w *accounting.Speelweek) error {
	existing, _ := s.FindSpeelweek(ctx, w.Start, w.End)
	if existing != nil {
		return fmt.Errorf("speelweek %s: %w", accounting.FormatDate(w.Start), accounting.ErrDuplicate)
	}
	s.nextWeek++
	w.ID = accounting.SpeelweekID(s.nextWeek)
	w.Start, w.End = accounting.DayOf(w.Start), accounting.DayOf(w.End)
	s.weeks[w.ID] = *w
	return nil
}

func (s *memState) UpdateWeekNumber(_ context.Context, id accounting.SpeelweekID, number int) error {
	w, ok := s.weeks[id]
	if !ok {
		return fmt.Errorf("speelweek %d: %w", id, accounting.ErrNotFound)
	}
	w.WeekNumber = number
	s.weeks[id] = w
	return nil
}

func (s *memState) WeekNumberInUse(_ context.Context, number int, from, to time.Time, exclude accounting.SpeelweekID) (bool, error) {
	for _, w := range s.weeks {
		if w.ID == exclude || w.WeekNumber != number {
			continue
		}
		if !w.Start.Before(from) && w.Start.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memState) FindFilm(_ context.Context, internalTitle string) (*accounting.Film, error) {
	for _, f := range s.films {
		if f.InternalTitle == internalTitle {
			return &f, nil
		}
	}
	return nil, nil
}

func (s *memState) GetFilm(_ context.Context, id accounting.FilmID) (*accounting.Film, error) {
	f, ok := s.films[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *memState) InsertFilm(ctx context.Context, f *accounting.Film) error {
	if existing, _ := s.FindFilm(ctx, f.InternalTitle); existing != nil {
		return fmt.Errorf("film %q: %w", f.InternalTitle, accounting.ErrDuplicate)
	}
	s.nextFilm++
	f.ID = accounting.FilmID(s.nextFilm)
	s.films[f.ID] = *f
	return nil
}

func (s *memState) FindRoom(_ context.Context, name string) (*accounting.Room, error) {
	for _, r := range s.rooms {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memState) GetRoom(_ context.Context, id accounting.RoomID) (*accounting.Room, error) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memState) InsertRoom(ctx context.Context, r *accounting.Room) error {
	if existing, _ := s.FindRoom(ctx, r.Name); existing != nil {
		return fmt.Errorf("room %q: %w", r.Name, accounting.ErrDuplicate)
	}
	s.nextRoom++
	r.ID = accounting.RoomID(s.nextRoom)
	s.rooms[r.ID] = *r
	return nil
}

func (s *memState) UpsertDailySales(_ context.Context, row accounting.DailySales) error {
	row = row.Normalized()
	s.sales[keyOf(row.Key())] = row
	return nil
}

func (s *memState) GetDailySales(_ context.Context, key accounting.SalesKey) (*accounting.DailySales, error) {
	row, ok := s.sales[keyOf(key)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memState) ListWeekSales(_ context.Context, key accounting.StatementKey) ([]accounting.DailySales, error) {
	var rows []accounting.DailySales
	for _, r := range s.sales {
		if r.SpeelweekID == key.SpeelweekID && r.FilmID == key.FilmID && r.RoomID == key.RoomID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func (s *memState) FindTicketRange(_ context.Context, key accounting.StatementKey) (*accounting.TicketRange, error) {
	r, ok := s.ranges[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memState) PreviousTicketRange(ctx context.Context, filmID accounting.FilmID, roomID accounting.RoomID, before time.Time) (*accounting.TicketRange, error) {
	ranges, _ := s.ListTicketRanges(ctx, filmID, roomID)
	var prev *accounting.TicketRange
	for i := range ranges {
		if s.weeks[ranges[i].SpeelweekID].Start.Before(before) {
			prev = &ranges[i]
		}
	}
	return prev, nil
}

func (s *memState) ListTicketRanges(_ context.Context, filmID accounting.FilmID, roomID accounting.RoomID) ([]accounting.TicketRange, error) {
	var out []accounting.TicketRange
	for _, r := range s.ranges {
		if r.FilmID == filmID && r.RoomID == roomID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.weeks[out[i].SpeelweekID].Start.Before(s.weeks[out[j].SpeelweekID].Start)
	})
	return out, nil
}

func (s *memState) InsertTicketRange(_ context.Context, r accounting.TicketRange) error {
	if _, ok := s.ranges[r.Key()]; ok {
		return fmt.Errorf("ticket range %+v: %w", r.Key(), accounting.ErrDuplicate)
	}
	s.ranges[r.Key()] = r
	return nil
}

func (s *memState) History(_ context.Context, from, to time.Time) ([]accounting.HistoryRow, error) {
	p := accounting.Period{Start: accounting.DayOf(from), End: accounting.DayOf(to)}
	var rows []accounting.HistoryRow
	for _, r := range s.sales {
		if !p.Contains(r.Date) {
			continue
		}
		w := s.weeks[r.SpeelweekID]
		rows = append(rows, accounting.HistoryRow{
			DailySales: r,
			WeekNumber: w.WeekNumber,
			WeekStart:  w.Start,
			WeekEnd:    w.End,
			FilmTitle:  s.films[r.FilmID].InternalTitle,
			RoomName:   s.rooms[r.RoomID].Name,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.RoomName != b.RoomName {
			return a.RoomName < b.RoomName
		}
		return a.FilmTitle < b.FilmTitle
	})
	return rows, nil
}

func (s *memState) StatementKeys(_ context.Context, from, to time.Time) ([]accounting.StatementKey, error) {
	p := accounting.Period{Start: accounting.DayOf(from), End: accounting.DayOf(to)}
	seen := make(map[accounting.StatementKey]bool)
	var keys []accounting.StatementKey
	for _, r := range s.sales {
		if !p.Contains(r.Date) {
			continue
		}
		k := accounting.StatementKey{SpeelweekID: r.SpeelweekID, FilmID: r.FilmID, RoomID: r.RoomID}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		wa, wb := s.weeks[a.SpeelweekID].Start, s.weeks[b.SpeelweekID].Start
		if !wa.Equal(wb) {
			return wa.Before(wb)
		}
		ra, rb := s.rooms[a.RoomID].Name, s.rooms[b.RoomID].Name
		if ra != rb {
			return ra < rb
		}
		return s.films[a.FilmID].InternalTitle < s.films[b.FilmID].InternalTitle
	})
	return keys, nil
}
