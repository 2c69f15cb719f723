package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cinemacentral/borderel/accounting"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements accounting.Store on a connection or a transaction.
type queries struct {
	q    querier
	d    Dialect
	inTx bool
}

// dup maps unique violations to accounting.ErrDuplicate.
func (s *queries) dup(what string, err error) error {
	if err == nil {
		return nil
	}
	if s.d.isUnique(err) {
		return fmt.Errorf("%s: %w", what, accounting.ErrDuplicate)
	}
	return &accounting.StorageError{Op: what, Err: err}
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &accounting.StorageError{Op: op, Err: err}
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *queries) GetSetting(ctx context.Context, key string) (string, bool, error) {
	query := "SELECT value FROM settings WHERE `key` = ?"
	if s.inTx {
		query += s.d.lockSuffix
	}
	var value string
	err := s.q.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fail("get setting", err)
	}
	return value, true, nil
}

func (s *queries) SetSetting(ctx context.Context, key, value string) error {
	query := "INSERT INTO settings (`key`, value) VALUES (?, ?)" +
		s.d.conflict([]string{"`key`"}, []string{"value"})
	_, err := s.q.ExecContext(ctx, query, key, value)
	return fail("set setting", err)
}

// =============================================================================
// SPEELWEEK
// =============================================================================

const speelweekColumns = "id, week_number, start_date, end_date"

func scanSpeelweek(row interface{ Scan(...any) error }) (*accounting.Speelweek, error) {
	var w accounting.Speelweek
	var start, end dbDate
	if err := row.Scan(&w.ID, &w.WeekNumber, &start, &end); err != nil {
		return nil, err
	}
	w.Start, w.End = start.Time(), end.Time()
	return &w, nil
}

func (s *queries) FindSpeelweek(ctx context.Context, start, end time.Time) (*accounting.Speelweek, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+speelweekColumns+" FROM speelweek WHERE start_date = ? AND end_date = ?",
		dateArg(start), dateArg(end))
	w, err := scanSpeelweek(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, fail("find speelweek", err)
}

func (s *queries) GetSpeelweek(ctx context.Context, id accounting.SpeelweekID) (*accounting.Speelweek, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+speelweekColumns+" FROM speelweek WHERE id = ?", id)
	w, err := scanSpeelweek(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, fail("get speelweek", err)
}

func (s *queries) InsertSpeelweek(ctx context.Context, w *accounting.Speelweek) error {
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO speelweek (week_number, start_date, end_date) VALUES (?, ?, ?)",
		w.WeekNumber, dateArg(w.Start), dateArg(w.End))
	if err != nil {
		return s.dup("insert speelweek", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fail("insert speelweek", err)
	}
	w.ID = accounting.SpeelweekID(id)
	w.Start, w.End = accounting.DayOf(w.Start), accounting.DayOf(w.End)
	return nil
}

func (s *queries) UpdateWeekNumber(ctx context.Context, id accounting.SpeelweekID, number int) error {
	res, err := s.q.ExecContext(ctx, "UPDATE speelweek SET week_number = ? WHERE id = ?", number, id)
	if err != nil {
		return fail("update week number", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail("update week number", err)
	}
	if n == 0 {
		return fmt.Errorf("speelweek %d: %w", id, accounting.ErrNotFound)
	}
	return nil
}

func (s *queries) WeekNumberInUse(ctx context.Context, number int, from, to time.Time, exclude accounting.SpeelweekID) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM speelweek
		 WHERE week_number = ? AND start_date >= ? AND start_date < ? AND id <> ?`,
		number, dateArg(from), dateArg(to), exclude).Scan(&n)
	if err != nil {
		return false, fail("week number in use", err)
	}
	return n > 0, nil
}

// =============================================================================
// FILMS / ROOMS
// =============================================================================

const filmColumns = "id, internal_title, display_title, distributor, country"

func scanFilm(row interface{ Scan(...any) error }) (*accounting.Film, error) {
	var f accounting.Film
	if err := row.Scan(&f.ID, &f.InternalTitle, &f.DisplayTitle, &f.Distributor, &f.Country); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *queries) FindFilm(ctx context.Context, internalTitle string) (*accounting.Film, error) {
	f, err := scanFilm(s.q.QueryRowContext(ctx,
		"SELECT "+filmColumns+" FROM films WHERE internal_title = ?", internalTitle))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, fail("find film", err)
}

func (s *queries) GetFilm(ctx context.Context, id accounting.FilmID) (*accounting.Film, error) {
	f, err := scanFilm(s.q.QueryRowContext(ctx, "SELECT "+filmColumns+" FROM films WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, fail("get film", err)
}

func (s *queries) InsertFilm(ctx context.Context, f *accounting.Film) error {
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO films (internal_title, display_title, distributor, country) VALUES (?, ?, ?, ?)",
		f.InternalTitle, f.DisplayTitle, f.Distributor, f.Country)
	if err != nil {
		return s.dup("insert film", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fail("insert film", err)
	}
	f.ID = accounting.FilmID(id)
	return nil
}

func (s *queries) FindRoom(ctx context.Context, name string) (*accounting.Room, error) {
	var r accounting.Room
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM rooms WHERE name = ?", name).Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("find room", err)
	}
	return &r, nil
}

func (s *queries) GetRoom(ctx context.Context, id accounting.RoomID) (*accounting.Room, error) {
	var r accounting.Room
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM rooms WHERE id = ?", id).Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get room", err)
	}
	return &r, nil
}

func (s *queries) InsertRoom(ctx context.Context, r *accounting.Room) error {
	res, err := s.q.ExecContext(ctx, "INSERT INTO rooms (name) VALUES (?)", r.Name)
	if err != nil {
		return s.dup("insert room", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fail("insert room", err)
	}
	r.ID = accounting.RoomID(id)
	return nil
}

// =============================================================================
// DAILY SALES
// =============================================================================

var salesWriteColumns = []string{
	"speelweek_id", "is_3d",
	"paid_adult_qty", "paid_child_qty", "free_adult_qty", "free_child_qty",
	"adult_amount", "child_amount", "total_qty", "total_amount", "source_file",
	"adult_unit_price", "child_unit_price",
}

const salesColumns = `ds.sale_date, ds.speelweek_id, ds.film_id, ds.room_id, ds.is_3d,
	ds.paid_adult_qty, ds.paid_child_qty, ds.free_adult_qty, ds.free_child_qty,
	ds.adult_amount, ds.child_amount, ds.source_file,
	ds.adult_unit_price, ds.child_unit_price`

func salesDest(r *accounting.DailySales, date *dbDate) []any {
	return []any{
		date, &r.SpeelweekID, &r.FilmID, &r.RoomID, &r.Is3D,
		&r.PaidAdultQty, &r.PaidChildQty, &r.FreeAdultQty, &r.FreeChildQty,
		&r.AdultAmount, &r.ChildAmount, &r.SourceFile,
		&r.AdultUnitPrice, &r.ChildUnitPrice,
	}
}

func scanSales(row interface{ Scan(...any) error }) (*accounting.DailySales, error) {
	var r accounting.DailySales
	var date dbDate
	if err := row.Scan(salesDest(&r, &date)...); err != nil {
		return nil, err
	}
	r.Date = date.Time()
	return &r, nil
}

// UpsertDailySales inserts the row or overwrites every measure of the
// existing (date, film, room) row.
func (s *queries) UpsertDailySales(ctx context.Context, r accounting.DailySales) error {
	r = r.Normalized()
	query := "INSERT INTO daily_sales (sale_date, film_id, room_id, " + strings.Join(salesWriteColumns, ", ") + ")" +
		" VALUES (?" + strings.Repeat(", ?", len(salesWriteColumns)+2) + ")" +
		s.d.conflict([]string{"sale_date", "film_id", "room_id"}, salesWriteColumns)
	_, err := s.q.ExecContext(ctx, query,
		dateArg(r.Date), r.FilmID, r.RoomID,
		r.SpeelweekID, r.Is3D,
		r.PaidAdultQty, r.PaidChildQty, r.FreeAdultQty, r.FreeChildQty,
		r.AdultAmount, r.ChildAmount, r.TotalQty(), r.TotalAmount(), r.SourceFile,
		r.AdultUnitPrice, r.ChildUnitPrice)
	return fail("upsert daily sales", err)
}

func (s *queries) GetDailySales(ctx context.Context, key accounting.SalesKey) (*accounting.DailySales, error) {
	r, err := scanSales(s.q.QueryRowContext(ctx,
		"SELECT "+salesColumns+" FROM daily_sales ds WHERE ds.sale_date = ? AND ds.film_id = ? AND ds.room_id = ?",
		dateArg(key.Date), key.FilmID, key.RoomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, fail("get daily sales", err)
}

func (s *queries) ListWeekSales(ctx context.Context, key accounting.StatementKey) ([]accounting.DailySales, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+salesColumns+` FROM daily_sales ds
		 WHERE ds.speelweek_id = ? AND ds.film_id = ? AND ds.room_id = ?
		 ORDER BY ds.sale_date`,
		key.SpeelweekID, key.FilmID, key.RoomID)
	if err != nil {
		return nil, fail("list week sales", err)
	}
	defer rows.Close()

	var out []accounting.DailySales
	for rows.Next() {
		r, err := scanSales(rows)
		if err != nil {
			return nil, fail("scan daily sales", err)
		}
		out = append(out, *r)
	}
	return out, fail("list week sales", rows.Err())
}

// =============================================================================
// TICKET RANGES
// =============================================================================

const rangeColumns = "t.speelweek_id, t.film_id, t.room_id, t.begin_adult, t.begin_child"

func scanRange(row interface{ Scan(...any) error }) (*accounting.TicketRange, error) {
	var r accounting.TicketRange
	if err := row.Scan(&r.SpeelweekID, &r.FilmID, &r.RoomID, &r.BeginAdult, &r.BeginChild); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *queries) FindTicketRange(ctx context.Context, key accounting.StatementKey) (*accounting.TicketRange, error) {
	r, err := scanRange(s.q.QueryRowContext(ctx,
		"SELECT "+rangeColumns+" FROM ticket_ranges t WHERE t.speelweek_id = ? AND t.film_id = ? AND t.room_id = ?",
		key.SpeelweekID, key.FilmID, key.RoomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, fail("find ticket range", err)
}

func (s *queries) PreviousTicketRange(ctx context.Context, filmID accounting.FilmID, roomID accounting.RoomID, before time.Time) (*accounting.TicketRange, error) {
	r, err := scanRange(s.q.QueryRowContext(ctx,
		"SELECT "+rangeColumns+` FROM ticket_ranges t
		 JOIN speelweek w ON w.id = t.speelweek_id
		 WHERE t.film_id = ? AND t.room_id = ? AND w.start_date < ?
		 ORDER BY w.start_date DESC
		 LIMIT 1`,
		filmID, roomID, dateArg(before)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, fail("previous ticket range", err)
}

func (s *queries) ListTicketRanges(ctx context.Context, filmID accounting.FilmID, roomID accounting.RoomID) ([]accounting.TicketRange, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+rangeColumns+` FROM ticket_ranges t
		 JOIN speelweek w ON w.id = t.speelweek_id
		 WHERE t.film_id = ? AND t.room_id = ?
		 ORDER BY w.start_date`,
		filmID, roomID)
	if err != nil {
		return nil, fail("list ticket ranges", err)
	}
	defer rows.Close()

	var out []accounting.TicketRange
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, fail("scan ticket range", err)
		}
		out = append(out, *r)
	}
	return out, fail("list ticket ranges", rows.Err())
}

func (s *queries) InsertTicketRange(ctx context.Context, r accounting.TicketRange) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO ticket_ranges (speelweek_id, film_id, room_id, begin_adult, begin_child)
		 VALUES (?, ?, ?, ?, ?)`,
		r.SpeelweekID, r.FilmID, r.RoomID, r.BeginAdult, r.BeginChild)
	return s.dup("insert ticket range", err)
}

// =============================================================================
// READ SIDE
// =============================================================================

func (s *queries) History(ctx context.Context, from, to time.Time) ([]accounting.HistoryRow, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+salesColumns+`, w.week_number, w.start_date, w.end_date, f.internal_title, r.name
		 FROM daily_sales ds
		 JOIN speelweek w ON w.id = ds.speelweek_id
		 JOIN films f ON f.id = ds.film_id
		 JOIN rooms r ON r.id = ds.room_id
		 WHERE ds.sale_date >= ? AND ds.sale_date <= ?
		 ORDER BY ds.sale_date, r.name, f.internal_title`,
		dateArg(from), dateArg(to))
	if err != nil {
		return nil, fail("history", err)
	}
	defer rows.Close()

	var out []accounting.HistoryRow
	for rows.Next() {
		var h accounting.HistoryRow
		var date, start, end dbDate
		dest := append(salesDest(&h.DailySales, &date), &h.WeekNumber, &start, &end, &h.FilmTitle, &h.RoomName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fail("scan history", err)
		}
		h.Date, h.WeekStart, h.WeekEnd = date.Time(), start.Time(), end.Time()
		out = append(out, h)
	}
	return out, fail("history", rows.Err())
}

func (s *queries) StatementKeys(ctx context.Context, from, to time.Time) ([]accounting.StatementKey, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT ds.speelweek_id, ds.film_id, ds.room_id
		 FROM daily_sales ds
		 JOIN speelweek w ON w.id = ds.speelweek_id
		 JOIN films f ON f.id = ds.film_id
		 JOIN rooms r ON r.id = ds.room_id
		 WHERE ds.sale_date >= ? AND ds.sale_date <= ?
		 GROUP BY ds.speelweek_id, ds.film_id, ds.room_id, w.start_date, r.name, f.internal_title
		 ORDER BY w.start_date, r.name, f.internal_title`,
		dateArg(from), dateArg(to))
	if err != nil {
		return nil, fail("statement keys", err)
	}
	defer rows.Close()

	var out []accounting.StatementKey
	for rows.Next() {
		var k accounting.StatementKey
		if err := rows.Scan(&k.SpeelweekID, &k.FilmID, &k.RoomID); err != nil {
			return nil, fail("scan statement key", err)
		}
		out = append(out, k)
	}
	return out, fail("statement keys", rows.Err())
}
