package sqlstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/cinemacentral/borderel/accounting"
)

// =============================================================================
// DIALECTS
// =============================================================================

// Dialect holds the SQL that differs between SQLite and MySQL.
type Dialect struct {
	Name   string
	driver string
	schema []string

	// conflict renders the upsert tail for a unique key and the columns to
	// overwrite.
	conflict func(key []string, cols []string) string

	// lockSuffix is appended to reads that must block concurrent writers
	// inside a transaction.
	lockSuffix string

	// addColumns upgrade tables created by older versions. Each statement
	// fails with a duplicate column error once applied.
	addColumns  []string
	isDuplicate func(error) bool

	isUnique func(error) bool
}

var sqliteDialect = Dialect{
	Name:   "sqlite",
	driver: "sqlite3",
	schema: []string{
		"CREATE TABLE IF NOT EXISTS settings (\n" +
			"	`key` TEXT PRIMARY KEY,\n" +
			"	value TEXT NOT NULL\n" +
			")",
		`CREATE TABLE IF NOT EXISTS speelweek (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			week_number INTEGER NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			UNIQUE (start_date, end_date)
		)`,
		`CREATE TABLE IF NOT EXISTS films (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			internal_title TEXT NOT NULL UNIQUE,
			display_title TEXT NOT NULL DEFAULT '',
			distributor TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS daily_sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sale_date TEXT NOT NULL,
			speelweek_id INTEGER NOT NULL REFERENCES speelweek(id),
			film_id INTEGER NOT NULL REFERENCES films(id),
			room_id INTEGER NOT NULL REFERENCES rooms(id),
			is_3d INTEGER NOT NULL DEFAULT 0,
			paid_adult_qty INTEGER NOT NULL DEFAULT 0 CHECK (paid_adult_qty >= 0),
			paid_child_qty INTEGER NOT NULL DEFAULT 0 CHECK (paid_child_qty >= 0),
			free_adult_qty INTEGER NOT NULL DEFAULT 0 CHECK (free_adult_qty >= 0),
			free_child_qty INTEGER NOT NULL DEFAULT 0 CHECK (free_child_qty >= 0),
			adult_amount TEXT NOT NULL DEFAULT '0',
			child_amount TEXT NOT NULL DEFAULT '0',
			total_qty INTEGER NOT NULL DEFAULT 0,
			total_amount TEXT NOT NULL DEFAULT '0',
			source_file TEXT NOT NULL DEFAULT '',
			adult_unit_price TEXT NOT NULL DEFAULT '0',
			child_unit_price TEXT NOT NULL DEFAULT '0',
			UNIQUE (sale_date, film_id, room_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_sales_week
			ON daily_sales(speelweek_id, film_id, room_id)`,
		`CREATE TABLE IF NOT EXISTS ticket_ranges (
			speelweek_id INTEGER NOT NULL REFERENCES speelweek(id),
			film_id INTEGER NOT NULL REFERENCES films(id),
			room_id INTEGER NOT NULL REFERENCES rooms(id),
			begin_adult INTEGER NOT NULL CHECK (begin_adult > 0),
			begin_child INTEGER NOT NULL CHECK (begin_child > 0),
			PRIMARY KEY (speelweek_id, film_id, room_id)
		)`,
	},
	addColumns: []string{
		`ALTER TABLE daily_sales ADD COLUMN adult_unit_price TEXT NOT NULL DEFAULT '0'`,
		`ALTER TABLE daily_sales ADD COLUMN child_unit_price TEXT NOT NULL DEFAULT '0'`,
	},
	isDuplicate: func(err error) bool {
		return strings.Contains(err.Error(), "duplicate column name")
	},
	conflict: func(key, cols []string) string {
		set := make([]string, len(cols))
		for i, c := range cols {
			set[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
		return fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(key, ", "), strings.Join(set, ", "))
	},
	isUnique: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
}

var mysqlDialect = Dialect{
	Name:   "mysql",
	driver: "mysql",
	schema: []string{
		"CREATE TABLE IF NOT EXISTS settings (\n" +
			"	`key` VARCHAR(64) NOT NULL PRIMARY KEY,\n" +
			"	value VARCHAR(255) NOT NULL\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		`CREATE TABLE IF NOT EXISTS speelweek (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			week_number INT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			UNIQUE KEY uq_speelweek_bounds (start_date, end_date),
			KEY idx_speelweek_number (week_number)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS films (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			internal_title VARCHAR(255) NOT NULL,
			display_title VARCHAR(255) NOT NULL DEFAULT '',
			distributor VARCHAR(255) NOT NULL DEFAULT '',
			country VARCHAR(64) NOT NULL DEFAULT '',
			UNIQUE KEY uq_films_internal_title (internal_title)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			UNIQUE KEY uq_rooms_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS daily_sales (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			sale_date DATE NOT NULL,
			speelweek_id BIGINT NOT NULL,
			film_id BIGINT NOT NULL,
			room_id BIGINT NOT NULL,
			is_3d TINYINT(1) NOT NULL DEFAULT 0,
			paid_adult_qty INT UNSIGNED NOT NULL DEFAULT 0,
			paid_child_qty INT UNSIGNED NOT NULL DEFAULT 0,
			free_adult_qty INT UNSIGNED NOT NULL DEFAULT 0,
			free_child_qty INT UNSIGNED NOT NULL DEFAULT 0,
			adult_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
			child_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
			total_qty INT UNSIGNED NOT NULL DEFAULT 0,
			total_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
			source_file VARCHAR(255) NOT NULL DEFAULT '',
			adult_unit_price DECIMAL(30,16) NOT NULL DEFAULT 0,
			child_unit_price DECIMAL(30,16) NOT NULL DEFAULT 0,
			UNIQUE KEY uq_daily_sales (sale_date, film_id, room_id),
			KEY idx_daily_sales_week (speelweek_id, film_id, room_id),
			CONSTRAINT fk_daily_sales_week FOREIGN KEY (speelweek_id) REFERENCES speelweek(id),
			CONSTRAINT fk_daily_sales_film FOREIGN KEY (film_id) REFERENCES films(id),
			CONSTRAINT fk_daily_sales_room FOREIGN KEY (room_id) REFERENCES rooms(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS ticket_ranges (
			speelweek_id BIGINT NOT NULL,
			film_id BIGINT NOT NULL,
			room_id BIGINT NOT NULL,
			begin_adult INT NOT NULL,
			begin_child INT NOT NULL,
			PRIMARY KEY (speelweek_id, film_id, room_id),
			CONSTRAINT fk_ticket_ranges_week FOREIGN KEY (speelweek_id) REFERENCES speelweek(id),
			CONSTRAINT fk_ticket_ranges_film FOREIGN KEY (film_id) REFERENCES films(id),
			CONSTRAINT fk_ticket_ranges_room FOREIGN KEY (room_id) REFERENCES rooms(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	addColumns: []string{
		`ALTER TABLE daily_sales ADD COLUMN adult_unit_price DECIMAL(30,16) NOT NULL DEFAULT 0`,
		`ALTER TABLE daily_sales ADD COLUMN child_unit_price DECIMAL(30,16) NOT NULL DEFAULT 0`,
	},
	isDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1060
	},
	conflict: func(_, cols []string) string {
		set := make([]string, len(cols))
		for i, c := range cols {
			set[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
	},
	lockSuffix: " FOR UPDATE",
	isUnique: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1062
	},
}

// =============================================================================
// DATE COLUMNS
// =============================================================================

// dbDate scans DATE (MySQL, parseTime) and TEXT (SQLite) columns.
type dbDate time.Time

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = dbDate(accounting.DayOf(v))
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
}

func (d *dbDate) parse(s string) error {
	if len(s) > len(accounting.DateLayout) {
		s = s[:len(accounting.DateLayout)]
	}
	t, err := time.Parse(accounting.DateLayout, s)
	if err != nil {
		return err
	}
	*d = dbDate(t)
	return nil
}

func (d dbDate) Time() time.Time { return time.Time(d) }

// dateArg renders a date parameter.
func dateArg(t time.Time) string { return accounting.FormatDate(t) }
