// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database. It lives inside the binary as a single file.
// No separate server to run, which makes it the default store for local
// development, single-node deployments and tests (":memory:").
//
// The three collections (users, courses, enrollments) become three tables.
// Courses and enrollments reference each other only by id value; there is no
// foreign key and no cascade, matching the document-store layout.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	// Also registers the pure-Go "sqlite" driver with database/sql.
	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/learnloop/internal/repository"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface from the repository package.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/learnloop.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same tables.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// connPragmas run on every new pool connection. A PRAGMA sent through
// sql.DB.Exec only reaches whichever connection ran it.
//
// WAL lets readers proceed while a write is in flight. busy_timeout makes a
// writer wait for the lock instead of failing with SQLITE_BUSY when
// concurrent enroll requests contend for it. synchronous=NORMAL is durable
// under WAL and keeps commits short.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn appends connPragmas as modernc _pragma query parameters.
func dsn(dbPath string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return dbPath + "?" + q.Encode()
}

// Store returns the repository bundle backed by this database.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Users:       db,
		Courses:     db,
		Enrollments: db,
		Closer:      db,
	}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
// CREATE ... IF NOT EXISTS keeps it safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			photo      TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL DEFAULT 'student',
			status     TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL DEFAULT '',
			price            REAL NOT NULL DEFAULT 0,
			image            TEXT NOT NULL DEFAULT '',
			instructor_name  TEXT NOT NULL DEFAULT '',
			instructor_email TEXT NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			feedback         TEXT NOT NULL DEFAULT '',
			total_enrolled   INTEGER NOT NULL DEFAULT 0 CHECK (total_enrolled >= 0),
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_courses_status ON courses(status, category);
		CREATE INDEX IF NOT EXISTS idx_courses_instructor ON courses(instructor_email);
	`)
	if err != nil {
		return fmt.Errorf("creating courses table: %w", err)
	}

	// The unique index backs up the service-level "already enrolled" check
	// when two enroll requests for the same pair race.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS enrollments (
			id          TEXT PRIMARY KEY,
			user_email  TEXT NOT NULL,
			course_id   TEXT NOT NULL,
			price       REAL,
			enrolled_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_user_course
			ON enrollments(user_email, course_id);
	`)
	if err != nil {
		return fmt.Errorf("creating enrollments table: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqlErr *driver.Error
	return errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
