// Package library persists what is known about each comic and enumerates
// comics on disk.
package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"

	"github.com/golang-migrate/migrate/v4"
	gomigratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("comic not found")

// Comic is the persisted state of one archive.
type Comic struct {
	Identity    string
	Hashkey     string
	PageCount   int
	CurrentPage int
	UpdatedAt   time.Time
}

// Store records page counts and reading positions in sqlite.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; an in-memory database also lives per connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: log, now: time.Now}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Migrate() error {
	driver, err := gomigratesqlite.WithInstance(s.db, &gomigratesqlite.Config{})
	if err != nil {
		return err
	}
	d, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return err
	}

	s.logger.Debug("starting database migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	s.logger.Debug("finished database migrations")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordPageCount stores the page count discovered for entry.
func (s *Store) RecordPageCount(ctx context.Context, entry *types.Entry, n int) error {
	_, err := s.db.ExecContext(ctx, UpsertPageCount, entry.Identity, entry.Hashkey, n, s.now().Unix())
	if err != nil {
		return fmt.Errorf("record page count of %s: %w", entry.Identity, err)
	}
	return nil
}

// SetCurrentPage stores the last read page of entry.
func (s *Store) SetCurrentPage(ctx context.Context, entry *types.Entry, page int) error {
	_, err := s.db.ExecContext(ctx, UpsertCurrentPage, entry.Identity, entry.Hashkey, page, s.now().Unix())
	if err != nil {
		return fmt.Errorf("record current page of %s: %w", entry.Identity, err)
	}
	return nil
}

// Comic returns what is known about identity.
func (s *Store) Comic(ctx context.Context, identity string) (Comic, error) {
	c, err := scanComic(s.db.QueryRowContext(ctx, SelectComic, identity))
	if errors.Is(err, sql.ErrNoRows) {
		return Comic{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return c, err
}

// Load fills the page count and reading position of entry from the store.
// Unknown entries are left untouched.
func (s *Store) Load(ctx context.Context, entry *types.Entry) error {
	c, err := s.Comic(ctx, entry.Identity)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	entry.SetPageCount(c.PageCount)
	entry.CurrentPage = c.CurrentPage
	return nil
}

// Comics lists every recorded comic ordered by identity.
func (s *Store) Comics(ctx context.Context) ([]Comic, error) {
	rows, err := s.db.QueryContext(ctx, SelectComics)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comic
	for rows.Next() {
		c, err := scanComic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Forget removes identity from the store.
func (s *Store) Forget(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, DeleteComic, identity)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComic(row scanner) (Comic, error) {
	var c Comic
	var updated int64
	if err := row.Scan(&c.Identity, &c.Hashkey, &c.PageCount, &c.CurrentPage, &updated); err != nil {
		return Comic{}, err
	}
	c.UpdatedAt = time.Unix(updated, 0)
	return c, nil
}
