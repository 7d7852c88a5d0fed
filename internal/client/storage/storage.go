// Package storage opens the client database: it takes the single-writer
// file lock, opens SQLite and applies the embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docsync/internal/client/migrations"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// ErrLocked is returned when another process already holds the database.
var ErrLocked = errors.New("local database is in use by another process")

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// DB is an open client database together with its process lock.
type DB struct {
	*sql.DB
	lock *flock.Flock
}

// RunMigrations applies the embedded schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to migrate local database: %w", err)
	}
	return nil
}

// Open locks path+".lock", opens the SQLite file at path and migrates it.
// The pool is limited to one connection: the store is single-writer.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock local database: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	db, err := open(ctx, "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &DB{DB: db, lock: lock}, nil
}

// OpenMemory returns a migrated in-memory database. Used by tests and by
// throwaway sessions.
func OpenMemory(ctx context.Context) (*DB, error) {
	db, err := open(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database and releases the lock.
func (d *DB) Close() error {
	err := d.DB.Close()
	if d.lock != nil {
		if uerr := d.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}
