// Package sqlite keeps cache entries in a SQLite table through bun.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/unkn0wn-root/swrcache/store"
)

type entry struct {
	bun.BaseModel `bun:"table:swrcache_entries,alias:e"`

	Key   string `bun:"key,pk"`
	Value []byte `bun:"value,notnull"`
}

type Store struct {
	db      *bun.DB
	ownsSQL bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	// DSN for mattn/go-sqlite3, e.g. "file:cache.db?_journal_mode=WAL".
	DSN string
	// DB reuses an existing bun handle instead of opening DSN. It is not
	// closed by Close.
	DB *bun.DB
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	s := &Store{db: cfg.DB}
	if s.db == nil {
		if cfg.DSN == "" {
			return nil, errors.New("sqlite store: DSN or DB is required")
		}
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: open: %w", err)
		}
		// sqlite serializes writers anyway; one connection also keeps
		// ":memory:" databases coherent.
		sqldb.SetMaxOpenConns(1)
		s.db = bun.NewDB(sqldb, sqlitedialect.New())
		s.ownsSQL = true
	}

	_, err := s.db.NewCreateTable().Model((*entry)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		if s.ownsSQL {
			_ = s.db.Close()
		}
		return nil, fmt.Errorf("sqlite store: create table: %w", err)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := s.db.NewSelect().Model(&e).Where("key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	return e.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	e := &entry{Key: key, Value: value}
	_, err := s.db.NewInsert().
		Model(e).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

func (s *Store) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*entry)(nil)).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().Model((*entry)(nil)).Column("key").Scan(ctx, &keys)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Close(_ context.Context) error {
	if !s.ownsSQL {
		return nil
	}
	return s.db.Close()
}
