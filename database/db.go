package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store: tüm tablolar için tek sqlite bağlantısı
type Store struct {
	db *sql.DB
}

// Open, veritabanını açar ve migration'ları uygular. ":memory:" testler içindir.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("veritabanı klasörü oluşturulamadı: %w", err)
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	} else {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite tek yazıcı; bellek içi DB için de bağlantı tek kalmalı
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	goose.SetTableName("vidos_goose_db_version")
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migration hatası: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureUser, kullanıcı adını id'ye çevirir, yoksa oluşturur.
func (s *Store) EnsureUser(ctx context.Context, username string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (username) VALUES (?) ON CONFLICT(username) DO NOTHING`, username)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	return id, err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func joinImages(images []string) string {
	return strings.Join(images, "|")
}

func splitImages(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
