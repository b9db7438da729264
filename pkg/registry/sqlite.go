// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/sigstore/message-signing/pkg/credentials"
	"github.com/sigstore/message-signing/pkg/logging"
)

// DefaultLookupTimeout bounds a single lookup against a persistent registry.
const DefaultLookupTimeout = 5 * time.Second

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		name       TEXT NOT NULL,
		kind       TEXT NOT NULL,
		data       BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (name, kind)
	)`,
}

// SQLite is a registry persisted in a SQLite database. Entries hold the
// encoded form accepted by Decode.
type SQLite struct {
	db         *sql.DB
	timeout    time.Duration
	logger     logging.Logger
	generation atomic.Uint64
}

var _ Generational = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, logger logging.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("registry migration: %w", err)
		}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &SQLite{db: db, timeout: DefaultLookupTimeout, logger: logger}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Put validates data with Decode and stores it under name and kind,
// replacing any previous entry.
func (s *SQLite) Put(ctx context.Context, name string, kind credentials.Kind, data []byte) error {
	if _, err := Decode(kind, data); err != nil {
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (name, kind, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name, kind) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, kind.String(), data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store %s %q: %w", kind, name, err)
	}
	s.generation.Inc()
	return nil
}

// Get returns the stored data for name and kind, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, name string, kind credentials.Kind) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM credentials WHERE name = ? AND kind = ?`, name, kind.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s %q: %w", kind, name, err)
	}
	return data, nil
}

// Delete removes the entry for name and kind. Deleting a missing entry
// returns ErrNotFound.
func (s *SQLite) Delete(ctx context.Context, name string, kind credentials.Kind) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE name = ? AND kind = ?`, name, kind.String())
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", kind, name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.generation.Inc()
	return nil
}

// Generation increases on every Put or Delete through this handle.
func (s *SQLite) Generation() uint64 {
	return s.generation.Load()
}

// LookupByNameAndType implements credentials.BindingContext. Read or decode
// failures are logged and reported as not found.
func (s *SQLite) LookupByNameAndType(name string, kind credentials.Kind) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.logger.WithFields(map[string]interface{}{"name": name, "kind": kind.String()})
	data, err := s.Get(ctx, name, kind)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn("registry lookup failed: %v", err)
		}
		return nil, false
	}
	v, err := Decode(kind, data)
	if err != nil {
		log.Warn("registry entry is invalid: %v", err)
		return nil, false
	}
	return v, true
}
