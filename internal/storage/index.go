/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage owns the on-disk certificate workspace: the cert.json
// manifest with timestamped backups, a per-workspace SQLite index over
// layout block text, and the layout snapshot history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"certstudio/internal/domain"
	applog "certstudio/internal/log"
	"certstudio/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores per-workspace ephemeral/index data under the
	// workspace root.
	IndexDirName  = ".cst"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump on breaking
	// schema changes and add a migration step.
	schemaVersion = 2
)

// IndexPath returns the full path to the workspace's index database.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures the per-workspace SQLite index exists at
// .cst/index.sqlite, opens it, enables WAL mode, and brings the schema
// up to date. Callers may close the returned DB when done.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create .cst dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .cst dir: %w", err)
	}

	path := IndexPath(root)
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_blocks_course ON blocks(course_id);`,
				`CREATE INDEX IF NOT EXISTS idx_assets_path ON assets(path);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_blocks(fts_blocks) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the core index tables and FTS structures.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per layout block, for lookup and full-text search over
		// the text the designer typed.
		`CREATE TABLE IF NOT EXISTS blocks (
			rowid_id  INTEGER PRIMARY KEY,
			course_id INTEGER NOT NULL,
			block_id  TEXT    NOT NULL,
			type      TEXT    NOT NULL,
			text      TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_course_block ON blocks(course_id, block_id);`,

		// Contentless FTS5 index fed from blocks via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_blocks USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		// Uploaded image assets (dedup by content hash).
		`CREATE TABLE IF NOT EXISTS assets (
			hash TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			type TEXT
		);`,

		// Layout snapshot history per course.
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			course_id  INTEGER NOT NULL,
			ts         TEXT    NOT NULL,
			doc_blob   BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_course_ts ON snapshots(course_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS blocks_ai AFTER INSERT ON blocks BEGIN
			INSERT INTO fts_blocks(rowid, text) VALUES (new.rowid_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_ad AFTER DELETE ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.rowid_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_au AFTER UPDATE OF text ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.rowid_id, old.text);
			INSERT INTO fts_blocks(rowid, text) VALUES (new.rowid_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// UpdateIndex replaces the indexed blocks of a course with the contents
// of a layout document. The index is derived data; this is a wholesale
// replace, never a merge.
func UpdateIndex(ctx context.Context, root string, courseID int64, doc domain.Document) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildBlocksFromDocument(ctx, db, courseID, doc)
}

// BlockHit is one full-text search result.
type BlockHit struct {
	CourseID int64
	BlockID  string
	Type     string
	Text     string
}

// SearchBlocks runs a full-text query over indexed block text.
func SearchBlocks(ctx context.Context, db *sql.DB, query string, limit int) ([]BlockHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT b.course_id, b.block_id, b.type, b.text
		FROM fts_blocks f JOIN blocks b ON b.rowid_id = f.rowid
		WHERE fts_blocks MATCH ? ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BlockHit
	for rows.Next() {
		var h BlockHit
		var text sql.NullString
		if err := rows.Scan(&h.CourseID, &h.BlockID, &h.Type, &text); err != nil {
			return nil, err
		}
		h.Text = text.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// DetectAndRebuildIndex checks for corruption or missing schema and
// rebuilds the index if needed. Returns true when a rebuild happened.
func DetectAndRebuildIndex(ctx context.Context, root string, courseID int64, doc domain.Document) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, root, courseID, doc); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM blocks LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := RebuildIndex(ctx, root, courseID, doc); err != nil {
		return false, err
	}
	return true, nil
}

// RebuildIndex drops and recreates the core tables, preserving
// meta/version, then repopulates from the given document.
func RebuildIndex(ctx context.Context, root string, courseID int64, doc domain.Document) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS assets;",
		"DROP TABLE IF EXISTS snapshots;",
		"DROP TRIGGER IF EXISTS blocks_ai;",
		"DROP TRIGGER IF EXISTS blocks_ad;",
		"DROP TRIGGER IF EXISTS blocks_au;",
		"DROP TABLE IF EXISTS blocks;",
		"DROP TABLE IF EXISTS fts_blocks;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildBlocksFromDocument(ctx, db, courseID, doc)
}

// backupIndexFile copies the index file into a timestamped backup under
// .cst/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// rebuildBlocksFromDocument replaces one course's rows in the blocks
// table from a layout document.
func rebuildBlocksFromDocument(ctx context.Context, db *sql.DB, courseID int64, doc domain.Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE course_id = ?;", courseID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear blocks: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO blocks(course_id, block_id, type, text) VALUES(?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for id, rec := range doc {
		text := strings.TrimSpace(rec.TextOverride)
		if _, err := ins.ExecContext(ctx, courseID, id, rec.Type, text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert block: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
