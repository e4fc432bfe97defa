package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"marketlife/internal/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS save_slots (
	slot TEXT PRIMARY KEY,
	day INTEGER NOT NULL,
	tick INTEGER NOT NULL,
	net_worth_micros INTEGER NOT NULL,
	saved_at INTEGER NOT NULL,
	snapshot TEXT NOT NULL
)`

// SQLiteStore keeps save slots in a local SQLite database file.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the slot
// table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single writer keeps WAL contention out of the picture.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure save_slots: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, slot string, snap game.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := game.ValidateSlot(slot); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	info := snap.Info(slot)
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO save_slots (slot, day, tick, net_worth_micros, saved_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			day = excluded.day,
			tick = excluded.tick,
			net_worth_micros = excluded.net_worth_micros,
			saved_at = excluded.saved_at,
			snapshot = excluded.snapshot
	`, slot, info.Day, info.Tick, info.NetWorthMicros, info.SavedAt.UnixNano(), string(raw))
	if err != nil {
		return fmt.Errorf("put slot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, slot string) (game.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return game.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return game.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT snapshot FROM save_slots WHERE slot = ?`, slot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, game.ErrSlotNotFound
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("get slot %s: %w", slot, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return snap, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]game.SlotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT slot, day, tick, net_worth_micros, saved_at
		FROM save_slots
		ORDER BY saved_at DESC, slot
	`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	out := make([]game.SlotInfo, 0)
	for rows.Next() {
		var (
			info    game.SlotInfo
			savedAt int64
		)
		if err := rows.Scan(&info.Slot, &info.Day, &info.Tick, &info.NetWorthMicros, &savedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		info.SavedAt = time.Unix(0, savedAt).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_slots WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	if n == 0 {
		return game.ErrSlotNotFound
	}
	return nil
}
