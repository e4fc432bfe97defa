package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketlife/internal/game"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS save_slots (
	slot text PRIMARY KEY,
	day integer NOT NULL,
	tick bigint NOT NULL,
	net_worth_micros bigint NOT NULL,
	saved_at timestamptz NOT NULL,
	snapshot jsonb NOT NULL
)`

// PGStore keeps save slots in a Postgres table, one JSONB snapshot per row.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("ensure save_slots: %w", err)
	}
	return &PGStore{db: pool}, nil
}

func (s *PGStore) Save(ctx context.Context, slot string, snap game.Snapshot) error {
	if err := game.ValidateSlot(slot); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	info := snap.Info(slot)
	_, err = s.db.Exec(ctx, `
		INSERT INTO save_slots (slot, day, tick, net_worth_micros, saved_at, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slot) DO UPDATE
		SET day = EXCLUDED.day,
		    tick = EXCLUDED.tick,
		    net_worth_micros = EXCLUDED.net_worth_micros,
		    saved_at = EXCLUDED.saved_at,
		    snapshot = EXCLUDED.snapshot
	`, slot, info.Day, info.Tick, info.NetWorthMicros, info.SavedAt, raw)
	return err
}

func (s *PGStore) Load(ctx context.Context, slot string) (game.Snapshot, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT snapshot FROM save_slots WHERE slot = $1`, slot).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, game.ErrSlotNotFound
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return snap, nil
}

func (s *PGStore) List(ctx context.Context) ([]game.SlotInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT slot, day, tick, net_worth_micros, saved_at
		FROM save_slots
		ORDER BY saved_at DESC, slot
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]game.SlotInfo, 0)
	for rows.Next() {
		var info game.SlotInfo
		if err := rows.Scan(&info.Slot, &info.Day, &info.Tick, &info.NetWorthMicros, &info.SavedAt); err != nil {
			return nil, err
		}
		info.SavedAt = info.SavedAt.UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, slot string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM save_slots WHERE slot = $1`, slot)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return game.ErrSlotNotFound
	}
	return nil
}
