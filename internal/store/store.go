package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

// Store wraps DB access.
type Store struct {
	DB *sql.DB
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.DB.Close()
}

// EnsureSchema bootstraps the archive tables on startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rounds (
			round_id         BIGINT PRIMARY KEY,
			commitment       TEXT NOT NULL,
			seed             TEXT NOT NULL,
			sequence_number  BIGINT NOT NULL,
			entropy          TEXT NOT NULL,
			final_multiplier NUMERIC(10,2) NOT NULL,
			tick_interval_ms BIGINT NOT NULL,
			total_ticks      INT NOT NULL,
			started_at       TIMESTAMPTZ NOT NULL,
			settled_at       TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS cash_outs (
			id         TEXT PRIMARY KEY,
			round_id   BIGINT NOT NULL REFERENCES rounds(round_id),
			wallet     TEXT NOT NULL,
			multiplier NUMERIC(10,2) NOT NULL,
			at         TIMESTAMPTZ NOT NULL,
			UNIQUE (round_id, wallet)
		);
	`)
	return err
}

// SaveRound archives a settled round and its cash-outs in one tx.
func (s *Store) SaveRound(ctx context.Context, r ArchivedRound, cashOuts []CashOut) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (round_id, commitment, seed, sequence_number, entropy,
			final_multiplier, tick_interval_ms, total_ticks, started_at, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (round_id) DO NOTHING`,
		r.RoundID, r.Commitment, r.Seed, r.SequenceNumber, r.Entropy,
		r.FinalMultiplier, r.TickIntervalMS, r.TotalTicks, r.StartedAt, r.SettledAt)
	if err != nil {
		return err
	}
	for _, c := range cashOuts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cash_outs (id, round_id, wallet, multiplier, at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (round_id, wallet) DO NOTHING`,
			NewID(), c.RoundID, c.Wallet, c.Multiplier, c.At)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRecentRounds returns settled rounds, newest first.
func (s *Store) ListRecentRounds(ctx context.Context, limit int) ([]ArchivedRound, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT round_id, commitment, seed, sequence_number, entropy,
			final_multiplier, tick_interval_ms, total_ticks, started_at, settled_at
		FROM rounds ORDER BY round_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ArchivedRound{}
	for rows.Next() {
		var r ArchivedRound
		if err := rows.Scan(&r.RoundID, &r.Commitment, &r.Seed, &r.SequenceNumber, &r.Entropy,
			&r.FinalMultiplier, &r.TickIntervalMS, &r.TotalTicks, &r.StartedAt, &r.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRound loads one archived round.
func (s *Store) GetRound(ctx context.Context, roundID uint64) (ArchivedRound, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT round_id, commitment, seed, sequence_number, entropy,
			final_multiplier, tick_interval_ms, total_ticks, started_at, settled_at
		FROM rounds WHERE round_id = $1`, roundID)
	var r ArchivedRound
	if err := row.Scan(&r.RoundID, &r.Commitment, &r.Seed, &r.SequenceNumber, &r.Entropy,
		&r.FinalMultiplier, &r.TickIntervalMS, &r.TotalTicks, &r.StartedAt, &r.SettledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchivedRound{}, ErrNotFound
		}
		return ArchivedRound{}, err
	}
	return r, nil
}

// ListCashOuts returns a round's archived cash-outs.
func (s *Store) ListCashOuts(ctx context.Context, roundID uint64) ([]CashOut, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT round_id, wallet, multiplier, at
		FROM cash_outs WHERE round_id = $1 ORDER BY at`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CashOut{}
	for rows.Next() {
		var c CashOut
		if err := rows.Scan(&c.RoundID, &c.Wallet, &c.Multiplier, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
