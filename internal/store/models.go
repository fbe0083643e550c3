package store

import "time"

// ArchivedRound is the immutable record of a settled round. Seed and
// entropy are public from this point on: together with the round id
// and chain id they let anyone replay the curve.
type ArchivedRound struct {
	RoundID         uint64    `json:"round_id"`
	Commitment      string    `json:"commitment"`
	Seed            string    `json:"seed"`
	SequenceNumber  uint64    `json:"sequence_number"`
	Entropy         string    `json:"entropy"`
	FinalMultiplier float64   `json:"final_multiplier"`
	TickIntervalMS  int64     `json:"tick_interval_ms"`
	TotalTicks      int       `json:"total_ticks"`
	StartedAt       time.Time `json:"started_at"`
	SettledAt       time.Time `json:"settled_at"`
}

// CashOut is one archived cash-out record of a round.
type CashOut struct {
	RoundID    uint64    `json:"round_id"`
	Wallet     string    `json:"wallet"`
	Multiplier float64   `json:"multiplier"`
	At         time.Time `json:"at"`
}
