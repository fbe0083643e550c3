package game

import (
	"math/big"
	"time"

	"crash-casino/internal/fair"
)

// Phase is the client-visible lifecycle stage of a round. The on-chain
// states (Created, RandomRequested, RandomReady, SeedRevealed, Settled)
// advance underneath; clients only ever see these.
type Phase string

const (
	PhasePreparing   Phase = "preparing_game"
	PhaseBettingOpen Phase = "betting_open"
	PhasePrepared    Phase = "prepared"
	PhaseRunning     Phase = "game_started"
	PhaseRevealed    Phase = "revealed"
	PhaseSettled     Phase = "settled"
)

// Round is the orchestrator's working state for one round. Only the
// Machine mutates it; the commitment never changes after creation and
// the secret seed leaves the struct only at reveal.
type Round struct {
	ID             uint64
	SecretSeed     string
	Commitment     string
	SequenceNumber uint64
	Entropy        *big.Int
	Phase          Phase
	StartedAt      time.Time
	BettingCloseAt time.Time
	TickIntervalMS int64
	RevealTx       string

	Curve    *fair.Curve
	CashOuts []CashOutRecord
}

// CashOutRecord is one accepted cash-out. Multiplier never exceeds the
// live multiplier at receipt time nor the round's final multiplier.
type CashOutRecord struct {
	Wallet     string    `json:"wallet"`
	Multiplier float64   `json:"multiplier"`
	At         time.Time `json:"at"`
	Verified   bool      `json:"verified"`
}

// Result is the archived summary of a settled round, kept for the
// recent-results list and independent verification.
type Result struct {
	RoundID         uint64    `json:"round_id"`
	FinalMultiplier float64   `json:"final_multiplier"`
	Commitment      string    `json:"commitment"`
	Seed            string    `json:"seed"`
	Entropy         string    `json:"entropy"`
	CrashedAt       time.Time `json:"crashed_at"`
}

// Snapshot is what a late joiner needs to resync mid-round.
type Snapshot struct {
	RoundID        uint64
	Phase          Phase
	LiveMultiplier float64
	BettingCloseAt time.Time
	LatestTick     *fair.Tick
	Results        []Result
}

// PhaseEvent is broadcast on every transition. Seed and TxHash are set
// only on the revealed transition.
type PhaseEvent struct {
	RoundID        uint64
	Phase          Phase
	BettingCloseAt time.Time
	Seed           string
	TxHash         string
}

// Broadcaster is the hub-facing fan-out surface. The machine calls it
// from the orchestration goroutine; implementations must not block.
type Broadcaster interface {
	PhaseChanged(ev PhaseEvent)
	TickGenerated(roundID uint64, tick fair.Tick)
	CashOutAccepted(roundID uint64, rec CashOutRecord, payoutEstimate int64)
}

// NopBroadcaster drops everything; used before a hub is attached.
type NopBroadcaster struct{}

func (NopBroadcaster) PhaseChanged(PhaseEvent)                      {}
func (NopBroadcaster) TickGenerated(uint64, fair.Tick)              {}
func (NopBroadcaster) CashOutAccepted(uint64, CashOutRecord, int64) {}
