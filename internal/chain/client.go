// Package chain is the server's view of the on-chain game contract:
// the function surface it calls and the round/bet data it reads back.
// The contract itself, the token and the VRF provider live elsewhere.
package chain

import (
	"context"
	"errors"
	"math/big"
)

var (
	ErrNotFound           = errors.New("round not found")
	ErrNoBet              = errors.New("no bet")
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	ErrNotRevealed        = errors.New("round not revealed")
)

// Status mirrors the contract's round enum.
type Status uint8

const (
	StatusNone Status = iota
	StatusCreated
	StatusRandomRequested
	StatusRandomReady
	StatusRevealed
	StatusSettled
)

// RoundInfo is the getRound view. Entropy is zero until the VRF
// callback lands; Seed is empty until the server reveals.
type RoundInfo struct {
	RoundID         uint64
	Commitment      string
	Seed            string
	SequenceNumber  uint64
	Entropy         *big.Int
	FinalMultiplier int64
	Status          Status
}

// Bet is the getBet view. Amount is in whole token units; CashOut is
// the 2-decimal fixed-point multiplier, 0 while open.
type Bet struct {
	Wallet  string `json:"wallet"`
	Amount  int64  `json:"amount"`
	CashOut int64  `json:"cash_out"`
	Settled bool   `json:"settled"`
}

// CashOutEntry is one element of a processCashOuts batch.
type CashOutEntry struct {
	Wallet     string `json:"wallet"`
	Multiplier int64  `json:"multiplier"`
}

// Client is the orchestrator's handle on the contract. Calls block on
// the network and honor ctx; a submitted transaction is never aborted,
// only the caller's waiting can be.
type Client interface {
	CreateRound(ctx context.Context, commitment string) (uint64, error)
	RequestRandomness(ctx context.Context, roundID uint64) (uint64, error)
	GetRound(ctx context.Context, roundID uint64) (RoundInfo, error)
	RevealServerSeed(ctx context.Context, roundID uint64, seed string) (string, error)
	SettleRound(ctx context.Context, roundID uint64, finalMultiplier int64, seed string) (string, error)
	ProcessCashOuts(ctx context.Context, roundID uint64, entries []CashOutEntry) (string, error)
	GetBet(ctx context.Context, roundID uint64, wallet string) (Bet, error)
	PoolBalance(ctx context.Context) (int64, error)
	ChainID() uint64
}
