package chain

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Contract-side economics, mirrored here so the simulator settles the
// way the deployed contract does.
const (
	houseEdgeBps = 150
	winCapBps    = 7000
	bpsDenom     = 10000
)

type simRound struct {
	info        RoundInfo
	entropy     *big.Int
	requestedAt time.Time
}

// Simulator is an in-memory stand-in for the game contract plus its
// VRF provider. Entropy becomes visible EntropyDelay after the
// randomness request, the way a callback would land a block or two
// later. It backs CHAIN_MODE=sim and the test suites.
type Simulator struct {
	chainID      uint64
	EntropyDelay time.Duration

	mu        sync.Mutex
	nextID    uint64
	nextSeq   uint64
	rounds    map[uint64]*simRound
	bets      map[uint64]map[string]*Bet
	pool      int64
	claimable map[string]int64
}

func NewSimulator(chainID uint64, entropyDelay time.Duration, pool int64) *Simulator {
	return &Simulator{
		chainID:      chainID,
		EntropyDelay: entropyDelay,
		rounds:       map[uint64]*simRound{},
		bets:         map[uint64]map[string]*Bet{},
		pool:         pool,
		claimable:    map[string]int64{},
	}
}

func (s *Simulator) ChainID() uint64 { return s.chainID }

func (s *Simulator) CreateRound(_ context.Context, commitment string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.rounds[id] = &simRound{info: RoundInfo{
		RoundID:    id,
		Commitment: commitment,
		Status:     StatusCreated,
	}}
	return id, nil
}

func (s *Simulator) RequestRandomness(_ context.Context, roundID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return 0, ErrNotFound
	}
	s.nextSeq++
	r.info.SequenceNumber = s.nextSeq
	r.info.Status = StatusRandomRequested
	r.requestedAt = time.Now()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return 0, err
	}
	r.entropy = new(big.Int).SetBytes(b)
	if r.entropy.Sign() == 0 {
		r.entropy = big.NewInt(1)
	}
	return r.info.SequenceNumber, nil
}

func (s *Simulator) GetRound(_ context.Context, roundID uint64) (RoundInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return RoundInfo{}, ErrNotFound
	}
	if r.info.Status == StatusRandomRequested && time.Since(r.requestedAt) >= s.EntropyDelay {
		r.info.Entropy = r.entropy
		r.info.Status = StatusRandomReady
	}
	info := r.info
	if info.Entropy != nil {
		info.Entropy = new(big.Int).Set(info.Entropy)
	}
	return info, nil
}

func (s *Simulator) RevealServerSeed(_ context.Context, roundID uint64, seed string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return "", ErrNotFound
	}
	h := sha256.Sum256([]byte(seed))
	if hex.EncodeToString(h[:]) != r.info.Commitment {
		return "", ErrCommitmentMismatch
	}
	r.info.Seed = seed
	r.info.Status = StatusRevealed
	return txHash("reveal", roundID, seed), nil
}

func (s *Simulator) SettleRound(_ context.Context, roundID uint64, finalMultiplier int64, seed string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return "", ErrNotFound
	}
	if r.info.Status != StatusRevealed {
		return "", ErrNotRevealed
	}
	if r.info.Seed != seed {
		return "", ErrCommitmentMismatch
	}
	r.info.FinalMultiplier = finalMultiplier
	r.info.Status = StatusSettled
	return txHash("settle", roundID, seed), nil
}

func (s *Simulator) ProcessCashOuts(_ context.Context, roundID uint64, entries []CashOutEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rounds[roundID]; !ok {
		return "", ErrNotFound
	}
	for _, e := range entries {
		bet, ok := s.bets[roundID][e.Wallet]
		if !ok || bet.Settled {
			continue
		}
		payout := bet.Amount * e.Multiplier / 100
		payout = payout * (bpsDenom - houseEdgeBps) / bpsDenom
		if limit := s.pool * winCapBps / bpsDenom; payout > limit {
			payout = limit
		}
		bet.CashOut = e.Multiplier
		bet.Settled = true
		s.pool -= payout
		s.claimable[e.Wallet] += payout
	}
	return txHash("cashouts", roundID, fmt.Sprintf("%d", len(entries))), nil
}

func (s *Simulator) GetBet(_ context.Context, roundID uint64, wallet string) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bet, ok := s.bets[roundID][wallet]
	if !ok {
		return Bet{}, ErrNoBet
	}
	return *bet, nil
}

func (s *Simulator) PoolBalance(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool, nil
}

// PlaceBet records a wallet's wager for a round, the way the contract
// would on a player's placeBet call. Dev-mode bots and tests use it.
func (s *Simulator) PlaceBet(roundID uint64, wallet string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bets[roundID] == nil {
		s.bets[roundID] = map[string]*Bet{}
	}
	s.bets[roundID][wallet] = &Bet{Wallet: wallet, Amount: amount}
	s.pool += amount
}

// Claimable reports a wallet's accumulated settled payout.
func (s *Simulator) Claimable(wallet string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimable[wallet]
}

func txHash(parts ...any) string {
	h := sha256.Sum256([]byte(fmt.Sprint(parts...)))
	return "0x" + hex.EncodeToString(h[:])
}
