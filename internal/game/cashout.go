package game

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"crash-casino/internal/chain"
	"crash-casino/internal/fair"
)

// Typed rejection reasons; the wire layer forwards their text as the
// cash_out_response error code.
var (
	ErrRoundNotRunning      = errors.New("round_not_running")
	ErrRoundMismatch        = errors.New("round_mismatch")
	ErrMultiplierOutOfRange = errors.New("multiplier_out_of_range")
	ErrAlreadyCashedOut     = errors.New("already_cashed_out")
	ErrNoBet                = errors.New("no_bet")
)

// CashOutResult is an accepted cash-out plus its advisory payout. The
// estimate is non-binding: settlement recomputes against the pool
// balance at settlement time.
type CashOutResult struct {
	Record         CashOutRecord
	PayoutEstimate int64
}

// RequestCashOut validates and records a cash-out against the live
// multiplier at receipt time. The claimed multiplier may not exceed
// the server's authoritative value, whatever the client saw; a wallet
// gets at most one record per round.
func (m *Machine) RequestCashOut(ctx context.Context, roundID uint64, wallet string, multiplier float64) (CashOutResult, error) {
	m.mu.Lock()
	r := m.round
	if r == nil || r.Phase != PhaseRunning {
		m.mu.Unlock()
		return CashOutResult{}, ErrRoundNotRunning
	}
	if r.ID != roundID {
		m.mu.Unlock()
		return CashOutResult{}, ErrRoundMismatch
	}
	if multiplier < fair.MinMultiplier || multiplier > m.live {
		m.mu.Unlock()
		return CashOutResult{}, ErrMultiplierOutOfRange
	}
	if m.cashed[wallet] {
		m.mu.Unlock()
		return CashOutResult{}, ErrAlreadyCashedOut
	}
	// reserve the wallet before the chain read so a concurrent
	// duplicate can never also be accepted
	m.cashed[wallet] = true
	m.mu.Unlock()

	bet, err := m.chain.GetBet(ctx, roundID, wallet)
	if err != nil || bet.Amount <= 0 {
		m.mu.Lock()
		delete(m.cashed, wallet)
		m.mu.Unlock()
		if err != nil && !errors.Is(err, chain.ErrNoBet) {
			return CashOutResult{}, err
		}
		return CashOutResult{}, ErrNoBet
	}

	rec := CashOutRecord{Wallet: wallet, Multiplier: multiplier, At: time.Now(), Verified: true}
	m.mu.Lock()
	if r.Phase != PhaseRunning {
		// crashed while we were reading the bet
		delete(m.cashed, wallet)
		m.mu.Unlock()
		return CashOutResult{}, ErrRoundNotRunning
	}
	r.CashOuts = append(r.CashOuts, rec)
	m.mu.Unlock()

	pool, err := m.chain.PoolBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("pool read failed, estimate uncapped")
		pool = 0
	}
	est := EstimatePayout(bet.Amount, multiplier, pool, m.cfg.WinCapBps)

	log.Info().
		Uint64("round_id", roundID).
		Str("wallet", wallet).
		Float64("multiplier", multiplier).
		Int64("payout_estimate", est).
		Msg("cash-out accepted")
	m.hub.CashOutAccepted(roundID, rec, est)
	return CashOutResult{Record: rec, PayoutEstimate: est}, nil
}

// EstimatePayout applies the settlement formula to the given pool
// balance: amount x multiplier less the house edge, capped at the
// single-win share of the pool. pool <= 0 skips the cap.
func EstimatePayout(amount int64, multiplier float64, pool int64, winCapBps int64) int64 {
	payout := int64(math.Floor(float64(amount) * multiplier * (1 - fair.HouseEdge)))
	if pool > 0 {
		if limit := pool * winCapBps / 10000; payout > limit {
			payout = limit
		}
	}
	return payout
}
