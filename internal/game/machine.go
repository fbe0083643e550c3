package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crash-casino/internal/chain"
	"crash-casino/internal/config"
	"crash-casino/internal/fair"
	"crash-casino/internal/store"
)

var (
	// ErrEntropyTimeout means the VRF callback never landed within the
	// configured wait; the round is abandoned and recreated.
	ErrEntropyTimeout = errors.New("entropy wait exhausted")
	// ErrIntegrity means the secret no longer opens its commitment.
	// Never expected in correct operation.
	ErrIntegrity = errors.New("seed does not open commitment")
)

const chainWriteAttempts = 3

// Machine owns the single active round: its lifecycle, timing and the
// authoritative live multiplier. Exactly one Run loop drives it; the
// cash-out path is the only concurrent writer and goes through the
// same mutex.
type Machine struct {
	chain chain.Client
	store *store.Store
	cfg   config.GameConfig
	hub   Broadcaster

	mu         sync.Mutex
	round      *Round
	live       float64
	latestTick *fair.Tick
	cashed     map[string]bool
	results    []Result
}

func NewMachine(client chain.Client, st *store.Store, cfg config.GameConfig) *Machine {
	return &Machine{
		chain:  client,
		store:  st,
		cfg:    cfg,
		hub:    NopBroadcaster{},
		cashed: map[string]bool{},
	}
}

// AttachBroadcaster wires the hub in. Must happen before Run.
func (m *Machine) AttachBroadcaster(b Broadcaster) {
	m.hub = b
}

// Run drives rounds until ctx is cancelled. No single round's failure
// may stop the loop: errors are logged and the next attempt starts
// after a fixed delay.
func (m *Machine) Run(ctx context.Context) {
	log.Info().Msg("round loop starting")
	for {
		err := m.runRound(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("round loop stopped")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("round failed")
			if !sleepCtx(ctx, m.cfg.RoundRetry()) {
				return
			}
			continue
		}
		if !sleepCtx(ctx, m.cfg.AdvanceDelay()) {
			return
		}
	}
}

func (m *Machine) runRound(ctx context.Context) error {
	secret, err := fair.NewServerSeed()
	if err != nil {
		return err
	}

	r, err := m.openRound(ctx, secret, fair.Commitment(secret))
	if err != nil {
		return err
	}

	m.mu.Lock()
	r.BettingCloseAt = time.Now().Add(m.cfg.BettingWindow())
	m.mu.Unlock()
	m.transition(r, PhaseBettingOpen)
	if !sleepCtx(ctx, m.cfg.BettingWindow()) {
		return ctx.Err()
	}

	m.transition(r, PhasePrepared)
	if !sleepCtx(ctx, m.cfg.PreparedDelay()) {
		return ctx.Err()
	}

	start := time.Now()
	curve := fair.Generate(fair.Params{
		RoundID:        r.ID,
		Entropy:        r.Entropy,
		SecretSeed:     r.SecretSeed,
		ChainID:        m.chain.ChainID(),
		StartTS:        start.UnixMilli(),
		TickIntervalMS: r.TickIntervalMS,
	})

	m.mu.Lock()
	r.StartedAt = start
	r.Curve = &curve
	m.live = 1.00
	m.latestTick = nil
	m.mu.Unlock()
	m.transition(r, PhaseRunning)
	log.Info().
		Uint64("round_id", r.ID).
		Float64("final_multiplier", curve.FinalMultiplier).
		Int("total_ticks", curve.TotalTicks).
		Msg("round running")

	if err := m.streamTicks(ctx, r, &curve); err != nil {
		return err
	}
	if err := m.revealAndSettle(ctx, r, &curve); err != nil {
		return err
	}
	return m.finishRound(ctx, r, &curve)
}

// finishRound archives the round before paying out: a failed cash-out
// batch aborts the round, and the records must already be persisted by
// then so an operator can replay them.
func (m *Machine) finishRound(ctx context.Context, r *Round, c *fair.Curve) error {
	if err := m.archive(ctx, r, c); err != nil {
		return err
	}
	return m.settleCashOuts(ctx, r)
}

// openRound creates the round on-chain and waits the entropy in. An
// exhausted wait abandons the round: its commitment was never opened,
// so the same secret is reused under a fresh round id, indefinitely.
func (m *Machine) openRound(ctx context.Context, secret, commitment string) (*Round, error) {
	for {
		id, err := m.chain.CreateRound(ctx, commitment)
		if err != nil {
			return nil, fmt.Errorf("create round: %w", err)
		}
		r := &Round{
			ID:             id,
			SecretSeed:     secret,
			Commitment:     commitment,
			Phase:          PhasePreparing,
			TickIntervalMS: int64(m.cfg.TickIntervalMS),
		}
		m.install(r)
		m.transition(r, PhasePreparing)

		seq, err := m.chain.RequestRandomness(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("request randomness: %w", err)
		}
		m.mu.Lock()
		r.SequenceNumber = seq
		m.mu.Unlock()

		entropy, err := m.awaitEntropy(ctx, id)
		if errors.Is(err, ErrEntropyTimeout) {
			log.Warn().Uint64("round_id", id).Msg("entropy wait exhausted, replacing round")
			if !sleepCtx(ctx, m.cfg.RoundRetry()) {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		r.Entropy = entropy
		m.mu.Unlock()
		return r, nil
	}
}

// awaitEntropy polls getRound until the entropy value is non-zero,
// bounded by the configured max wait. Transient read errors count
// against the same deadline.
func (m *Machine) awaitEntropy(ctx context.Context, roundID uint64) (*big.Int, error) {
	deadline := time.Now().Add(m.cfg.EntropyMaxWait())
	ticker := time.NewTicker(m.cfg.EntropyPoll())
	defer ticker.Stop()
	for {
		info, err := m.chain.GetRound(ctx, roundID)
		if err != nil {
			log.Warn().Err(err).Uint64("round_id", roundID).Msg("entropy poll failed")
		} else if info.Entropy != nil && info.Entropy.Sign() != 0 {
			return info.Entropy, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrEntropyTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// streamTicks plays the generated curve in real time, updating the
// authoritative live multiplier tick by tick.
func (m *Machine) streamTicks(ctx context.Context, r *Round, c *fair.Curve) error {
	ticker := time.NewTicker(m.cfg.TickInterval())
	defer ticker.Stop()
	for i := range c.Ticks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		m.mu.Lock()
		m.live = c.Ticks[i].Candle.Close
		m.latestTick = &c.Ticks[i]
		m.mu.Unlock()
		m.hub.TickGenerated(r.ID, c.Ticks[i])
	}
	return nil
}

func (m *Machine) revealAndSettle(ctx context.Context, r *Round, c *fair.Curve) error {
	if !fair.VerifyReveal(r.SecretSeed, r.Commitment) {
		log.Error().
			Uint64("round_id", r.ID).
			Str("commitment", r.Commitment).
			Msg("integrity failure: secret does not open commitment")
		return ErrIntegrity
	}

	txHash, err := withRetry(ctx, chainWriteAttempts, func() (string, error) {
		return m.chain.RevealServerSeed(ctx, r.ID, r.SecretSeed)
	})
	if errors.Is(err, chain.ErrCommitmentMismatch) {
		return fmt.Errorf("%w: contract rejected reveal", ErrIntegrity)
	}
	if err != nil {
		return fmt.Errorf("reveal: %w", err)
	}
	m.mu.Lock()
	r.RevealTx = txHash
	m.mu.Unlock()
	m.transition(r, PhaseRevealed)

	if _, err := withRetry(ctx, chainWriteAttempts, func() (string, error) {
		return m.chain.SettleRound(ctx, r.ID, fair.FixedPoint(c.FinalMultiplier), r.SecretSeed)
	}); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

func (m *Machine) archive(ctx context.Context, r *Round, c *fair.Curve) error {
	res := Result{
		RoundID:         r.ID,
		FinalMultiplier: c.FinalMultiplier,
		Commitment:      r.Commitment,
		Seed:            r.SecretSeed,
		Entropy:         fmt.Sprintf("%x", r.Entropy),
		CrashedAt:       time.Now(),
	}

	m.mu.Lock()
	r.Phase = PhaseSettled
	m.results = append([]Result{res}, m.results...)
	if limit := m.cfg.ResultsHistory; limit > 0 && len(m.results) > limit {
		m.results = m.results[:limit]
	}
	cashOuts := append([]CashOutRecord(nil), r.CashOuts...)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.SaveRound(ctx, toArchived(res, r, c), toStoredCashOuts(r.ID, cashOuts)); err != nil {
		// the round settled on-chain; a failed archive write is not
		// worth replaying the round for
		log.Error().Err(err).Uint64("round_id", r.ID).Msg("archive failed")
	}
	return nil
}

func (m *Machine) install(r *Round) {
	m.mu.Lock()
	m.round = r
	m.live = 0
	m.latestTick = nil
	m.cashed = map[string]bool{}
	m.mu.Unlock()
}

func (m *Machine) transition(r *Round, phase Phase) {
	m.mu.Lock()
	r.Phase = phase
	ev := PhaseEvent{RoundID: r.ID, Phase: phase}
	if phase == PhaseBettingOpen {
		ev.BettingCloseAt = r.BettingCloseAt
	}
	if phase == PhaseRevealed {
		ev.Seed = r.SecretSeed
		ev.TxHash = r.RevealTx
	}
	m.mu.Unlock()
	m.hub.PhaseChanged(ev)
	log.Info().Uint64("round_id", r.ID).Str("phase", string(phase)).Msg("phase")
}

// FairnessInfo is the public commit-reveal view of the active round:
// the commitment is visible from creation, the seed only once the
// round has been revealed on-chain.
type FairnessInfo struct {
	RoundID        uint64 `json:"round_id"`
	Commitment     string `json:"commitment"`
	Phase          Phase  `json:"phase"`
	SequenceNumber uint64 `json:"sequence_number"`
	Seed           string `json:"seed,omitempty"`
}

func (m *Machine) Fairness() FairnessInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil {
		return FairnessInfo{}
	}
	info := FairnessInfo{
		RoundID:        m.round.ID,
		Commitment:     m.round.Commitment,
		Phase:          m.round.Phase,
		SequenceNumber: m.round.SequenceNumber,
	}
	if m.round.Phase == PhaseRevealed || m.round.Phase == PhaseSettled {
		info.Seed = m.round.SecretSeed
	}
	return info
}

// Snapshot is the late-join resync view.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Results: append([]Result(nil), m.results...)}
	if m.round != nil {
		s.RoundID = m.round.ID
		s.Phase = m.round.Phase
		s.BettingCloseAt = m.round.BettingCloseAt
		s.LiveMultiplier = m.live
		s.LatestTick = m.latestTick
	}
	return s
}

func toArchived(res Result, r *Round, c *fair.Curve) store.ArchivedRound {
	return store.ArchivedRound{
		RoundID:         res.RoundID,
		Commitment:      res.Commitment,
		Seed:            res.Seed,
		SequenceNumber:  r.SequenceNumber,
		Entropy:         res.Entropy,
		FinalMultiplier: res.FinalMultiplier,
		TickIntervalMS:  r.TickIntervalMS,
		TotalTicks:      len(c.Ticks),
		StartedAt:       r.StartedAt,
		SettledAt:       res.CrashedAt,
	}
}

func toStoredCashOuts(roundID uint64, recs []CashOutRecord) []store.CashOut {
	out := make([]store.CashOut, 0, len(recs))
	for _, rec := range recs {
		out = append(out, store.CashOut{
			RoundID:    roundID,
			Wallet:     rec.Wallet,
			Multiplier: rec.Multiplier,
			At:         rec.At,
		})
	}
	return out
}

func withRetry(ctx context.Context, attempts int, fn func() (string, error)) (string, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var v string
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, chain.ErrCommitmentMismatch) || ctx.Err() != nil {
			return "", err
		}
		if !sleepCtx(ctx, time.Duration(i+1)*500*time.Millisecond) {
			return "", err
		}
	}
	return "", err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
