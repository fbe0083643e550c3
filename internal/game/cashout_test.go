package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crash-casino/internal/chain"
)

func runningMachine(sim chain.Client, live float64) *Machine {
	m := NewMachine(sim, nil, fastCfg())
	r := &Round{ID: 1, Phase: PhaseRunning}
	m.install(r)
	m.mu.Lock()
	r.Phase = PhaseRunning
	m.live = live
	m.mu.Unlock()
	return m
}

func TestCashOutAccepted(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	sim.PlaceBet(1, "0xaa", 100)
	m := runningMachine(sim, 2.5)
	hub := &recordingHub{}
	m.AttachBroadcaster(hub)

	res, err := m.RequestCashOut(context.Background(), 1, "0xaa", 2.5)
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if !res.Record.Verified || res.Record.Wallet != "0xaa" || res.Record.Multiplier != 2.5 {
		t.Fatalf("record = %+v", res.Record)
	}
	// floor(100 * 2.5 * 0.985)
	if res.PayoutEstimate != 246 {
		t.Fatalf("estimate = %d, want 246", res.PayoutEstimate)
	}

	m.mu.Lock()
	recorded := len(m.round.CashOuts)
	m.mu.Unlock()
	if recorded != 1 {
		t.Fatalf("recorded cash-outs = %d", recorded)
	}
	if len(hub.cashOuts) != 1 {
		t.Fatalf("broadcasts = %d", len(hub.cashOuts))
	}
}

func TestCashOutRejections(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	sim.PlaceBet(1, "0xaa", 100)
	ctx := context.Background()

	cases := []struct {
		name       string
		roundID    uint64
		wallet     string
		multiplier float64
		want       error
	}{
		{"below minimum", 1, "0xaa", 0.99, ErrMultiplierOutOfRange},
		{"above live", 1, "0xaa", 2.51, ErrMultiplierOutOfRange},
		{"wrong round", 2, "0xaa", 1.5, ErrRoundMismatch},
		{"no bet", 1, "0xbb", 1.5, ErrNoBet},
	}
	for _, tc := range cases {
		m := runningMachine(sim, 2.5)
		if _, err := m.RequestCashOut(ctx, tc.roundID, tc.wallet, tc.multiplier); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestCashOutRequiresRunningPhase(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	sim.PlaceBet(1, "0xaa", 100)
	m := NewMachine(sim, nil, fastCfg())
	r := &Round{ID: 1, Phase: PhasePrepared}
	m.install(r)

	if _, err := m.RequestCashOut(context.Background(), 1, "0xaa", 1.5); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("err = %v, want ErrRoundNotRunning", err)
	}
}

func TestCashOutDuplicateRejected(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	sim.PlaceBet(1, "0xaa", 100)
	m := runningMachine(sim, 3.0)
	ctx := context.Background()

	if _, err := m.RequestCashOut(ctx, 1, "0xaa", 1.5); err != nil {
		t.Fatalf("first cash out: %v", err)
	}
	if _, err := m.RequestCashOut(ctx, 1, "0xaa", 2.0); !errors.Is(err, ErrAlreadyCashedOut) {
		t.Fatalf("err = %v, want ErrAlreadyCashedOut", err)
	}
}

// Concurrent duplicates race for one reservation; exactly one may win.
func TestCashOutConcurrentDuplicates(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	sim.PlaceBet(1, "0xaa", 100)
	m := runningMachine(sim, 3.0)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.RequestCashOut(context.Background(), 1, "0xaa", 2.0)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrAlreadyCashedOut):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.round.CashOuts) != 1 {
		t.Fatalf("recorded = %d", len(m.round.CashOuts))
	}
}

// A rejected chain lookup must release the reservation so the wallet
// can try again once its bet lands.
func TestCashOutNoBetReleasesReservation(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	m := runningMachine(sim, 2.0)
	ctx := context.Background()

	if _, err := m.RequestCashOut(ctx, 1, "0xaa", 1.5); !errors.Is(err, ErrNoBet) {
		t.Fatalf("err = %v, want ErrNoBet", err)
	}
	sim.PlaceBet(1, "0xaa", 50)
	if _, err := m.RequestCashOut(ctx, 1, "0xaa", 1.5); err != nil {
		t.Fatalf("retry after bet: %v", err)
	}
}

func TestEstimatePayout(t *testing.T) {
	cases := []struct {
		amount     int64
		multiplier float64
		pool       int64
		want       int64
	}{
		{100, 2.5, 1_000_000, 246},   // floor(246.25)
		{200, 1.5, 1_000_000, 295},   // floor(295.5)
		{1000, 5.0, 1000, 700},       // capped at pool * 70%
		{100, 1.0, 1_000_000, 98},    // floor(98.5)
		{100, 10.0, 0, 985},          // no pool reading, uncapped
	}
	for _, tc := range cases {
		if got := EstimatePayout(tc.amount, tc.multiplier, tc.pool, 7000); got != tc.want {
			t.Fatalf("EstimatePayout(%d, %v, %d) = %d, want %d", tc.amount, tc.multiplier, tc.pool, got, tc.want)
		}
	}
}
