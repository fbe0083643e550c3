package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"crash-casino/internal/chain"
	"crash-casino/internal/fair"
	"crash-casino/internal/testutil"
)

type batchingClient struct {
	*chain.Simulator
	mu      sync.Mutex
	batches [][]chain.CashOutEntry
	failAt  int // 1-based call index to start failing at, 0 = never
}

func (c *batchingClient) ProcessCashOuts(_ context.Context, _ uint64, entries []chain.CashOutEntry) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, entries)
	if c.failAt != 0 && len(c.batches) >= c.failAt {
		return "", errors.New("rpc unavailable")
	}
	return "0xbatch", nil
}

func roundWithCashOuts(n int) *Round {
	r := &Round{ID: 1, Phase: PhaseRevealed}
	for i := 0; i < n; i++ {
		r.CashOuts = append(r.CashOuts, CashOutRecord{
			Wallet:     fmt.Sprintf("0x%04d", i),
			Multiplier: 1.5,
			Verified:   true,
		})
	}
	return r
}

func TestSettleBatchSizes(t *testing.T) {
	client := &batchingClient{Simulator: chain.NewSimulator(1, 0, 0)}
	m := NewMachine(client, nil, fastCfg())
	r := roundWithCashOuts(40)
	m.install(r)

	if err := m.settleCashOuts(context.Background(), r); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(client.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(client.batches))
	}
	for i, want := range []int{15, 15, 10} {
		if len(client.batches[i]) != want {
			t.Fatalf("batch %d size = %d, want %d", i, len(client.batches[i]), want)
		}
	}
	// ordering preserved across the batch boundary
	if client.batches[1][0].Wallet != "0x0015" {
		t.Fatalf("second batch starts at %s", client.batches[1][0].Wallet)
	}
	if client.batches[0][0].Multiplier != 150 {
		t.Fatalf("multiplier = %d, want fixed-point 150", client.batches[0][0].Multiplier)
	}
}

func TestSettleNoCashOuts(t *testing.T) {
	client := &batchingClient{Simulator: chain.NewSimulator(1, 0, 0)}
	m := NewMachine(client, nil, fastCfg())
	r := roundWithCashOuts(0)
	m.install(r)

	if err := m.settleCashOuts(context.Background(), r); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(client.batches) != 0 {
		t.Fatalf("batches = %d, want 0", len(client.batches))
	}
}

func TestSettleBatchFailureAborts(t *testing.T) {
	client := &batchingClient{Simulator: chain.NewSimulator(1, 0, 0), failAt: 2}
	m := NewMachine(client, nil, fastCfg())
	r := roundWithCashOuts(40)
	m.install(r)

	err := m.settleCashOuts(context.Background(), r)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "cash-out batch 2/3") {
		t.Fatalf("err = %v", err)
	}
	// the third batch never went out
	for _, batch := range client.batches {
		if batch[0].Wallet == "0x0030" {
			t.Fatal("third batch submitted after failure")
		}
	}
}

// End to end through the simulator's contract economics.
func TestSettlePaysClaimable(t *testing.T) {
	sim := chain.NewSimulator(1, 0, 1_000_000)
	m := NewMachine(sim, nil, fastCfg())

	id, err := sim.CreateRound(context.Background(), "c0ffee")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sim.PlaceBet(id, "0xaa", 100)
	r := &Round{ID: id, Phase: PhaseRevealed}
	r.CashOuts = []CashOutRecord{{Wallet: "0xaa", Multiplier: 2.5, Verified: true}}
	m.install(r)

	if err := m.settleCashOuts(context.Background(), r); err != nil {
		t.Fatalf("settle: %v", err)
	}
	// 100 x 2.50 less the 1.5% house edge
	if got := sim.Claimable("0xaa"); got != 246 {
		t.Fatalf("claimable = %d, want 246", got)
	}
}

// A failed batch must not lose the round: the archive runs first, so
// the results ring already carries the round when settlement aborts.
func TestFinishRoundArchivesBeforeBatchFailure(t *testing.T) {
	client := &batchingClient{Simulator: chain.NewSimulator(1, 0, 0), failAt: 1}
	m := NewMachine(client, nil, fastCfg())
	r := roundWithCashOuts(3)
	r.Entropy = big.NewInt(7)
	m.install(r)
	c := &fair.Curve{FinalMultiplier: 2.5}

	err := m.finishRound(context.Background(), r, c)
	if err == nil || !strings.Contains(err.Error(), "cash-out batch") {
		t.Fatalf("err = %v, want batch failure", err)
	}
	snap := m.Snapshot()
	if len(snap.Results) != 1 || snap.Results[0].RoundID != r.ID {
		t.Fatalf("results = %+v, want round %d archived", snap.Results, r.ID)
	}
}

func TestFinishRoundPersistsRecordsOnBatchFailure(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	client := &batchingClient{Simulator: chain.NewSimulator(1, 0, 0), failAt: 1}
	m := NewMachine(client, st, fastCfg())
	r := roundWithCashOuts(2)
	r.ID = 7
	r.Entropy = big.NewInt(7)
	r.Commitment = "c0ffee"
	r.SecretSeed = "5eed"
	r.StartedAt = time.Now()
	m.install(r)
	c := &fair.Curve{FinalMultiplier: 2.5}

	if err := m.finishRound(ctx, r, c); err == nil {
		t.Fatal("want batch failure")
	}
	got, err := st.GetRound(ctx, 7)
	if err != nil {
		t.Fatalf("round not archived: %v", err)
	}
	if got.FinalMultiplier != 2.5 {
		t.Fatalf("final = %v, want 2.5", got.FinalMultiplier)
	}
	outs, err := st.ListCashOuts(ctx, 7)
	if err != nil {
		t.Fatalf("list cash-outs: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("cash-outs = %d, want 2", len(outs))
	}
}
