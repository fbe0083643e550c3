package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"crash-casino/internal/fair"
)

func TestSimulatorEntropyArrivesAfterDelay(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1, 30*time.Millisecond, 0)

	id, err := sim.CreateRound(ctx, fair.Commitment("seed"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sim.RequestRandomness(ctx, id); err != nil {
		t.Fatalf("request randomness: %v", err)
	}

	info, err := sim.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if info.Entropy != nil && info.Entropy.Sign() != 0 {
		t.Fatal("entropy visible before delay elapsed")
	}

	time.Sleep(50 * time.Millisecond)
	info, err = sim.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if info.Entropy == nil || info.Entropy.Sign() == 0 {
		t.Fatal("entropy still missing after delay")
	}
	if info.Status != StatusRandomReady {
		t.Fatalf("status = %d, want RandomReady", info.Status)
	}
}

func TestSimulatorRevealChecksCommitment(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1, 0, 0)

	seed, err := fair.NewServerSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	id, _ := sim.CreateRound(ctx, fair.Commitment(seed))

	if _, err := sim.RevealServerSeed(ctx, id, "not-the-seed"); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("wrong seed: err = %v, want ErrCommitmentMismatch", err)
	}
	if _, err := sim.SettleRound(ctx, id, 100, seed); !errors.Is(err, ErrNotRevealed) {
		t.Fatalf("settle before reveal: err = %v, want ErrNotRevealed", err)
	}
	if _, err := sim.RevealServerSeed(ctx, id, seed); err != nil {
		t.Fatalf("valid reveal rejected: %v", err)
	}
	if _, err := sim.SettleRound(ctx, id, 100, seed); err != nil {
		t.Fatalf("settle after reveal: %v", err)
	}
	info, _ := sim.GetRound(ctx, id)
	if info.Status != StatusSettled || info.FinalMultiplier != 100 {
		t.Fatalf("round not settled: %+v", info)
	}
}

func TestSimulatorProcessCashOuts(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1, 0, 10000)
	id, _ := sim.CreateRound(ctx, fair.Commitment("x"))
	sim.PlaceBet(id, "0xaaa", 100)
	sim.PlaceBet(id, "0xbbb", 200)

	// 2.50x on 100 units: 250 gross, 246 after the 1.5% edge
	if _, err := sim.ProcessCashOuts(ctx, id, []CashOutEntry{
		{Wallet: "0xaaa", Multiplier: 250},
		{Wallet: "0xbbb", Multiplier: 150},
	}); err != nil {
		t.Fatalf("process cashouts: %v", err)
	}
	if got := sim.Claimable("0xaaa"); got != 246 {
		t.Fatalf("claimable(0xaaa) = %d, want 246", got)
	}
	if got := sim.Claimable("0xbbb"); got != 295 {
		t.Fatalf("claimable(0xbbb) = %d, want 295", got)
	}

	// double settlement is a no-op
	if _, err := sim.ProcessCashOuts(ctx, id, []CashOutEntry{{Wallet: "0xaaa", Multiplier: 250}}); err != nil {
		t.Fatalf("repeat cashout: %v", err)
	}
	if got := sim.Claimable("0xaaa"); got != 246 {
		t.Fatalf("claimable after repeat = %d, want 246", got)
	}
}

func TestSimulatorCashOutCappedByPool(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1, 0, 0)
	id, _ := sim.CreateRound(ctx, fair.Commitment("x"))
	sim.PlaceBet(id, "0xwhale", 1000) // pool is now 1000

	// 100x on 1000 units would be 98500, capped at 70% of the pool
	if _, err := sim.ProcessCashOuts(ctx, id, []CashOutEntry{{Wallet: "0xwhale", Multiplier: 10000}}); err != nil {
		t.Fatalf("process cashouts: %v", err)
	}
	if got := sim.Claimable("0xwhale"); got != 700 {
		t.Fatalf("claimable = %d, want 700", got)
	}
}

func TestSimulatorGetBet(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(1, 0, 0)
	id, _ := sim.CreateRound(ctx, fair.Commitment("x"))

	if _, err := sim.GetBet(ctx, id, "0xnobody"); !errors.Is(err, ErrNoBet) {
		t.Fatalf("err = %v, want ErrNoBet", err)
	}
	sim.PlaceBet(id, "0xaaa", 500)
	bet, err := sim.GetBet(ctx, id, "0xaaa")
	if err != nil {
		t.Fatalf("get bet: %v", err)
	}
	if bet.Amount != 500 || bet.Settled {
		t.Fatalf("bet = %+v", bet)
	}
}
