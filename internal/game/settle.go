package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"crash-casino/internal/chain"
	"crash-casino/internal/fair"
)

// settleCashOuts submits the round's recorded cash-outs in fixed-size
// batches, strictly sequentially: each transaction confirms before the
// next goes out, preserving ordering and keeping retry bookkeeping
// simple. A failed batch aborts settlement for the round; the records
// are already archived and can be replayed by hand.
func (m *Machine) settleCashOuts(ctx context.Context, r *Round) error {
	m.mu.Lock()
	records := append([]CashOutRecord(nil), r.CashOuts...)
	m.mu.Unlock()
	if len(records) == 0 {
		return nil
	}

	size := m.cfg.SettleBatchSize
	if size <= 0 {
		size = 15
	}
	batches := (len(records) + size - 1) / size
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		entries := make([]chain.CashOutEntry, 0, end-start)
		for _, rec := range records[start:end] {
			entries = append(entries, chain.CashOutEntry{
				Wallet:     rec.Wallet,
				Multiplier: fair.FixedPoint(rec.Multiplier),
			})
		}
		txHash, err := withRetry(ctx, chainWriteAttempts, func() (string, error) {
			return m.chain.ProcessCashOuts(ctx, r.ID, entries)
		})
		if err != nil {
			return fmt.Errorf("cash-out batch %d/%d: %w", start/size+1, batches, err)
		}
		log.Info().
			Uint64("round_id", r.ID).
			Int("batch", start/size+1).
			Int("batches", batches).
			Int("entries", len(entries)).
			Str("tx", txHash).
			Msg("cash-out batch settled")
	}
	return nil
}
