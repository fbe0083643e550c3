package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"crash-casino/internal/config"
)

// Relayer talks JSON over HTTP to the contract relayer sidecar, which
// holds the operator key, pays the VRF fee and signs the actual
// transactions. Each call here maps 1:1 onto a contract function.
type Relayer struct {
	baseURL string
	chainID uint64
	client  *http.Client
}

func NewRelayer(cfg config.ChainConfig) *Relayer {
	return &Relayer{
		baseURL: strings.TrimRight(cfg.RelayerURL, "/"),
		chainID: cfg.ChainID,
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

func (r *Relayer) ChainID() uint64 { return r.chainID }

type relayerRound struct {
	RoundID         uint64 `json:"round_id"`
	Commitment      string `json:"commitment"`
	Seed            string `json:"seed"`
	SequenceNumber  uint64 `json:"sequence_number"`
	Entropy         string `json:"entropy"`
	FinalMultiplier int64  `json:"final_multiplier"`
	Status          uint8  `json:"status"`
}

type relayerTx struct {
	TxHash string `json:"tx_hash"`
}

func (r *Relayer) CreateRound(ctx context.Context, commitment string) (uint64, error) {
	var out struct {
		RoundID uint64 `json:"round_id"`
	}
	err := r.do(ctx, http.MethodPost, "/rounds", map[string]string{"commitment": commitment}, &out)
	if err != nil {
		return 0, fmt.Errorf("create round: %w", err)
	}
	return out.RoundID, nil
}

func (r *Relayer) RequestRandomness(ctx context.Context, roundID uint64) (uint64, error) {
	var out struct {
		SequenceNumber uint64 `json:"sequence_number"`
	}
	err := r.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/randomness", roundID), nil, &out)
	if err != nil {
		return 0, fmt.Errorf("request randomness: %w", err)
	}
	return out.SequenceNumber, nil
}

func (r *Relayer) GetRound(ctx context.Context, roundID uint64) (RoundInfo, error) {
	var out relayerRound
	if err := r.do(ctx, http.MethodGet, fmt.Sprintf("/rounds/%d", roundID), nil, &out); err != nil {
		return RoundInfo{}, fmt.Errorf("get round: %w", err)
	}
	entropy := new(big.Int)
	if out.Entropy != "" {
		if _, ok := entropy.SetString(strings.TrimPrefix(out.Entropy, "0x"), 16); !ok {
			return RoundInfo{}, fmt.Errorf("get round: bad entropy %q", out.Entropy)
		}
	}
	return RoundInfo{
		RoundID:         out.RoundID,
		Commitment:      out.Commitment,
		Seed:            out.Seed,
		SequenceNumber:  out.SequenceNumber,
		Entropy:         entropy,
		FinalMultiplier: out.FinalMultiplier,
		Status:          Status(out.Status),
	}, nil
}

func (r *Relayer) RevealServerSeed(ctx context.Context, roundID uint64, seed string) (string, error) {
	var out relayerTx
	err := r.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/reveal", roundID), map[string]string{"seed": seed}, &out)
	if err != nil {
		return "", fmt.Errorf("reveal seed: %w", err)
	}
	return out.TxHash, nil
}

func (r *Relayer) SettleRound(ctx context.Context, roundID uint64, finalMultiplier int64, seed string) (string, error) {
	body := map[string]any{"final_multiplier": finalMultiplier, "seed": seed}
	var out relayerTx
	err := r.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/settle", roundID), body, &out)
	if err != nil {
		return "", fmt.Errorf("settle round: %w", err)
	}
	return out.TxHash, nil
}

func (r *Relayer) ProcessCashOuts(ctx context.Context, roundID uint64, entries []CashOutEntry) (string, error) {
	body := map[string]any{"entries": entries}
	var out relayerTx
	err := r.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/cashouts", roundID), body, &out)
	if err != nil {
		return "", fmt.Errorf("process cashouts: %w", err)
	}
	return out.TxHash, nil
}

func (r *Relayer) GetBet(ctx context.Context, roundID uint64, wallet string) (Bet, error) {
	var out Bet
	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/rounds/%d/bets/%s", roundID, wallet), nil, &out)
	if err != nil {
		return Bet{}, err
	}
	if out.Amount == 0 {
		return Bet{}, ErrNoBet
	}
	out.Wallet = wallet
	return out, nil
}

func (r *Relayer) PoolBalance(ctx context.Context) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := r.do(ctx, http.MethodGet, "/pool", nil, &out); err != nil {
		return 0, fmt.Errorf("pool balance: %w", err)
	}
	return out.Balance, nil
}

func (r *Relayer) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "commitment_mismatch" {
			return ErrCommitmentMismatch
		}
		if apiErr.Error != "" {
			return fmt.Errorf("relayer %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("relayer %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
