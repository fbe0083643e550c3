package ws

import (
	"crash-casino/internal/fair"
	"crash-casino/internal/game"
)

// Server to client. Every message carries a type discriminator; kinds
// are status, update, state_snapshot, chat_message, cash_out_response.

type StatusMessage struct {
	Type             string `json:"type"`
	RoundID          uint64 `json:"round_id"`
	Status           string `json:"status"`
	BettingCloseTime int64  `json:"betting_close_time,omitempty"`
	Seed             string `json:"seed,omitempty"`
	TxHash           string `json:"tx_hash,omitempty"`
}

// UpdateMessage streams one tick. Value is floor(multiplier x 100000);
// TimestampMS is stamped at send time, never precomputed, so the wire
// carries no hint of the remaining curve.
type UpdateMessage struct {
	Type        string      `json:"type"`
	RoundID     uint64      `json:"round_id"`
	Value       int64       `json:"value"`
	Candle      fair.Candle `json:"candle"`
	TimestampMS int64       `json:"timestamp_ms"`
}

type StateSnapshot struct {
	Type             string        `json:"type"`
	RoundID          uint64        `json:"round_id"`
	Phase            string        `json:"phase"`
	Value            int64         `json:"value"`
	BettingCloseTime int64         `json:"betting_close_time,omitempty"`
	LatestTick       *fair.Tick    `json:"latest_tick,omitempty"`
	Chat             []ChatMessage `json:"chat"`
	Results          []game.Result `json:"results"`
}

type ChatMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Wallet      string `json:"wallet"`
	Text        string `json:"text"`
	TimestampMS int64  `json:"timestamp_ms,omitempty"`
}

type CashOutResponse struct {
	Type           string  `json:"type"`
	Ok             bool    `json:"ok"`
	Error          string  `json:"error,omitempty"`
	RoundID        uint64  `json:"round_id"`
	Wallet         string  `json:"wallet,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty"`
	PayoutEstimate int64   `json:"payout_estimate,omitempty"`
}

// Client to server.

type CashOutMessage struct {
	Type       string  `json:"type"`
	RoundID    uint64  `json:"round_id"`
	Wallet     string  `json:"wallet"`
	Multiplier float64 `json:"multiplier"`
}
