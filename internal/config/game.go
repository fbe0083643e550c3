package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// GameConfig carries the round timing and economic constants. Defaults
// match the deployed contracts; a verifier that replays rounds must use
// the same tick interval the server ran with.
type GameConfig struct {
	BettingWindowMS  int `env:"BETTING_WINDOW_MS" envDefault:"20000"`
	PreparedDelayMS  int `env:"PREPARED_DELAY_MS" envDefault:"5000"`
	TickIntervalMS   int `env:"TICK_INTERVAL_MS" envDefault:"100"`
	EntropyPollMS    int `env:"ENTROPY_POLL_MS" envDefault:"2000"`
	EntropyMaxWaitMS int `env:"ENTROPY_MAX_WAIT_MS" envDefault:"60000"`
	RoundRetryMS     int `env:"ROUND_RETRY_MS" envDefault:"5000"`
	AdvanceDelayMS   int `env:"ADVANCE_DELAY_MS" envDefault:"3000"`

	MaxBet          int64 `env:"MAX_BET" envDefault:"1000"`
	WinCapBps       int64 `env:"WIN_CAP_BPS" envDefault:"7000"`
	SettleBatchSize int   `env:"SETTLE_BATCH_SIZE" envDefault:"15"`

	ChatHistory    int `env:"CHAT_HISTORY" envDefault:"50"`
	ResultsHistory int `env:"RESULTS_HISTORY" envDefault:"20"`
	MaxChatLen     int `env:"MAX_CHAT_LEN" envDefault:"280"`
}

func (c GameConfig) BettingWindow() time.Duration {
	return time.Duration(c.BettingWindowMS) * time.Millisecond
}

func (c GameConfig) PreparedDelay() time.Duration {
	return time.Duration(c.PreparedDelayMS) * time.Millisecond
}

func (c GameConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

func (c GameConfig) EntropyPoll() time.Duration {
	return time.Duration(c.EntropyPollMS) * time.Millisecond
}

func (c GameConfig) EntropyMaxWait() time.Duration {
	return time.Duration(c.EntropyMaxWaitMS) * time.Millisecond
}

func (c GameConfig) RoundRetry() time.Duration {
	return time.Duration(c.RoundRetryMS) * time.Millisecond
}

func (c GameConfig) AdvanceDelay() time.Duration {
	return time.Duration(c.AdvanceDelayMS) * time.Millisecond
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}
