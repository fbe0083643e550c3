package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ChainConfig selects how the server reaches the game contract. In
// relayer mode all calls go through a contract relayer sidecar; sim
// mode runs against the in-memory chain for local development.
type ChainConfig struct {
	Mode       string `env:"CHAIN_MODE" envDefault:"relayer"`
	RelayerURL string `env:"CHAIN_RELAYER_URL"`
	ChainID    uint64 `env:"CHAIN_ID" envDefault:"8453"`

	RequestTimeoutMS  int   `env:"CHAIN_REQUEST_TIMEOUT_MS" envDefault:"15000"`
	SimEntropyDelayMS int   `env:"CHAIN_SIM_ENTROPY_DELAY_MS" envDefault:"4000"`
	SimPoolBalance    int64 `env:"CHAIN_SIM_POOL_BALANCE" envDefault:"1000000"`
}

func (c ChainConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c ChainConfig) SimEntropyDelay() time.Duration {
	return time.Duration(c.SimEntropyDelayMS) * time.Millisecond
}

func LoadChain() (ChainConfig, error) {
	var cfg ChainConfig
	err := env.Parse(&cfg)
	return cfg, err
}
