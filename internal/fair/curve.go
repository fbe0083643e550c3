package fair

import (
	"math"
	"math/big"
)

const (
	HouseEdge     = 0.015
	MinMultiplier = 1.0
	MaxMultiplier = 10000.0

	minDurationMs    = 3000
	durationSpreadMs = 27000

	defaultTickIntervalMs = 100

	// draw indices 0-5 cover the per-round parameters; per-tick draws
	// live at i+10 (direction) and i+20 (reserved)
	tickDirOffset      = 10
	tickReservedOffset = 20
)

// Candle is one OHLC step of the price path.
type Candle struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Tick is one generated step. Value is the wire encoding of Close,
// floor(close * 100000).
type Tick struct {
	Index   int    `json:"index"`
	Candle  Candle `json:"candle"`
	Value   int64  `json:"value"`
	AtMS    int64  `json:"at_ms"`
	Crashed bool   `json:"crashed"`
}

// Params are the full inputs of a round's curve. Two calls to Generate
// with equal Params produce identical output.
type Params struct {
	RoundID        uint64
	Entropy        *big.Int
	SecretSeed     string
	ChainID        uint64
	StartTS        int64
	TickIntervalMS int64
}

// Curve is the finished deterministic price path of one round.
type Curve struct {
	Seed            *big.Int
	FinalMultiplier float64
	RawMultiplier   float64
	DurationMS      int64
	TotalTicks      int
	MinPrice        float64
	TrendStrength   float64
	VolatilityBase  float64
	VolatilityDecay float64
	Ticks           []Tick
}

// crashMultiplier maps the first draw onto the rounded crash point.
// r0 = 0 yields exactly 1.00: the instant crash is reachable.
func crashMultiplier(r0 float64) (final, raw float64) {
	p := HouseEdge + r0*(1-HouseEdge)
	raw = (1 - HouseEdge) / (1 - p)
	final = round2(clamp(raw, MinMultiplier, MaxMultiplier))
	return final, raw
}

// Generate derives the whole round from its inputs. It is pure: no
// clock, no randomness beyond the seed, byte-identical on replay.
func Generate(p Params) Curve {
	seed := DeriveSeed(p.Entropy, p.RoundID, p.SecretSeed, p.ChainID)

	final, raw := crashMultiplier(GetRandom(seed, 0))

	durationMS := int64(minDurationMs) + int64(math.Floor(GetRandom(seed, 1)*durationSpreadMs))
	interval := p.TickIntervalMS
	if interval <= 0 {
		interval = defaultTickIntervalMs
	}
	totalTicks := int(math.Ceil(float64(durationMS) / float64(interval)))

	c := Curve{
		Seed:            seed,
		FinalMultiplier: final,
		RawMultiplier:   raw,
		DurationMS:      durationMS,
		TotalTicks:      totalTicks,
		MinPrice:        0.40 + GetRandom(seed, 2)*0.30,
		TrendStrength:   0.15 + GetRandom(seed, 3)*0.30,
		VolatilityBase:  0.015 + GetRandom(seed, 4)*0.020,
		VolatilityDecay: 0.5 + GetRandom(seed, 5)*0.4,
	}

	price := 1.00
	prevClose := 1.00
	for i := 0; i < totalTicks; i++ {
		progress := float64(i) / float64(totalTicks)
		target := 1 + (final-1)*math.Pow(progress, 0.8)
		volatility := c.VolatilityBase * math.Pow(1-progress, c.VolatilityDecay)

		ra := GetRandom(seed, uint64(i)+tickDirOffset)
		// reserved draw: the value is unused but the call keeps the
		// index sequence compatible with existing verifiers
		_ = GetRandom(seed, uint64(i)+tickReservedOffset)

		directionBias := (target - price) * c.TrendStrength
		randomMove := (ra - 0.5) * 2
		price = clamp(price*(1+directionBias+randomMove*volatility), c.MinPrice, final)

		// the crash check runs on the unrounded price
		crashed := price >= final || i == totalTicks-1
		close := round2(price)
		if crashed {
			close = final
		}
		c.Ticks = append(c.Ticks, Tick{
			Index: i,
			Candle: Candle{
				Open:  prevClose,
				High:  math.Max(prevClose, close),
				Low:   math.Min(prevClose, close),
				Close: close,
			},
			Value:   EncodeMultiplier(close),
			AtMS:    p.StartTS + int64(i)*interval,
			Crashed: crashed,
		})
		prevClose = close
		if crashed {
			break
		}
	}
	return c
}

// EncodeMultiplier is the integer wire encoding of a multiplier,
// floor(m * 100000).
func EncodeMultiplier(m float64) int64 {
	return int64(math.Floor(m * 100000))
}

// FixedPoint is the 2-decimal contract encoding of a multiplier.
func FixedPoint(m float64) int64 {
	return int64(math.Round(m * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
