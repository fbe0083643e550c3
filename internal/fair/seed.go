package fair

import (
	"crypto/sha256"
	"math/big"
)

// maxRandom is the denominator mapping hash digests onto [0, 1). The
// deployed contracts divide by 2^256 — one byte larger than the true
// 256-bit maximum — and independent verifiers reproduce that exact
// constant, so it stays as is.
var (
	maxRandom      = new(big.Int).Lsh(big.NewInt(1), 256)
	maxRandomFloat = bigToFloat(maxRandom)
)

// DeriveSeed folds the on-chain entropy, round id, server secret and
// chain id into the single 256-bit seed every per-round draw hangs off.
// The secret contributes its raw UTF-8 bytes, unpadded.
func DeriveSeed(entropy *big.Int, roundID uint64, secretSeed string, chainID uint64) *big.Int {
	h := sha256.New()
	h.Write(pad32(entropy))
	h.Write(pad32(new(big.Int).SetUint64(roundID)))
	h.Write([]byte(secretSeed))
	h.Write(pad32(new(big.Int).SetUint64(chainID)))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// GetRandom derives the index-th uniform draw from a seed. Both the
// digest and maxRandom pass through float64 before the division; the
// precision loss above 53 bits is part of the cross-implementation
// contract, not something to fix with big.Rat.
func GetRandom(seed *big.Int, index uint64) float64 {
	h := sha256.New()
	h.Write(pad32(seed))
	h.Write(pad32(new(big.Int).SetUint64(index)))
	n := new(big.Int).SetBytes(h.Sum(nil))
	return bigToFloat(n) / maxRandomFloat
}

func pad32(n *big.Int) []byte {
	return n.FillBytes(make([]byte, 32))
}

func bigToFloat(n *big.Int) float64 {
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}
