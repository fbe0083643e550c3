package fair

import "math/big"

// VerifyCrashMultiplier recomputes a round's committed crash point
// without generating the full tick path. Anyone holding the revealed
// seed and the on-chain entropy gets the same answer.
func VerifyCrashMultiplier(entropy *big.Int, roundID uint64, secretSeed string, chainID uint64) float64 {
	seed := DeriveSeed(entropy, roundID, secretSeed, chainID)
	final, _ := crashMultiplier(GetRandom(seed, 0))
	return final
}

// VerifyRound replays the full curve for side-by-side comparison with
// what the server streamed.
func VerifyRound(p Params) Curve {
	return Generate(p)
}
