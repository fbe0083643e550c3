package main

import (
	"encoding/json"
	"net/http"

	"crash-casino/internal/chain"
)

// Dev-only routes, mounted in sim mode. In relayer mode bets exist
// only on-chain and the server never accepts them.

func devPlaceBetHandler(sim *chain.Simulator, maxBet int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RoundID uint64 `json:"round_id"`
			Wallet  string `json:"wallet"`
			Amount  int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.Wallet == "" || req.RoundID == 0 {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if req.Amount <= 0 || req.Amount > maxBet {
			writeHTTPError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		sim.PlaceBet(req.RoundID, req.Wallet, req.Amount)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":       true,
			"round_id": req.RoundID,
			"wallet":   req.Wallet,
			"amount":   req.Amount,
		})
	}
}

func devClaimableHandler(sim *chain.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet := r.URL.Query().Get("wallet")
		if wallet == "" {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"wallet":    wallet,
			"claimable": sim.Claimable(wallet),
		})
	}
}
