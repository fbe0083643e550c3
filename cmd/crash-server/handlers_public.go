package main

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"crash-casino/internal/fair"
	"crash-casino/internal/game"
	"crash-casino/internal/store"

	"github.com/go-chi/chi/v5"
)

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func publicStateHandler(machine *game.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := machine.Snapshot()
		out := map[string]any{
			"round_id": snap.RoundID,
			"phase":    string(snap.Phase),
			"value":    fair.EncodeMultiplier(snap.LiveMultiplier),
			"results":  snap.Results,
		}
		if !snap.BettingCloseAt.IsZero() {
			out["betting_close_time"] = snap.BettingCloseAt.UnixMilli()
		}
		if snap.LatestTick != nil {
			out["latest_tick"] = snap.LatestTick
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func publicFairnessHandler(machine *game.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(machine.Fairness())
	}
}

func publicRoundsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeHTTPError(w, http.StatusBadRequest, "invalid_limit")
				return
			}
			limit = n
		}
		items, err := st.ListRecentRounds(r.Context(), limit)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}

func publicRoundHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "round_id"), 10, 64)
		if err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_round_id")
			return
		}
		round, err := st.GetRound(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeHTTPError(w, http.StatusNotFound, "round_not_found")
			return
		}
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		cashOuts, err := st.ListCashOuts(r.Context(), id)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"round":     round,
			"cash_outs": cashOuts,
		})
	}
}

// publicVerifyHandler replays an archived round from its revealed seed
// and on-chain entropy, so anyone can confirm the stored outcome was
// committed to before the entropy existed.
func publicVerifyHandler(st *store.Store, chainID uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "round_id"), 10, 64)
		if err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_round_id")
			return
		}
		round, err := st.GetRound(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeHTTPError(w, http.StatusNotFound, "round_not_found")
			return
		}
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		entropy, ok := new(big.Int).SetString(round.Entropy, 16)
		if !ok {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}

		curve := fair.VerifyRound(fair.Params{
			RoundID:        id,
			Entropy:        entropy,
			SecretSeed:     round.Seed,
			ChainID:        chainID,
			TickIntervalMS: round.TickIntervalMS,
		})
		commitmentOK := fair.Commitment(round.Seed) == round.Commitment
		outcomeOK := curve.FinalMultiplier == round.FinalMultiplier

		_ = json.NewEncoder(w).Encode(map[string]any{
			"round_id":                    id,
			"commitment":                  round.Commitment,
			"seed":                        round.Seed,
			"entropy":                     round.Entropy,
			"stored_final_multiplier":     round.FinalMultiplier,
			"recomputed_final_multiplier": curve.FinalMultiplier,
			"recomputed_total_ticks":      len(curve.Ticks),
			"commitment_valid":            commitmentOK,
			"outcome_valid":               outcomeOK,
			"valid":                       commitmentOK && outcomeOK,
		})
	}
}
