package main

import (
	"bytes"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// Dev bot for the sim-mode server: bets every round through the dev
// API and cashes out over the websocket at a random target multiplier.

type Status struct {
	Type    string `json:"type"`
	RoundID uint64 `json:"round_id"`
	Status  string `json:"status"`
}

type Update struct {
	Type    string `json:"type"`
	RoundID uint64 `json:"round_id"`
	Value   int64  `json:"value"`
}

type CashOut struct {
	Type       string  `json:"type"`
	RoundID    uint64  `json:"round_id"`
	Wallet     string  `json:"wallet"`
	Multiplier float64 `json:"multiplier"`
}

func main() {
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")
	apiURL := getenv("API_URL", "http://localhost:8080")
	wallet := getenv("WALLET", "0xbot")
	amount, _ := strconv.ParseInt(getenv("BET_AMOUNT", "100"), 10, 64)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var betRound uint64
	var target float64

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case "status":
			var st Status
			if err := json.Unmarshal(data, &st); err != nil {
				continue
			}
			if st.Status != "betting_open" {
				continue
			}
			if err := placeBet(apiURL, st.RoundID, wallet, amount); err != nil {
				log.Printf("bet failed: %v", err)
				continue
			}
			betRound = st.RoundID
			// mostly modest targets, occasionally greedy
			target = 1.1 + rnd.Float64()*rnd.Float64()*4
			log.Printf("round %d: bet %d, target %.2fx", st.RoundID, amount, target)
		case "update":
			var upd Update
			if err := json.Unmarshal(data, &upd); err != nil {
				continue
			}
			if upd.RoundID != betRound || betRound == 0 {
				continue
			}
			live := float64(upd.Value) / 100000
			if live < target {
				continue
			}
			payload, _ := json.Marshal(CashOut{Type: "cash_out", RoundID: upd.RoundID, Wallet: wallet, Multiplier: target})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			log.Printf("round %d: cashing out at %.2fx", upd.RoundID, target)
			betRound = 0
		}
	}
}

func placeBet(apiURL string, roundID uint64, wallet string, amount int64) error {
	body, _ := json.Marshal(map[string]any{
		"round_id": roundID,
		"wallet":   wallet,
		"amount":   amount,
	})
	resp, err := http.Post(apiURL+"/api/dev/bets", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		log.Printf("bet rejected: %s", e.Error)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
