package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crash-casino/internal/config"
	"crash-casino/internal/fair"
	"crash-casino/internal/game"
	"crash-casino/internal/store"
)

const cashOutTimeout = 5 * time.Second

// Coordinator is the hub's view of the round machine.
type Coordinator interface {
	Snapshot() game.Snapshot
	RequestCashOut(ctx context.Context, roundID uint64, wallet string, multiplier float64) (game.CashOutResult, error)
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans round events out to every connected subscriber and
// accepts cash-out and chat messages back. A new connection gets one
// state snapshot before anything else, so late joiners resync without
// replaying history.
type Server struct {
	coord      Coordinator
	upgrader   websocket.Upgrader
	chatCap    int
	maxChatLen int

	mu          sync.Mutex
	subscribers map[*Client]bool
	chat        []ChatMessage
}

func NewServer(coord Coordinator, cfg config.GameConfig) *Server {
	return &Server{
		coord:       coord,
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		chatCap:     cfg.ChatHistory,
		maxChatLen:  cfg.MaxChatLen,
		subscribers: map[*Client]bool{},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 64)}

	go s.writeLoop(client)

	// snapshot first, then register: no broadcast may precede it
	s.mu.Lock()
	snap, _ := json.Marshal(s.snapshotLocked())
	safeSend(client.send, snap)
	s.subscribers[client] = true
	s.mu.Unlock()

	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "cash_out":
			var req CashOutMessage
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			s.handleCashOut(c, req)
		case "chat_message":
			var chat ChatMessage
			if err := json.Unmarshal(msg, &chat); err != nil {
				continue
			}
			s.handleChat(chat)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.subscribers, c)
	s.mu.Unlock()
	safeClose(c.send)
}

// handleCashOut answers the requesting client directly; the broadcast
// acknowledgment for accepted cash-outs comes back through the
// machine's CashOutAccepted call.
func (s *Server) handleCashOut(c *Client, req CashOutMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), cashOutTimeout)
	defer cancel()

	resp := CashOutResponse{Type: "cash_out_response", RoundID: req.RoundID, Wallet: req.Wallet}
	res, err := s.coord.RequestCashOut(ctx, req.RoundID, req.Wallet, req.Multiplier)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Ok = true
		resp.Multiplier = res.Record.Multiplier
		resp.PayoutEstimate = res.PayoutEstimate
	}
	msg, _ := json.Marshal(resp)
	safeSend(c.send, msg)
}

func (s *Server) handleChat(chat ChatMessage) {
	if chat.Wallet == "" || chat.Text == "" {
		return
	}
	if utf8.RuneCountInString(chat.Text) > s.maxChatLen {
		// truncate on a rune boundary: a byte slice can split a
		// multi-byte character and produce an invalid text frame
		chat.Text = string([]rune(chat.Text)[:s.maxChatLen])
	}
	chat.Type = "chat_message"
	chat.ID = store.NewID()
	chat.TimestampMS = time.Now().UnixMilli()

	s.mu.Lock()
	s.chat = append(s.chat, chat)
	if s.chatCap > 0 && len(s.chat) > s.chatCap {
		s.chat = s.chat[len(s.chat)-s.chatCap:]
	}
	msg, _ := json.Marshal(chat)
	s.broadcastLocked(msg)
	s.mu.Unlock()
}

func (s *Server) snapshotLocked() StateSnapshot {
	snap := s.coord.Snapshot()
	msg := StateSnapshot{
		Type:       "state_snapshot",
		RoundID:    snap.RoundID,
		Phase:      string(snap.Phase),
		Value:      fair.EncodeMultiplier(snap.LiveMultiplier),
		LatestTick: snap.LatestTick,
		Chat:       append([]ChatMessage{}, s.chat...),
		Results:    snap.Results,
	}
	if msg.Results == nil {
		msg.Results = []game.Result{}
	}
	if !snap.BettingCloseAt.IsZero() {
		msg.BettingCloseTime = snap.BettingCloseAt.UnixMilli()
	}
	return msg
}

// PhaseChanged implements game.Broadcaster.
func (s *Server) PhaseChanged(ev game.PhaseEvent) {
	msg := StatusMessage{
		Type:    "status",
		RoundID: ev.RoundID,
		Status:  string(ev.Phase),
		Seed:    ev.Seed,
		TxHash:  ev.TxHash,
	}
	if !ev.BettingCloseAt.IsZero() {
		msg.BettingCloseTime = ev.BettingCloseAt.UnixMilli()
	}
	s.broadcast(mustMarshal(msg))
}

// TickGenerated implements game.Broadcaster. The timestamp is assigned
// here, at send time.
func (s *Server) TickGenerated(roundID uint64, tick fair.Tick) {
	s.broadcast(mustMarshal(UpdateMessage{
		Type:        "update",
		RoundID:     roundID,
		Value:       tick.Value,
		Candle:      tick.Candle,
		TimestampMS: time.Now().UnixMilli(),
	}))
}

// CashOutAccepted implements game.Broadcaster.
func (s *Server) CashOutAccepted(roundID uint64, rec game.CashOutRecord, payoutEstimate int64) {
	s.broadcast(mustMarshal(CashOutResponse{
		Type:           "cash_out_response",
		Ok:             true,
		RoundID:        roundID,
		Wallet:         rec.Wallet,
		Multiplier:     rec.Multiplier,
		PayoutEstimate: payoutEstimate,
	}))
}

func (s *Server) broadcast(msg []byte) {
	s.mu.Lock()
	s.broadcastLocked(msg)
	s.mu.Unlock()
}

func (s *Server) broadcastLocked(msg []byte) {
	for c := range s.subscribers {
		safeSend(c.send, msg)
	}
}

func mustMarshal(v any) []byte {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal broadcast")
		return nil
	}
	return msg
}

func safeSend(ch chan []byte, msg []byte) {
	if msg == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
		// slow consumer: drop rather than stall the round loop
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}
