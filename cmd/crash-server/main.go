package main

import (
	"context"
	"net/http"
	"sort"
	"time"

	"crash-casino/internal/chain"
	"crash-casino/internal/config"
	"crash-casino/internal/game"
	"crash-casino/internal/logging"
	"crash-casino/internal/store"
	"crash-casino/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	var client chain.Client
	var sim *chain.Simulator
	switch cfg.Chain.Mode {
	case "sim":
		sim = chain.NewSimulator(cfg.Chain.ChainID, cfg.Chain.SimEntropyDelay(), cfg.Chain.SimPoolBalance)
		client = sim
		log.Warn().Msg("chain simulator active, rounds settle in memory")
	default:
		client = chain.NewRelayer(cfg.Chain)
	}

	machine := game.NewMachine(client, st, cfg.Game)
	hub := ws.NewServer(machine, cfg.Game)
	machine.AttachBroadcaster(hub)
	go machine.Run(context.Background())

	r := newRouter(st, machine, hub, cfg, sim)
	logRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

func newRouter(st *store.Store, machine *game.Machine, hub *ws.Server, cfg config.AppConfig, sim *chain.Simulator) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler(st))
	r.Get("/ws", hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Use(bodyCaptureMiddleware())
		r.Get("/public/state", publicStateHandler(machine))
		r.Get("/public/fairness", publicFairnessHandler(machine))
		r.Get("/public/rounds", publicRoundsHandler(st))
		r.Get("/public/rounds/{round_id}", publicRoundHandler(st))
		r.Get("/public/rounds/{round_id}/verify", publicVerifyHandler(st, cfg.Chain.ChainID))

		if sim != nil {
			r.Post("/dev/bets", devPlaceBetHandler(sim, cfg.Game.MaxBet))
			r.Get("/dev/claimable", devClaimableHandler(sim))
		}
	})
	return r
}

func logRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	for _, rt := range routes {
		log.Info().Str("method", rt.Method).Str("route", rt.Path).Msg("route")
	}
}
