package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/dropfour/connect_four/arena"
	"github.com/dropfour/connect_four/storage"
	"github.com/dropfour/connect_four/websocket"
)

// LeaderboardSource is the read side of the persisted games table.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]storage.LeaderboardRow, error)
}

func StartAPI(port int, a *arena.Arena, leaderboard LeaderboardSource) {
	r := mux.NewRouter()

	ws := websocket.NewHandler(a)
	r.HandleFunc("/ws", ws.Serve)
	r.HandleFunc("/leaderboard", leaderboardHandler(leaderboard)).Methods("GET")
	r.HandleFunc("/healthz", healthzHandler(a)).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Server listening")
	if err := http.ListenAndServe(addr, cors(r)); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// leaderboardHandler always answers with a JSON array; a failing query is
// logged and reported as empty rather than breaking the page.
func leaderboardHandler(source LeaderboardSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := source.Leaderboard(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Leaderboard query failed")
			rows = nil
		}
		if rows == nil {
			rows = []storage.LeaderboardRow{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

func healthzHandler(a *arena.Arena) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"activeMatches": a.ActiveMatches(),
		})
	}
}
