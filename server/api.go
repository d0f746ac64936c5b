package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swarmnet/arbiter/logging"
)

// operatorMux serves the plain-JSON operator surface: status, the
// current trust vector, archived round summaries, metrics and the
// participant websocket endpoint.
func (s *Server) operatorMux(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/info", s.handleInfo)
	mux.HandleFunc("/v1/trust", s.handleTrust)
	mux.HandleFunc("/v1/rounds/", s.handleRound(ctx))
	mux.HandleFunc("/v1/connect", s.hub.Handler(ctx))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	round, phase := s.sched.Status()
	writeJSON(w, struct {
		Round        uint64 `json:"round"`
		Phase        string `json:"phase"`
		Participants int    `json:"participants"`
		PubKey       string `json:"pubkey"`
	}{
		Round:        round,
		Phase:        phase.String(),
		Participants: len(s.store.Snapshot().Entries),
		PubKey:       hex.EncodeToString(s.PublicKey()),
	})
}

func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Snapshot()
	entries := make([]struct {
		Participant string  `json:"participant"`
		Value       float64 `json:"value"`
	}, len(snapshot.Entries))
	for i, e := range snapshot.Entries {
		entries[i].Participant = e.Participant
		entries[i].Value = e.Value
	}
	writeJSON(w, struct {
		Round   uint64 `json:"round"`
		Entries any    `json:"entries"`
	}{Round: snapshot.Round, Entries: entries})
}

func (s *Server) handleRound(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.audits == nil {
			http.Error(w, "audit store disabled", http.StatusNotFound)
			return
		}
		round, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/v1/rounds/"), 10, 64)
		if err != nil {
			http.Error(w, "invalid round", http.StatusBadRequest)
			return
		}
		summary, err := s.audits.Round(r.Context(), round)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			http.Error(w, "round not archived", http.StatusNotFound)
			return
		case err != nil:
			logging.FromContext(ctx).Error("failed to load round summary", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, summary)
	}
}
