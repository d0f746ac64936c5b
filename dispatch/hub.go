package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/logging"
)

const (
	// MaxPlanBytes bounds a single inbound message. Anything larger is
	// dropped before parsing.
	MaxPlanBytes = 1 << 20

	writeTimeout = 5 * time.Second
	pongTimeout  = 90 * time.Second
)

var submissionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arbiter",
	Subsystem: "dispatch",
	Name:      "submissions_total",
	Help:      "Inbound flight plan submissions by intake verdict",
}, []string{"verdict"})

// challengeMsg is the wire envelope a connected participant receives when
// a round opens.
type challengeMsg struct {
	Type        string         `json:"type"`
	ChallengeID string         `json:"challenge_id"`
	Spec        challenge.Spec `json:"spec"`
}

type hubConn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writes
}

func (c *hubConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Hub is the websocket implementation of Channel. Participants connect
// and identify themselves; the hub fans challenges out over the open
// connections and funnels schema-validated plans back in. A plan failing
// intake is recorded and dropped, which the scheduler later scores as an
// absence.
type Hub struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     map[Participant]*hubConn
	collector *collector
}

type collector struct {
	challengeID string
	audience    map[Participant]struct{}

	mu    sync.Mutex
	plans map[Participant]*challenge.FlightPlan
	full  chan struct{} // closed when every sampled participant answered
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[Participant]*hubConn),
	}
}

// Handler returns the HTTP handler participants connect to, identifying
// themselves with the `id` query parameter.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id := Participant(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(rw, "missing participant id", http.StatusBadRequest)
			return
		}
		ws, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		h.serve(ctx, id, ws)
	}
}

func (h *Hub) serve(ctx context.Context, id Participant, ws *websocket.Conn) {
	logger := logging.FromContext(ctx).Named("hub").With(zap.String("participant", string(id)))
	conn := &hubConn{ws: ws}

	h.mu.Lock()
	if prev, ok := h.conns[id]; ok {
		prev.ws.Close()
	}
	h.conns[id] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.conns[id] == conn {
			delete(h.conns, id)
		}
		h.mu.Unlock()
		ws.Close()
		logger.Debug("participant disconnected")
	}()

	logger.Debug("participant connected")
	ws.SetReadLimit(MaxPlanBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))

		plan, err := challenge.DecodeFlightPlan(msg)
		if err != nil {
			submissionsMetric.WithLabelValues("rejected").Inc()
			logger.Debug("rejecting submission at intake", zap.Error(err))
			continue
		}
		h.deliver(ctx, id, plan)
	}
}

func (h *Hub) deliver(ctx context.Context, id Participant, plan *challenge.FlightPlan) {
	h.mu.Lock()
	c := h.collector
	h.mu.Unlock()
	if c == nil {
		submissionsMetric.WithLabelValues("no_round").Inc()
		return
	}
	verdict := c.add(id, plan)
	submissionsMetric.WithLabelValues(verdict).Inc()
	if verdict != "accepted" {
		logging.FromContext(ctx).Debug("dropping submission",
			zap.String("participant", string(id)), zap.String("verdict", verdict))
	}
}

func (c *collector) add(id Participant, plan *challenge.FlightPlan) (verdict string) {
	if plan.ChallengeID != c.challengeID {
		return "challenge_mismatch"
	}
	if _, ok := c.audience[id]; !ok {
		return "not_sampled"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.plans[id]; dup {
		return "duplicate"
	}
	c.plans[id] = plan
	if len(c.plans) == len(c.audience) {
		close(c.full)
	}
	return "accepted"
}

// Implement Channel.
func (h *Hub) Broadcast(
	ctx context.Context,
	spec challenge.Spec,
	participants []Participant,
) (*Handle, error) {
	handle := newHandle(spec.ID(), participants)

	c := &collector{
		challengeID: handle.challengeID,
		audience:    handle.audience,
		plans:       make(map[Participant]*challenge.FlightPlan),
		full:        make(chan struct{}),
	}
	h.mu.Lock()
	h.collector = c
	conns := make(map[Participant]*hubConn, len(participants))
	for _, p := range participants {
		if conn, ok := h.conns[p]; ok {
			conns[p] = conn
		}
	}
	h.mu.Unlock()

	msg := challengeMsg{Type: "challenge", ChallengeID: handle.challengeID, Spec: spec}
	logger := logging.FromContext(ctx)
	for p, conn := range conns {
		if err := conn.writeJSON(msg); err != nil {
			// Best-effort: a dead connection is indistinguishable from a
			// participant that never answers.
			logger.Debug("failed to send challenge", zap.String("participant", string(p)), zap.Error(err))
		}
	}
	return handle, nil
}

func (h *Hub) Collect(
	ctx context.Context,
	handle *Handle,
	deadline time.Time,
) (map[Participant]*challenge.FlightPlan, error) {
	h.mu.Lock()
	c := h.collector
	h.mu.Unlock()
	if c == nil || c.challengeID != handle.challengeID {
		return nil, fmt.Errorf("no collection in progress for challenge %s", handle.challengeID)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var ctxErr error
	select {
	case <-c.full:
	case <-timer.C:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	h.mu.Lock()
	h.collector = nil
	h.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	plans := make(map[Participant]*challenge.FlightPlan, len(c.plans))
	for id, plan := range c.plans {
		plans[id] = plan
	}
	return plans, ctxErr
}
