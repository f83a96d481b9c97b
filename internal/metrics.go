package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds cheap atomic counters exposed as JSON on /metrics.
type Metrics struct {
	joins       atomic.Uint64
	chats       atomic.Uint64
	activeConns atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncJoin() {
	m.joins.Add(1)
}

func (m *Metrics) IncChat() {
	m.chats.Add(1)
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

// MetricsHandler reports the counters plus presence gauges derived from
// the registry on demand.
func (s *Server) MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"joins_total":         s.metrics.joins.Load(),
			"chat_messages_total": s.metrics.chats.Load(),
			"active_connections":  s.metrics.activeConns.Load(),
			"present_users":       s.registry.Count(),
			"occupied_rooms":      s.registry.CountRooms(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
}
