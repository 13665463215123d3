package server

import (
	"encoding/json"
	"net/http"

	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/node"
)

// StatusSource provides the latest engine snapshot.
type StatusSource interface {
	Status() node.Status
}

// StatusReport is the body served by the status endpoint.
type StatusReport struct {
	node.Status
	Sessions []PeerInfo        `json:"sessions"`
	Actions  map[string]uint64 `json:"actions"`
}

// StatusHandler serves a JSON StatusReport.
func (h *Hub) StatusHandler(source StatusSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		report := StatusReport{
			Status:   source.Status(),
			Sessions: h.Sessions(),
			Actions:  h.ActionCounts(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			h.logger.Warn("encode status", log.Error(err))
		}
	})
}
