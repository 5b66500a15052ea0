package adminapi

import (
	"net/http"

	"github.com/sioux/pubsub/internal/server"
)

type connectionResponse struct {
	ID            string `json:"id"`
	RemoteAddr    string `json:"remote_addr"`
	PendingWrites int    `json:"pending_writes"`
	Closed        bool   `json:"closed"`
}

// HandleListConnections answers GET /api/v1/connections: operational
// visibility into component F's live sockets (SPEC_FULL §6).
func HandleListConnections(registry *server.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := registry.List()
		out := make([]connectionResponse, len(stats))
		for i, s := range stats {
			out[i] = connectionResponse{
				ID:            s.ID,
				RemoteAddr:    s.RemoteAddr,
				PendingWrites: s.PendingWrites,
				Closed:        s.Closed,
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
	}
}
