package adminapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sioux/pubsub/internal/pubsub"
)

// nodeSummary is the wire shape of pubsub.NodeInfo: never the adapter's
// raw data, only version/digest/subscriber-count metadata (SPEC_FULL §6).
type nodeSummary struct {
	Name            string `json:"name"`
	CurrentVersion  uint64 `json:"current_version"`
	OldestVersion   uint64 `json:"oldest_version"`
	Digest          string `json:"digest"`
	SubscriberCount int    `json:"subscriber_count"`
}

func toNodeSummary(info pubsub.NodeInfo) nodeSummary {
	return nodeSummary{
		Name:            info.Name,
		CurrentVersion:  uint64(info.CurrentVersion),
		OldestVersion:   uint64(info.OldestVersion),
		Digest:          strconv.FormatUint(info.Digest, 16),
		SubscriberCount: info.SubscriberCount,
	}
}

// HandleListNodes answers GET /api/v1/nodes.
func HandleListNodes(root *pubsub.Root) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := root.ListNodes()
		out := make([]nodeSummary, len(infos))
		for i, info := range infos {
			out[i] = toNodeSummary(info)
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
	}
}

// HandleGetNode answers GET /api/v1/nodes/{name}, name being a node's
// canonical Name.String() form ("domain=value&domain=value", percent
// encoded as one path segment).
func HandleGetNode(root *pubsub.Root) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "name")
		info, ok := root.GetNodeInfoByKey(key)
		if !ok {
			writeError(w, notFound("no node with that name"))
			return
		}
		WriteJSON(w, http.StatusOK, toNodeSummary(info))
	}
}
