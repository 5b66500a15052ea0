package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sioux/pubsub/internal/config"
	"github.com/sioux/pubsub/internal/pubsub"
)

// groupSpec is the wire shape for a pubsub.NodeGroup: the predicate itself
// isn't serializable, so only the handful of constructors pubsub exports
// (AllNodes/ByDomain/ByDomainValue) are addressable over the API.
type groupSpec struct {
	Type   string `json:"type"` // "all" | "by_domain" | "by_domain_value"
	Domain string `json:"domain,omitempty"`
	Value  string `json:"value,omitempty"`
}

func (g groupSpec) toNodeGroup() (pubsub.NodeGroup, error) {
	switch g.Type {
	case "all":
		return pubsub.AllNodes(), nil
	case "by_domain":
		if g.Domain == "" {
			return nil, invalidArgument("by_domain group requires a domain")
		}
		return pubsub.ByDomain(g.Domain), nil
	case "by_domain_value":
		if g.Domain == "" || g.Value == "" {
			return nil, invalidArgument("by_domain_value group requires domain and value")
		}
		return pubsub.ByDomainValue(g.Domain, g.Value), nil
	default:
		return nil, invalidArgument("unknown group type " + g.Type)
	}
}

type configSpec struct {
	AuthorizationRequired bool            `json:"authorization_required"`
	MaxUpdateSize         int             `json:"max_update_size"`
	KeepAliveTimeout      config.Duration `json:"keep_alive_timeout"`
	IOTimeout             config.Duration `json:"io_timeout"`
	MaxIdleTime           config.Duration `json:"max_idle_time"`
}

func (c configSpec) toConfiguration() pubsub.Configuration {
	return pubsub.Configuration{
		AuthorizationRequired: c.AuthorizationRequired,
		MaxUpdateSize:         c.MaxUpdateSize,
		KeepAliveTimeout:      c.KeepAliveTimeout.Std(),
		IOTimeout:             c.IOTimeout.Std(),
		MaxIdleTime:           c.MaxIdleTime.Std(),
	}
}

func fromConfiguration(cfg pubsub.Configuration) configSpec {
	return configSpec{
		AuthorizationRequired: cfg.AuthorizationRequired,
		MaxUpdateSize:         cfg.MaxUpdateSize,
		KeepAliveTimeout:      config.Duration(cfg.KeepAliveTimeout),
		IOTimeout:             config.Duration(cfg.IOTimeout),
		MaxIdleTime:           config.Duration(cfg.MaxIdleTime),
	}
}

type configurationEntryResponse struct {
	Label  string     `json:"label"`
	Config configSpec `json:"config"`
}

// HandleListConfigurations answers GET /api/v1/configurations.
func HandleListConfigurations(configs *pubsub.ConfigurationList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := configs.List()
		out := make([]configurationEntryResponse, len(entries))
		for i, e := range entries {
			out[i] = configurationEntryResponse{Label: e.Label, Config: fromConfiguration(e.Config)}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
	}
}

type createConfigurationRequest struct {
	Label  string     `json:"label"`
	Group  groupSpec  `json:"group"`
	Config configSpec `json:"config"`
}

// HandleCreateConfiguration answers POST /api/v1/configurations.
func HandleCreateConfiguration(configs *pubsub.ConfigurationList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConfigurationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, invalidArgument("malformed request body: "+err.Error()))
			return
		}
		if req.Label == "" {
			writeError(w, invalidArgument("label is required"))
			return
		}
		group, err := req.Group.toNodeGroup()
		if err != nil {
			writeError(w, err)
			return
		}
		configs.AddConfiguration(req.Label, group, req.Config.toConfiguration())
		WriteJSON(w, http.StatusCreated, map[string]string{"label": req.Label})
	}
}

// HandleDeleteConfiguration answers DELETE /api/v1/configurations/{label}.
func HandleDeleteConfiguration(configs *pubsub.ConfigurationList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		label := chi.URLParam(r, "label")
		if err := configs.RemoveConfiguration(label); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
