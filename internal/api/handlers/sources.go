package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// SourceResponse is a registry entry as exposed by the API. Credentials are
// never included and endpoint URLs have their keys masked.
type SourceResponse struct {
	Name      string               `json:"name"`
	Chain     string               `json:"chain"`
	Kind      models.SourceKind    `json:"kind"`
	Protocol  registry.Protocol    `json:"protocol"`
	Endpoints []string             `json:"endpoints"`
	Symbol    string               `json:"symbol,omitempty"`
	Decimals  int                  `json:"decimals,omitempty"`
	Tokens    []registry.TokenSpec `json:"tokens,omitempty"`
}

// ListSources returns a handler for GET /api/sources.
func ListSources(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descs := reg.All()
		out := make([]SourceResponse, 0, len(descs))
		for _, d := range descs {
			out = append(out, SourceResponse{
				Name:      d.Name,
				Chain:     d.Chain,
				Kind:      d.Kind,
				Protocol:  d.Protocol,
				Endpoints: d.MaskedEndpoints(),
				Symbol:    d.Symbol,
				Decimals:  d.Decimals,
				Tokens:    d.Tokens,
			})
		}

		slog.Debug("sources listed", "count", len(out))

		writeJSON(w, http.StatusOK, models.APIResponse{Data: out})
	}
}
