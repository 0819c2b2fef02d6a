package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/transport"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Error   *rpcError       `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// httpJSON performs the JSON-over-HTTP calls of the non-ethclient protocols.
type httpJSON struct {
	client *http.Client
	source string
}

// rpc sends a JSON-RPC 2.0 request and decodes its result into out.
func (h httpJSON) rpc(ctx context.Context, endpoint, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if err := transport.CheckStatus(resp, h.source); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, config.HTTPResponseMaxBytes)).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", config.ErrMalformedResponse, method, err)
	}

	if rpcResp.Error != nil {
		slog.Warn("json-rpc error",
			"source", h.source,
			"method", method,
			"code", rpcResp.Error.Code,
			"message", rpcResp.Error.Message,
		)
		return rpcErrorToSentinel(method, rpcResp.Error)
	}

	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: %s returned no result", config.ErrMalformedResponse, method)
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %w", config.ErrMalformedResponse, method, err)
	}
	return nil
}

// rpcErrorToSentinel maps a JSON-RPC error object onto the provider sentinels.
func rpcErrorToSentinel(method string, e *rpcError) error {
	switch {
	case transport.IsNotEnabled(e):
		return fmt.Errorf("%s: %w: %w", method, config.ErrNetworkNotEnabled, e)
	case e.Code == http.StatusTooManyRequests || strings.Contains(strings.ToLower(e.Message), "rate limit"):
		return config.NewTransientError(fmt.Errorf("%s: %w: %w", method, config.ErrProviderRateLimit, e))
	default:
		return fmt.Errorf("%s: %w: %w", method, config.ErrProviderUnavailable, e)
	}
}

// get issues a GET and decodes the JSON body into out.
func (h httpJSON) get(ctx context.Context, url string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := transport.CheckStatus(resp, h.source); err != nil {
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, config.HTTPResponseMaxBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", config.ErrMalformedResponse, err)
	}
	return nil
}
