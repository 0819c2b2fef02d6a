package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Fantasim/vaultscan/internal/models"
)

const (
	testEVMAddress    = "0x1234567890abcdef1234567890abcdef12345678"
	testSolanaAddress = "So11111111111111111111111111111111111111112"
)

// jsonRPCRequest is the decoded request body seen by the mock servers.
type jsonRPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// rpcReply answers one JSON-RPC request; a non-empty errMsg produces a
// JSON-RPC error object instead of a result.
type rpcReply struct {
	result string
	errMsg string
}

// newRPCServer starts a JSON-RPC mock that answers by method name and
// counts calls per method.
func newRPCServer(t *testing.T, handle func(req jsonRPCRequest) rpcReply) (*httptest.Server, *callCounter) {
	t.Helper()
	counter := &callCounter{calls: make(map[string]int)}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		counter.inc(req.Method)

		reply := handle(req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if reply.errMsg != "" {
			resp["error"] = map[string]interface{}{"code": -32000, "message": reply.errMsg}
		} else {
			resp["result"] = json.RawMessage(reply.result)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(server.Close)

	return server, counter
}

type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) inc(method string) {
	c.mu.Lock()
	c.calls[method]++
	c.mu.Unlock()
}

func (c *callCounter) get(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// fakeProtocol is a Protocol driven by a function.
type fakeProtocol struct {
	fn func(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error)
}

func (f *fakeProtocol) Query(ctx context.Context, endpoint, address string) ([]models.BalanceRecord, error) {
	return f.fn(ctx, endpoint, address)
}

// pickyProtocol rejects every address.
type pickyProtocol struct {
	fakeProtocol
}

func (p *pickyProtocol) ValidAddress(string) bool { return false }
