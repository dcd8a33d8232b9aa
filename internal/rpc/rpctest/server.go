// Package rpctest provides an in-process JSON-RPC 2.0 server for tests.
package rpctest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Handler answers one JSON-RPC method. Returning an *Error produces a JSON-RPC
// error object; any other value is marshalled as the result.
type Handler func(params json.RawMessage) any

// Error is returned by a Handler to reply with a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server is a JSON-RPC test server dispatching on method name.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
}

// NewServer starts a server and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{handlers: map[string]Handler{}, calls: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls reports how many requests hit method.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case !ok:
		resp["error"] = Error{Code: -32601, Message: "method not found: " + req.Method}
	default:
		switch v := h(req.Params).(type) {
		case *Error:
			resp["error"] = v
		default:
			resp["result"] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Account renders an account value in base64 encoding, as returned by
// getAccountInfo and getMultipleAccounts.
func Account(owner string, data []byte) map[string]any {
	return map[string]any{
		"lamports":   2039280,
		"owner":      owner,
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"executable": false,
		"rentEpoch":  0,
	}
}

// Value wraps v in the {context, value} envelope used by most ledger methods.
func Value(v any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": v}
}
