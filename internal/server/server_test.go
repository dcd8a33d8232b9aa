package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/flags"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/metadata"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/planner"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/wallet"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

type fakeWallet struct {
	holdings []portfolio.Holding
	buildErr error
	execErr  error
	checks   map[string]string

	lastReq engine.ActionRequest
}

func (f *fakeWallet) Holdings(_ context.Context, owner string, _ bool) ([]portfolio.Holding, error) {
	if owner != testOwner {
		return nil, fmt.Errorf("%w: owner", engine.ErrInvalidInput)
	}
	return f.holdings, nil
}

func (f *fakeWallet) BuildAction(_ context.Context, req engine.ActionRequest) (*engine.BuiltAction, error) {
	f.lastReq = req
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &engine.BuiltAction{Kind: req.Kind, Owner: req.Owner, Mint: req.Mint, Transaction: "AQID"}, nil
}

func (f *fakeWallet) Execute(_ context.Context, req engine.ActionRequest) (*engine.ExecutedAction, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &engine.ExecutedAction{BuiltAction: &engine.BuiltAction{Kind: req.Kind}, Signature: "sig"}, nil
}

func (f *fakeWallet) Simulate(_ context.Context, req engine.ActionRequest) (*engine.SimulatedAction, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	built := &engine.BuiltAction{Kind: req.Kind, Owner: req.Owner, Transaction: "AQID"}
	return &engine.SimulatedAction{BuiltAction: built, Success: false, Error: "InstructionError", UnitsConsumed: 1200}, nil
}

func (f *fakeWallet) RecentActions(context.Context, string, int) ([]models.ActionEvent, error) {
	return nil, engine.ErrHistoryDisabled
}

func (f *fakeWallet) Ping(context.Context) map[string]string {
	if f.checks == nil {
		return map[string]string{"ledger": "ok"}
	}
	return f.checks
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]models.TokenMetadata
}

func newMemStore() *memStore { return &memStore{rows: map[string]models.TokenMetadata{}} }

func (m *memStore) Find(_ context.Context, mints []string) ([]models.TokenMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TokenMetadata
	for _, id := range mints {
		if r, ok := m.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) InsertMissing(_ context.Context, rows []models.TokenMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if _, ok := m.rows[r.Mint]; !ok {
			m.rows[r.Mint] = r
		}
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type fakeOnChain map[string]metadata.Record

func (f fakeOnChain) Fetch(_ context.Context, mint string) metadata.Record {
	if r, ok := f[mint]; ok {
		return r
	}
	return metadata.NotFound(mint)
}

type fakeFlags struct{}

func (fakeFlags) Upsert(_ context.Context, key string, value bool) (*flags.Flag, error) {
	return &flags.Flag{Key: key, Value: value}, nil
}
func (fakeFlags) Get(context.Context, string) (*flags.Flag, error) { return nil, flags.ErrNotFound }
func (fakeFlags) List(context.Context) ([]*flags.Flag, error)      { return []*flags.Flag{}, nil }
func (fakeFlags) Delete(context.Context, string) error             { return nil }

type fakeQuoter struct{ err error }

func (f fakeQuoter) Quote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw := fmt.Sprintf(`{"inputMint":%q,"outputMint":%q,"inAmount":%q}`, req.InputMint, req.OutputMint, req.Amount)
	return &jupiter.QuoteResponse{Raw: json.RawMessage(raw)}, nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestServer(t *testing.T, h *Handlers, cfg ServerConfig) http.Handler {
	t.Helper()
	if h.Logger == nil {
		h.Logger = quiet()
	}
	s, err := NewServer(ServerDeps{Handlers: h, Config: cfg})
	require.NoError(t, err)
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestHoldings(t *testing.T) {
	big1 := new(big.Int)
	big1.SetString("123456789012345678901", 10)
	w := &fakeWallet{holdings: []portfolio.Holding{
		{Mint: "MintA", Representation: portfolio.Compressed, Amount: big1, Decimals: 9, Symbol: "AAA", PricePerToken: 1, MetadataFound: true},
	}}
	srv := newTestServer(t, &Handlers{Wallet: w}, ServerConfig{})

	code, body := do(t, srv, http.MethodGet, "/v1/holdings/"+testOwner, "")
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "123456789012345678901", item["amount"])
	assert.Equal(t, "123456789012.345678901", item["uiAmount"])
	assert.Equal(t, "compressed", item["representation"])

	code, _ = do(t, srv, http.MethodGet, "/v1/holdings/"+testOwner+"?sort=name", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodGet, "/v1/holdings/bogus", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBuildAction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid", fmt.Errorf("%w: amount", engine.ErrInvalidInput), http.StatusBadRequest},
		{"invalid action", fmt.Errorf("%w: mint", planner.ErrInvalidAction), http.StatusBadRequest},
		{"disabled", fmt.Errorf("%w: swap", flags.ErrActionDisabled), http.StatusForbidden},
		{"insufficient", &planner.InsufficientBalanceError{Mint: "M", Requested: 2, Available: big.NewInt(1)}, http.StatusUnprocessableEntity},
		{"rejected", fmt.Errorf("%w: impact", planner.ErrSwapRejected), http.StatusUnprocessableEntity},
		{"too many inputs", fmt.Errorf("select inputs: %w", compression.ErrTooManyInputs), http.StatusUnprocessableEntity},
		{"quote service", &planner.QuoteServiceError{Err: &jupiter.APIError{Message: "no route"}}, http.StatusBadGateway},
		{"external", &rpc.ServiceError{Service: "ledger", Err: errors.New("eof")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWallet{buildErr: tt.err}
			srv := newTestServer(t, &Handlers{Wallet: w}, ServerConfig{})
			code, body := do(t, srv, http.MethodPost, "/v1/actions/Swap", `{"owner":"`+testOwner+`","mint":"M","amount":"2"}`)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, models.ActionSwap, w.lastReq.Kind)
			assert.Equal(t, "2", w.lastReq.Amount)
			if tt.err == nil {
				assert.Equal(t, "AQID", body["transaction"])
			} else {
				assert.Nil(t, body["details"])
			}
		})
	}
}

func TestBuildAction_DevModeDetails(t *testing.T) {
	w := &fakeWallet{buildErr: errors.New("boom")}
	srv := newTestServer(t, &Handlers{Wallet: w, DevMode: true}, ServerConfig{})
	code, body := do(t, srv, http.MethodPost, "/v1/actions/compress", `{}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "boom", body["details"].(map[string]any)["err"])
}

func TestExecuteAction_NoSigner(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{execErr: wallet.ErrNoSigner}}, ServerConfig{})
	code, body := do(t, srv, http.MethodPost, "/v1/actions/compress/execute", `{"mint":"M","amount":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "wallet not connected", body["error"])
}

func TestSimulateAction(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}}, ServerConfig{})
	code, body := do(t, srv, http.MethodPost, "/v1/actions/decompress/simulate", `{"owner":"`+testOwner+`","mint":"M","amount":"1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "decompress", body["kind"])
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "InstructionError", body["error"])
	assert.Equal(t, float64(1200), body["unitsConsumed"])
}

func TestHistory(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}}, ServerConfig{})
	code, _ := do(t, srv, http.MethodGet, "/v1/history/"+testOwner+"?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, srv, http.MethodGet, "/v1/history/"+testOwner, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetadataService(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Metadata: store}, ServerConfig{APIKey: "secret"})

	code, _ := do(t, srv, http.MethodPost, "/metadata", `[{"mint":"A","symbol":"AAA","image":"i","decimals":6}]`)
	require.Equal(t, http.StatusNoContent, code)

	// A second insert of the same mint is ignored and not an error.
	code, _ = do(t, srv, http.MethodPost, "/metadata", `[{"mint":"A","symbol":"NEW","decimals":2},{"mint":"B","symbol":"BBB","decimals":0}]`)
	require.Equal(t, http.StatusNoContent, code)

	req := httptest.NewRequest(http.MethodGet, "/metadata?ids=B,A,C", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []models.TokenMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0].Mint)
	assert.Equal(t, "AAA", rows[1].Symbol)

	code, _ = do(t, srv, http.MethodPost, "/metadata", `[{"mint":"D","decimals":-1}]`)
	assert.Equal(t, http.StatusBadRequest, code)

	req = httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestOnChainMetadata(t *testing.T) {
	onChain := fakeOnChain{constants.MintUSDC: {Mint: constants.MintUSDC, Symbol: "USDC", Image: "img", Decimals: 6, Found: true}}
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}, OnChain: onChain}, ServerConfig{})

	code, body := do(t, srv, http.MethodGet, "/onchain-metadata/"+constants.MintUSDC, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "USDC", body["symbol"])
	assert.Equal(t, float64(6), body["decimals"])

	code, body = do(t, srv, http.MethodGet, "/onchain-metadata/"+constants.MintWrappedSOL, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"symbol": "", "image": "", "decimals": float64(0)}, body)

	code, _ = do(t, srv, http.MethodGet, "/onchain-metadata/not-a-mint", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQuote(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Jupiter: fakeQuoter{}}, ServerConfig{})
	code, body := do(t, srv, http.MethodGet, "/v1/quote?inputMint=A&outputMint=B&amount=10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "10", body["inAmount"])

	code, _ = do(t, srv, http.MethodGet, "/v1/quote?inputMint=A&outputMint=B&amount=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	srv = newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Jupiter: fakeQuoter{err: errors.New("down")}}, ServerConfig{})
	code, _ = do(t, srv, http.MethodGet, "/v1/quote?inputMint=A&outputMint=B&amount=10", "")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestFlags(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}}, ServerConfig{})
	code, _ := do(t, srv, http.MethodGet, "/v1/flags", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	srv = newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Flags: fakeFlags{}}, ServerConfig{})
	code, _ = do(t, srv, http.MethodGet, "/v1/flags/actions.swap.disabled", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := do(t, srv, http.MethodPut, "/v1/flags/actions.swap.disabled", `{"value":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["value"])

	code, _ = do(t, srv, http.MethodPost, "/v1/flags", `{"key":"Bad Key!","value":true}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

type mapFlags struct {
	mu   sync.Mutex
	vals map[string]bool
}

func (f *mapFlags) Upsert(_ context.Context, key string, value bool) (*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = value
	return &flags.Flag{Key: key, Value: value}, nil
}

func (f *mapFlags) Get(_ context.Context, key string) (*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vals[key]
	if !ok {
		return nil, flags.ErrNotFound
	}
	return &flags.Flag{Key: key, Value: v}, nil
}

func (f *mapFlags) List(context.Context) ([]*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*flags.Flag, 0, len(f.vals))
	for k, v := range f.vals {
		out = append(out, &flags.Flag{Key: k, Value: v})
	}
	return out, nil
}

func (f *mapFlags) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vals, key)
	return nil
}

func TestActionToggleAndPrefix(t *testing.T) {
	store := &mapFlags{vals: map[string]bool{"ui.dark": true}}
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Flags: store}, ServerConfig{})

	code, body := do(t, srv, http.MethodPut, "/v1/actions/Swap/enabled", `{"value":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "actions.swap.disabled", body["key"])
	assert.Equal(t, true, body["value"])

	code, _ = do(t, srv, http.MethodPut, "/v1/actions/stake/enabled", `{"value":false}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodGet, "/v1/flags?prefix=actions.", "")
	require.Equal(t, http.StatusOK, code)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "actions.swap.disabled", items[0].(map[string]any)["key"])
}

func TestAPIKeyGuardsV1Only(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}, Metadata: newMemStore()}, ServerConfig{APIKey: "secret"})

	code, _ := do(t, srv, http.MethodGet, "/v1/health", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := do(t, srv, http.MethodGet, "/v1/health", "", "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	code, _ = do(t, srv, http.MethodGet, "/metadata?ids=A", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth_LedgerDown(t *testing.T) {
	w := &fakeWallet{checks: map[string]string{"ledger": "connection refused", "redis": "ok"}}
	srv := newTestServer(t, &Handlers{Wallet: w}, ServerConfig{})
	code, body := do(t, srv, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, body["ok"])
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, &Handlers{Wallet: &fakeWallet{}}, ServerConfig{})
	code, body := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, float64(http.StatusNotFound), body["code"])
}
