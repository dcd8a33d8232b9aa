package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/flags"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/metadata"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage"
)

// Wallet is the engine surface the API serves.
type Wallet interface {
	Holdings(ctx context.Context, owner string, sortByValue bool) ([]portfolio.Holding, error)
	BuildAction(ctx context.Context, req engine.ActionRequest) (*engine.BuiltAction, error)
	Execute(ctx context.Context, req engine.ActionRequest) (*engine.ExecutedAction, error)
	Simulate(ctx context.Context, req engine.ActionRequest) (*engine.SimulatedAction, error)
	RecentActions(ctx context.Context, owner string, limit int) ([]models.ActionEvent, error)
	Ping(ctx context.Context) map[string]string
}

// FlagStore is the flag CRUD backend.
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// Quoter fetches swap quotes.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
}

// OnChainFetcher resolves one mint from its metadata account.
type OnChainFetcher interface {
	Fetch(ctx context.Context, mint string) metadata.Record
}

// Handlers contains all dependencies for API endpoint handlers. Every field
// but Wallet is optional; routes backed by a nil field answer 503.
type Handlers struct {
	Wallet   Wallet
	Flags    FlagStore
	Jupiter  Quoter
	Metadata storage.MetadataStore
	OnChain  OnChainFetcher
	DevMode  bool
	Logger   *logrus.Logger
}

var defaultLogger = logrus.New()

func (h *Handlers) logger() *logrus.Logger {
	if h.Logger == nil {
		return defaultLogger
	}
	return h.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) unavailable(c echo.Context, what string) error {
	return h.err(c, http.StatusServiceUnavailable, what+" is not configured", nil)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports each backing service. It is 503 when the ledger RPC is down.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := h.Wallet.Ping(ctx)
	ok := checks["ledger"] == "ok"
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{OK: ok, Checks: checks})
}
