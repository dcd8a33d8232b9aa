package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// Holdings lists a wallet's balances. sort=value orders by USD value.
func (h *Handlers) Holdings(c echo.Context) error {
	owner := strings.TrimSpace(c.Param("owner"))
	sortBy := c.QueryParam("sort")
	if sortBy != "" && sortBy != "value" {
		return h.err(c, http.StatusBadRequest, "invalid sort", map[string]any{"sort": "must be value"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	hs, err := h.Wallet.Holdings(ctx, owner, sortBy == "value")
	if err != nil {
		return h.fail(c, err)
	}
	items := make([]HoldingResponse, 0, len(hs))
	for _, hd := range hs {
		items = append(items, toHoldingResponse(hd))
	}
	return c.JSON(http.StatusOK, HoldingsResponse{Owner: owner, Items: items})
}

func (h *Handlers) bindAction(c echo.Context) (engine.ActionRequest, error) {
	var req engine.ActionRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	req.Kind = models.ActionKind(strings.ToLower(c.Param("kind")))
	return req, nil
}

// BuildAction returns an unsigned transaction for the caller to sign.
func (h *Handlers) BuildAction(c echo.Context) error {
	req, err := h.bindAction(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	out, err := h.Wallet.BuildAction(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ExecuteAction signs and submits the action with the server's own wallet.
func (h *Handlers) ExecuteAction(c echo.Context) error {
	req, err := h.bindAction(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 70*time.Second)
	defer cancel()

	out, err := h.Wallet.Execute(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SimulateAction builds the action and dry-runs it on the ledger.
func (h *Handlers) SimulateAction(c echo.Context) error {
	req, err := h.bindAction(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	out, err := h.Wallet.Simulate(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// History returns owner's recorded actions.
// Accepts limit query parameter (default: 50, range: 1-500)
func (h *Handlers) History(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 500 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 500"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Wallet.RecentActions(ctx, c.Param("owner"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
