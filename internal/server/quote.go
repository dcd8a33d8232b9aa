package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
)

func splitCSVQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseBoolQuery(c echo.Context, name string) (*bool, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Quote proxies a route quote. The body can be passed back unchanged as the
// quote of a swap action.
func (h *Handlers) Quote(c echo.Context) error {
	if h.Jupiter == nil {
		return h.unavailable(c, "jupiter")
	}

	inputMint := strings.TrimSpace(c.QueryParam("inputMint"))
	outputMint := strings.TrimSpace(c.QueryParam("outputMint"))
	amountStr := strings.TrimSpace(c.QueryParam("amount"))

	if inputMint == "" {
		return h.err(c, http.StatusBadRequest, "invalid inputMint", map[string]any{"inputMint": "required"})
	}
	if outputMint == "" {
		return h.err(c, http.StatusBadRequest, "invalid outputMint", map[string]any{"outputMint": "required"})
	}
	if _, err := strconv.ParseUint(amountStr, 10, 64); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be uint64"})
	}

	var slippageBps *uint16
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be uint16"})
		}
		tmp := uint16(n)
		slippageBps = &tmp
	}

	swapMode := strings.TrimSpace(c.QueryParam("swapMode"))
	if swapMode != "" && swapMode != "ExactIn" && swapMode != "ExactOut" {
		return h.err(c, http.StatusBadRequest, "invalid swapMode", map[string]any{"swapMode": "must be ExactIn or ExactOut"})
	}

	onlyDirectRoutes, err := parseBoolQuery(c, "onlyDirectRoutes")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid onlyDirectRoutes", map[string]any{"onlyDirectRoutes": "must be boolean"})
	}
	asLegacyTransaction, err := parseBoolQuery(c, "asLegacyTransaction")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asLegacyTransaction", map[string]any{"asLegacyTransaction": "must be boolean"})
	}

	var maxAccounts *uint64
	if v := strings.TrimSpace(c.QueryParam("maxAccounts")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid maxAccounts", map[string]any{"maxAccounts": "must be uint64"})
		}
		maxAccounts = &n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	out, err := h.Jupiter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:           inputMint,
		OutputMint:          outputMint,
		Amount:              amountStr,
		SlippageBps:         slippageBps,
		SwapMode:            swapMode,
		Dexes:               splitCSVQuery(c.QueryParams()["dexes"]),
		ExcludeDexes:        splitCSVQuery(c.QueryParams()["excludeDexes"]),
		OnlyDirectRoutes:    onlyDirectRoutes,
		AsLegacyTransaction: asLegacyTransaction,
		MaxAccounts:         maxAccounts,
	})
	if err != nil {
		return h.err(c, http.StatusBadGateway, "jupiter quote failed", map[string]any{"err": err.Error()})
	}
	if len(out.Raw) > 0 {
		return c.JSONBlob(http.StatusOK, out.Raw)
	}
	return c.JSON(http.StatusOK, out)
}
