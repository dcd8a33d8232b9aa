package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// MetadataFind returns the stored rows for ids=a,b. Unknown mints are absent.
func (h *Handlers) MetadataFind(c echo.Context) error {
	if h.Metadata == nil {
		return h.unavailable(c, "metadata store")
	}
	ids := splitCSVQuery(c.QueryParams()["ids"])
	if len(ids) == 0 {
		return c.JSON(http.StatusOK, []models.TokenMetadata{})
	}
	if len(ids) > constants.MaxMetadataBatch {
		return h.err(c, http.StatusBadRequest, "too many ids", map[string]any{"ids": "max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Metadata.Find(ctx, ids)
	if err != nil {
		return h.fail(c, err)
	}
	if rows == nil {
		rows = []models.TokenMetadata{}
	}
	return c.JSON(http.StatusOK, rows)
}

// MetadataInsert stores rows for previously unseen mints. Rows for known
// mints are ignored.
func (h *Handlers) MetadataInsert(c echo.Context) error {
	if h.Metadata == nil {
		return h.unavailable(c, "metadata store")
	}
	var rows []models.TokenMetadata
	if err := c.Bind(&rows); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	for i, r := range rows {
		r.Mint = strings.TrimSpace(r.Mint)
		if r.Mint == "" {
			return h.err(c, http.StatusBadRequest, "invalid row", map[string]any{"index": i, "mint": "required"})
		}
		if r.Decimals < 0 {
			return h.err(c, http.StatusBadRequest, "invalid row", map[string]any{"index": i, "decimals": "must be >= 0"})
		}
		rows[i] = r
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Metadata.InsertMissing(ctx, rows); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// OnChainMetadata reads one mint's metadata account and document. Misses
// return zero values with 200.
func (h *Handlers) OnChainMetadata(c echo.Context) error {
	if h.OnChain == nil {
		return h.unavailable(c, "on-chain metadata")
	}
	mint := strings.TrimSpace(c.Param("mint"))
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rec := h.OnChain.Fetch(ctx, mint)
	return c.JSON(http.StatusOK, OnChainMetadataResponse{Symbol: rec.Symbol, Image: rec.Image, Decimals: rec.Decimals})
}
