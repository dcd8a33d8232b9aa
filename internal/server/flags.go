package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/flags"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

const flagTimeout = 3 * time.Second

// flagKey validates a flag key and writes the 400 itself when it is malformed.
func (h *Handlers) flagKey(c echo.Context, key string) (string, bool) {
	if err := flags.ValidateKey(key); err != nil {
		_ = h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
		return "", false
	}
	return key, true
}

func (h *Handlers) setFlag(c echo.Context, key string, value bool) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, value)
	if err != nil {
		h.logger().WithError(err).WithField("key", key).Warn("flag write failed")
		return h.err(c, http.StatusInternalServerError, "failed to write flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpsert creates or updates the flag named in the body.
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	key, ok := h.flagKey(c, req.Key)
	if !ok {
		return nil
	}
	return h.setFlag(c, key, req.Value)
}

// FlagsUpdate sets the flag at :key, creating it if needed.
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	key, ok := h.flagKey(c, c.Param("key"))
	if !ok {
		return nil
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.setFlag(c, key, req.Value)
}

// ActionToggle flips the kill-switch for one action kind.
// PUT /v1/actions/:kind/enabled {"value": false} disables it.
func (h *Handlers) ActionToggle(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	kind := models.ActionKind(strings.ToLower(c.Param("kind")))
	if !kind.Valid() {
		return h.err(c, http.StatusBadRequest, "invalid action", map[string]any{"kind": c.Param("kind")})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.setFlag(c, flags.ActionFlagKey(kind), !req.Value)
}

func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	key, ok := h.flagKey(c, c.Param("key"))
	if !ok {
		return nil
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	switch {
	case errors.Is(err, flags.ErrNotFound):
		return h.err(c, http.StatusNotFound, "flag not found", nil)
	case err != nil:
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns every flag, or only those starting with ?prefix=.
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	if prefix := c.QueryParam("prefix"); prefix != "" {
		kept := items[:0]
		for _, f := range items {
			if strings.HasPrefix(f.Key, prefix) {
				kept = append(kept, f)
			}
		}
		items = kept
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.unavailable(c, "flags")
	}
	key, ok := h.flagKey(c, c.Param("key"))
	if !ok {
		return nil
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), flagTimeout)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
