package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/engine"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/flags"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/planner"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/wallet"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// classify maps a domain error to its status code and public message.
func classify(err error) (int, string) {
	var (
		quoteErr *planner.QuoteServiceError
		jupErr   *jupiter.HTTPError
	)
	switch {
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, planner.ErrInvalidAction):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, flags.ErrActionDisabled):
		return http.StatusForbidden, "action disabled"
	case errors.Is(err, planner.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient balance"
	case errors.Is(err, planner.ErrTooManyInputs):
		return http.StatusUnprocessableEntity, "amount spans too many compressed accounts; decompress a smaller amount first"
	case errors.Is(err, planner.ErrSwapRejected):
		return http.StatusUnprocessableEntity, "swap rejected"
	case errors.As(err, &quoteErr), errors.As(err, &jupErr):
		return http.StatusBadGateway, "quote service failed"
	case errors.Is(err, wallet.ErrNoSigner), errors.Is(err, engine.ErrHistoryDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, rpc.ErrServiceUnavailable):
		return http.StatusBadGateway, "external service failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail writes err as classified. The full error text is only exposed in dev
// mode.
func (h *Handlers) fail(c echo.Context, err error) error {
	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		h.logger().WithError(err).WithField("path", c.Path()).Warn("request failed")
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}
