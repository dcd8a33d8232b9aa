package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Metadata cache service, called by resolvers in other processes.
	e.GET("/metadata", h.MetadataFind)
	e.POST("/metadata", h.MetadataInsert)
	e.GET("/onchain-metadata/:mint", h.OnChainMetadata)

	v1 := e.Group("/v1")
	if cfg.APIKey != "" {
		v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}
	v1.GET("/health", h.Health)
	v1.GET("/holdings/:owner", h.Holdings)
	v1.GET("/quote", h.Quote)
	v1.GET("/history/:owner", h.History)

	actionRate, actionBurst := cfg.ActionRate, cfg.ActionBurst
	if actionRate <= 0 {
		actionRate = 2
	}
	if actionBurst <= 0 {
		actionBurst = 5
	}
	actions := v1.Group("/actions")
	actions.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(actionRate),
		Burst:     actionBurst,
		ExpiresIn: 2 * time.Minute,
	})))
	actions.POST("/:kind", h.BuildAction)
	actions.POST("/:kind/execute", h.ExecuteAction)
	actions.POST("/:kind/simulate", h.SimulateAction)
	actions.PUT("/:kind/enabled", h.ActionToggle)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
