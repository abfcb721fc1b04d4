// internal/api/v2/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/agropanel/agriprice-go/internal/aggregator"
	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/convert"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
	"github.com/agropanel/agriprice-go/internal/observability"
	"github.com/agropanel/agriprice-go/internal/resolver"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	DS         datastore.Interface
	Settings   *conf.Settings
	Rates      *convert.Cache
	Aggregator *aggregator.Aggregator
	Resolver   *resolver.Resolver

	logger          *log.Logger
	apiLogger       *slog.Logger
	comparisonCache *cache.Cache
	metrics         *observability.Metrics
	startTime       time.Time
}

// New creates a new API controller and registers its routes.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	rates *convert.Cache, agg *aggregator.Aggregator, res *resolver.Resolver,
	metrics *observability.Metrics, logger *log.Logger) *Controller {

	if logger == nil {
		logger = log.Default()
	}

	ttl := time.Duration(settings.Comparison.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}

	c := &Controller{
		Echo:            e,
		Group:           e.Group("/api/v2"),
		DS:              ds,
		Settings:        settings,
		Rates:           rates,
		Aggregator:      agg,
		Resolver:        res,
		logger:          logger,
		apiLogger:       logging.ForService("api"),
		comparisonCache: cache.New(ttl, 2*ttl),
		metrics:         metrics,
		startTime:       time.Now(),
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.Use(middleware.Recover())

	c.Group.GET("/health", c.Health)
	c.Group.GET("/comparison", c.GetComparison)
	c.Group.GET("/rates", c.GetRates)
	c.Group.GET("/products", c.GetProducts)
	c.Group.GET("/countries", c.GetCountries)
	c.Group.PUT("/links", c.UpdateLink)
	c.Group.POST("/resolver/run", c.RunResolver)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response with a correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns a short random hex identifier for correlating
// an error response with its log entries.
func generateCorrelationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("%08x", b)
}

// HandleError logs an error and sends the uniform error payload.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	ip := ctx.RealIP()
	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	return ctx.JSON(code, errorResp)
}

// statusFor maps an error onto an HTTP status code using its category.
func statusFor(err error) int {
	switch {
	case errors.HasCategory(err, errors.CategoryNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.HasCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Debug logs debug messages when web server debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

// logAPIRequest logs a request-scoped message with common context fields.
func (c *Controller) logAPIRequest(ctx echo.Context, level slog.Level, msg string, args ...any) {
	if c.apiLogger == nil {
		return
	}
	baseAttrs := []any{
		"path", ctx.Request().URL.Path,
		"ip", ctx.RealIP(),
	}
	baseAttrs = append(baseAttrs, args...)

	switch level {
	case slog.LevelDebug:
		c.apiLogger.Debug(msg, baseAttrs...)
	case slog.LevelInfo:
		c.apiLogger.Info(msg, baseAttrs...)
	case slog.LevelWarn:
		c.apiLogger.Warn(msg, baseAttrs...)
	default:
		c.apiLogger.Error(msg, baseAttrs...)
	}
}

// Health reports service liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(c.startTime).Seconds()),
	})
}
