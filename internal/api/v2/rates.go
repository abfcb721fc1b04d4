// internal/api/v2/rates.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetRates handles GET /api/v2/rates. It serves the current conversion table
// snapshot for client-side cross-checking.
func (c *Controller) GetRates(ctx echo.Context) error {
	table := c.Rates.Current()
	c.logAPIRequest(ctx, slog.LevelDebug, "rates served",
		"currencies", len(table.Currencies), "units", len(table.Units))
	return ctx.JSON(http.StatusOK, table)
}
