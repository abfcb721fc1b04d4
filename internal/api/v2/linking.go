// internal/api/v2/linking.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/agropanel/agriprice-go/internal/errors"
)

// LinkRequest is the administrative linking mutation: setting CanonicalID to
// null clears the link.
type LinkRequest struct {
	SourceType  string `json:"sourceType"` // product or country
	SourceID    uint   `json:"sourceId"`
	CanonicalID *uint  `json:"canonicalId"`
}

// UpdateLink handles PUT /api/v2/links. This is the only externally triggered
// mutation into the resolver's domain outside the batch job.
func (c *Controller) UpdateLink(ctx echo.Context) error {
	var req LinkRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid link request body", http.StatusBadRequest)
	}
	if req.SourceID == 0 {
		return c.HandleError(ctx, errors.Newf("sourceId is required").
			Component("api").Category(errors.CategoryValidation).Build(),
			"Invalid link request", http.StatusBadRequest)
	}

	var err error
	switch req.SourceType {
	case "product":
		err = c.DS.LinkSourceProduct(req.SourceID, req.CanonicalID)
	case "country":
		err = c.DS.LinkSourceCountry(req.SourceID, req.CanonicalID)
	default:
		return c.HandleError(ctx, errors.Newf("unknown sourceType %q", req.SourceType).
			Component("api").Category(errors.CategoryValidation).Build(),
			"Invalid link request", http.StatusBadRequest)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.HandleError(ctx, err, "Source record not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to update link", http.StatusInternalServerError)
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "link updated",
		"source_type", req.SourceType,
		"source_id", req.SourceID,
		"cleared", req.CanonicalID == nil)
	return ctx.JSON(http.StatusOK, map[string]any{"success": true})
}

// RunResolver handles POST /api/v2/resolver/run. It executes a full resolver
// pass and returns the per-batch reports.
func (c *Controller) RunResolver(ctx echo.Context) error {
	reports, err := c.Resolver.Run(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Resolver run failed", http.StatusInternalServerError)
	}

	for _, r := range reports {
		c.metrics.RecordResolverBatch(r.Provider, r.Kind, r.Linked, r.Created, r.Unlinked, r.Failed)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"reports": reports})
}
