// internal/api/v2/comparison.go
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agropanel/agriprice-go/internal/aggregator"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
)

const dateLayout = "2006-01-02"

// GetComparison handles GET /api/v2/comparison. It returns one normalized
// series per requested (country, source) selection.
func (c *Controller) GetComparison(ctx echo.Context) error {
	start := time.Now()

	req, err := c.parseComparisonQuery(ctx)
	if err != nil {
		c.metrics.ObserveComparison("invalid", time.Since(start), 0)
		return c.HandleError(ctx, err, "Invalid comparison query", http.StatusBadRequest)
	}

	cacheKey := ctx.Request().URL.RawQuery
	if cached, found := c.comparisonCache.Get(cacheKey); found {
		c.metrics.ObserveComparison("cached", time.Since(start), 0)
		return ctx.JSON(http.StatusOK, cached)
	}

	resp, err := c.Aggregator.Compare(ctx.Request().Context(), *req)
	if err != nil {
		code := statusFor(err)
		outcome := "error"
		if code == http.StatusBadRequest || code == http.StatusNotFound {
			outcome = "invalid"
		}
		c.metrics.ObserveComparison(outcome, time.Since(start), 0)
		return c.HandleError(ctx, err, "Comparison failed", code)
	}

	noData := 0
	for i := range resp.Series {
		if resp.Series[i].NoData {
			noData++
		}
	}
	c.metrics.ObserveComparison("ok", time.Since(start), noData)
	c.comparisonCache.SetDefault(cacheKey, resp)

	c.logAPIRequest(ctx, slog.LevelInfo, "comparison served",
		"product", req.ProductSlug,
		"selections", len(req.Selections),
		"nodata", noData,
		"elapsed_ms", time.Since(start).Milliseconds())
	return ctx.JSON(http.StatusOK, resp)
}

// parseComparisonQuery builds an aggregator request from the query string.
func (c *Controller) parseComparisonQuery(ctx echo.Context) (*aggregator.Request, error) {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	product := ctx.QueryParam("product")
	if product == "" {
		return nil, fail("product parameter is required")
	}

	rawSelections := ctx.QueryParam("selections")
	if rawSelections == "" {
		return nil, fail("selections parameter is required")
	}
	var selections []aggregator.Selection
	if err := json.Unmarshal([]byte(rawSelections), &selections); err != nil {
		return nil, fail("selections is not a valid JSON array: %v", err)
	}

	granularity := aggregator.GranularityAnnual
	if raw := ctx.QueryParam("granularity"); raw != "" {
		var err error
		granularity, err = aggregator.ParseGranularity(raw)
		if err != nil {
			return nil, fail("%v", err)
		}
	}

	window, err := parseWindow(ctx)
	if err != nil {
		return nil, fail("%v", err)
	}

	currency := ctx.QueryParam("currency")
	if currency == "" {
		currency = c.Settings.Conversion.BaseCurrency
	}
	unit := ctx.QueryParam("unit")
	if unit == "" {
		unit = c.Settings.Conversion.BaseUnit
	}

	marketID, err := optionalIDParam(ctx, "market")
	if err != nil {
		return nil, fail("%v", err)
	}
	varietyID, err := optionalIDParam(ctx, "variety")
	if err != nil {
		return nil, fail("%v", err)
	}

	return &aggregator.Request{
		ProductSlug: product,
		Selections:  selections,
		Granularity: granularity,
		Window:      window,
		Currency:    currency,
		Unit:        unit,
		PriceStage:  ctx.QueryParam("stage"),
		MarketType:  ctx.QueryParam("marketType"),
		MarketID:    marketID,
		VarietyID:   varietyID,
	}, nil
}

// optionalIDParam parses an optional numeric identifier query parameter,
// returning nil when the parameter is absent.
func optionalIDParam(ctx echo.Context, name string) (*uint, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s id %q", name, raw)
	}
	v := uint(id)
	return &v, nil
}

// parseWindow accepts either a year range (yearStart/yearEnd) or an explicit
// date range (startDate/endDate).
func parseWindow(ctx echo.Context) (datastore.TimeWindow, error) {
	startDate := ctx.QueryParam("startDate")
	endDate := ctx.QueryParam("endDate")
	if startDate != "" || endDate != "" {
		start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
		if err != nil {
			return datastore.TimeWindow{}, errors.Newf("invalid startDate %q", startDate).
				Component("api").Category(errors.CategoryValidation).Build()
		}
		end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
		if err != nil {
			return datastore.TimeWindow{}, errors.Newf("invalid endDate %q", endDate).
				Component("api").Category(errors.CategoryValidation).Build()
		}
		return datastore.TimeWindow{Start: start, End: end}, nil
	}

	yearStart, err := strconv.Atoi(ctx.QueryParam("yearStart"))
	if err != nil {
		return datastore.TimeWindow{}, errors.Newf("yearStart or startDate is required").
			Component("api").Category(errors.CategoryValidation).Build()
	}
	yearEnd, err := strconv.Atoi(ctx.QueryParam("yearEnd"))
	if err != nil {
		return datastore.TimeWindow{}, errors.Newf("yearEnd or endDate is required").
			Component("api").Category(errors.CategoryValidation).Build()
	}

	return datastore.TimeWindow{
		Start: time.Date(yearStart, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(yearEnd, time.December, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}
