package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/catalog"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
)

type CatalogHTTP interface {
	Accommodations(c *gin.Context)
	Periods(c *gin.Context)
	PriceRules(c *gin.Context)
	ResolvePeriod(c *gin.Context)
	RecentQuotes(c *gin.Context)
}

// CatalogHandler exposes the read side of the catalog.
type CatalogHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h CatalogHandler) Accommodations(c *gin.Context) {
	includeBlocked, _ := strconv.ParseBool(c.DefaultQuery("include_blocked", "true"))
	query := catalog.ListAccommodationsQuery{
		MinCapacity:    parseInt(c.Query("min_capacity")),
		IncludeBlocked: includeBlocked,
	}
	result, err := queries.Ask[catalog.ListAccommodationsQuery, dto.AccommodationList](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) Periods(c *gin.Context) {
	result, err := queries.Ask[catalog.ListPeriodsQuery, dto.PeriodList](c.Request.Context(), h.Queries, catalog.ListPeriodsQuery{})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) PriceRules(c *gin.Context) {
	query := catalog.ListPriceRulesQuery{
		Category: strings.TrimSpace(c.Query("category")),
		PeriodID: strings.TrimSpace(c.Query("period_id")),
	}
	result, err := queries.Ask[catalog.ListPriceRulesQuery, dto.PriceRuleList](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) ResolvePeriod(c *gin.Context) {
	query := catalog.ResolvePeriodQuery{Date: strings.TrimSpace(c.Query("date"))}
	result, err := queries.Ask[catalog.ResolvePeriodQuery, dto.ResolvedPeriod](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) RecentQuotes(c *gin.Context) {
	query := catalog.RecentQuotesQuery{
		Date:  strings.TrimSpace(c.Query("date")),
		Limit: parseInt(c.Query("limit")),
	}
	entries, err := queries.Ask[catalog.RecentQuotesQuery, []policies.QuoteEntry](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

func parseInt(raw string) int {
	value, _ := strconv.Atoi(strings.TrimSpace(raw))
	if value < 0 {
		return 0
	}
	return value
}

var _ CatalogHTTP = CatalogHandler{}
