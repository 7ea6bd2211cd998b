package ginserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/catalog"
	"innkeep/internal/app/queries"
)

type AdminHTTP interface {
	UpsertAccommodation(c *gin.Context)
	BlockAccommodation(c *gin.Context)
	UnblockAccommodation(c *gin.Context)
	UpsertPeriod(c *gin.Context)
	UpsertPriceRule(c *gin.Context)
	OpenHold(c *gin.Context)
	CloseHold(c *gin.Context)
	ListHolds(c *gin.Context)
	ExportSnapshot(c *gin.Context)
}

type AdminHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type accommodationRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Capacity int    `json:"capacity"`
}

type blockRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
	From   string `json:"from"`
	Until  string `json:"until"`
}

type periodRequest struct {
	Name    string `json:"name"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Holiday bool   `json:"holiday"`
	MinStay int    `json:"min_stay"`
}

type priceRuleRequest struct {
	Category          string      `json:"category"`
	People            int         `json:"people"`
	PaymentMethod     string      `json:"payment_method"`
	PeriodID          string      `json:"period_id"`
	Nightly           json.Number `json:"nightly"`
	Currency          string      `json:"currency"`
	MinStay           int         `json:"min_stay"`
	IncludesBreakfast bool        `json:"includes_breakfast"`
}

type holdRequest struct {
	AccommodationID string `json:"accommodation_id"`
	Reason          string `json:"reason"`
	Reference       string `json:"reference"`
}

type closeHoldRequest struct {
	Reference string `json:"reference"`
}

type exportRequest struct {
	Key string `json:"key"`
}

func (h AdminHandler) UpsertAccommodation(c *gin.Context) {
	var req accommodationRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := catalog.UpsertAccommodationCommand{
		ID:       c.Param("id"),
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Capacity: req.Capacity,
		IdemKey:  idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.UpsertAccommodationCommand, *dto.AccommodationView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) BlockAccommodation(c *gin.Context) {
	var req blockRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := catalog.BlockAccommodationCommand{
		ID:      c.Param("id"),
		Reason:  strings.TrimSpace(req.Reason),
		Note:    strings.TrimSpace(req.Note),
		From:    strings.TrimSpace(req.From),
		Until:   strings.TrimSpace(req.Until),
		IdemKey: idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.BlockAccommodationCommand, *dto.AccommodationView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) UnblockAccommodation(c *gin.Context) {
	cmd := catalog.UnblockAccommodationCommand{ID: c.Param("id"), IdemKey: idempotencyKey(c)}
	view, err := commands.Dispatch[catalog.UnblockAccommodationCommand, *dto.AccommodationView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) UpsertPeriod(c *gin.Context) {
	var req periodRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := catalog.UpsertPeriodCommand{
		ID:      c.Param("id"),
		Name:    strings.TrimSpace(req.Name),
		Start:   strings.TrimSpace(req.Start),
		End:     strings.TrimSpace(req.End),
		Holiday: req.Holiday,
		MinStay: req.MinStay,
		IdemKey: idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.UpsertPeriodCommand, *dto.PeriodView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) UpsertPriceRule(c *gin.Context) {
	var req priceRuleRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := catalog.UpsertPriceRuleCommand{
		ID:                c.Param("id"),
		Category:          strings.TrimSpace(req.Category),
		People:            req.People,
		PaymentMethod:     strings.TrimSpace(req.PaymentMethod),
		PeriodID:          strings.TrimSpace(req.PeriodID),
		Nightly:           req.Nightly.String(),
		Currency:          strings.TrimSpace(req.Currency),
		MinStay:           req.MinStay,
		IncludesBreakfast: req.IncludesBreakfast,
		IdemKey:           idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.UpsertPriceRuleCommand, *dto.PriceRuleView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) OpenHold(c *gin.Context) {
	var req holdRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := catalog.OpenHoldCommand{
		AccommodationID: strings.TrimSpace(req.AccommodationID),
		Reason:          strings.TrimSpace(req.Reason),
		Reference:       strings.TrimSpace(req.Reference),
		IdemKey:         idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.OpenHoldCommand, *dto.HoldView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusCreated, view, err)
}

func (h AdminHandler) CloseHold(c *gin.Context) {
	var req closeHoldRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	cmd := catalog.CloseHoldCommand{
		HoldID:    c.Param("id"),
		Reference: strings.TrimSpace(req.Reference),
		IdemKey:   idempotencyKey(c),
	}
	view, err := commands.Dispatch[catalog.CloseHoldCommand, *dto.HoldView](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, view, err)
}

func (h AdminHandler) ListHolds(c *gin.Context) {
	result, err := queries.Ask[catalog.ListHoldsQuery, dto.HoldList](c.Request.Context(), h.Queries, catalog.ListHoldsQuery{})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) ExportSnapshot(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	cmd := catalog.ExportSnapshotCommand{ObjectKey: strings.TrimSpace(req.Key), IdemKey: idempotencyKey(c)}
	result, err := commands.Dispatch[catalog.ExportSnapshotCommand, *dto.SnapshotExport](c.Request.Context(), h.Commands, cmd)
	h.respond(c, http.StatusOK, result, err)
}

func (h AdminHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return false
	}
	return true
}

func (h AdminHandler) respond(c *gin.Context, status int, body any, err error) {
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(status, body)
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

var _ AdminHTTP = AdminHandler{}
