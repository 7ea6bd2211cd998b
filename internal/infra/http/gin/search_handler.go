package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/dto"
	searchapp "innkeep/internal/app/handlers/search"
	"innkeep/internal/app/queries"
	svcsearch "innkeep/internal/app/services/search"
)

type SearchHTTP interface {
	Availability(c *gin.Context)
}

type SearchHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// Availability serves GET /availability?check_in=&check_out=&guests=&payment_method=.
func (h SearchHandler) Availability(c *gin.Context) {
	guests, err := parseGuests(c.Query("guests"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	query := searchapp.SearchAvailabilityQuery{
		CheckIn:       strings.TrimSpace(c.Query("check_in")),
		CheckOut:      strings.TrimSpace(c.Query("check_out")),
		Guests:        guests,
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
	}
	result, err := queries.Ask[searchapp.SearchAvailabilityQuery, dto.AvailabilitySearch](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseGuests(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: guests is required", svcsearch.ErrInvalidRequest)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: guests must be an integer", svcsearch.ErrInvalidRequest)
	}
	return n, nil
}

var _ SearchHTTP = SearchHandler{}
