package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/catalog"
	searchapp "innkeep/internal/app/handlers/search"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/queries"
	svcsearch "innkeep/internal/app/services/search"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/shared/money"
	domaintariffs "innkeep/internal/domain/tariffs"
	"innkeep/internal/infra/config"
	"innkeep/internal/infra/obs"
	"innkeep/internal/infra/security"
)

type stubCommandBus struct {
	calls  []commands.Command
	ctxs   []context.Context
	result any
	err    error
}

func (b *stubCommandBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.calls = append(b.calls, cmd)
	b.ctxs = append(b.ctxs, ctx)
	return b.result, b.err
}

type stubQueryBus struct {
	calls  []queries.Query
	result any
	err    error
}

func (b *stubQueryBus) Ask(_ context.Context, q queries.Query) (any, error) {
	b.calls = append(b.calls, q)
	return b.result, b.err
}

const testToken = "s3cret-admin-token"

func newTestRouter(t *testing.T, cmds *stubCommandBus, qs *stubQueryBus) *gin.Engine {
	t.Helper()
	hasher := security.BcryptHasher{Cost: 4}
	hash, err := hasher.Hash(testToken)
	require.NoError(t, err)
	return NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Search:    SearchHandler{Queries: qs},
		Catalog:   CatalogHandler{Queries: qs},
		Admin:     AdminHandler{Commands: cmds, Queries: qs},
		AdminAuth: AdminAuth{Tokens: security.AdminTokens{Hash: hash, Hasher: hasher}}.Handle,
	})
}

func perform(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAvailabilityRejectsNonIntegerGuests(t *testing.T) {
	qs := &stubQueryBus{}
	router := newTestRouter(t, &stubCommandBus{}, qs)

	rec := perform(router, http.MethodGet, "/api/v1/availability?check_in=2024-02-01&guests=two", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, qs.calls)
}

func TestAvailabilityForwardsQueryParameters(t *testing.T) {
	qs := &stubQueryBus{result: dto.AvailabilitySearch{Items: []dto.AvailabilityItem{{AccommodationID: "101", PricePerNight: "300.00"}}}}
	router := newTestRouter(t, &stubCommandBus{}, qs)

	rec := perform(router, http.MethodGet, "/api/v1/availability?check_in=2024-02-01&check_out=2024-02-04&guests=2&payment_method=card", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, qs.calls, 1)
	query, ok := qs.calls[0].(searchapp.SearchAvailabilityQuery)
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", query.CheckIn)
	assert.Equal(t, "2024-02-04", query.CheckOut)
	assert.Equal(t, 2, query.Guests)
	assert.Equal(t, "card", query.PaymentMethod)

	body := decode(t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "300.00", items[0].(map[string]any)["price_per_night"])
}

func TestAvailabilityMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid request", svcsearch.ErrInvalidRequest, http.StatusBadRequest},
		{"data access", &svcsearch.DataAccessError{Op: "list accommodations", Err: errors.New("timeout")}, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qs := &stubQueryBus{err: tc.err}
			router := newTestRouter(t, &stubCommandBus{}, qs)
			rec := perform(router, http.MethodGet, "/api/v1/availability?check_in=2024-02-01&guests=2", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", decode(t, rec)["error"])
			}
		})
	}
}

func TestCatalogQueriesUseRequestFilters(t *testing.T) {
	qs := &stubQueryBus{result: dto.PriceRuleList{Items: []dto.PriceRuleView{}}}
	router := newTestRouter(t, &stubCommandBus{}, qs)

	rec := perform(router, http.MethodGet, "/api/v1/catalog/price-rules?category=luxo&period_id=carnaval", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, qs.calls, 1)
	assert.Equal(t, catalog.ListPriceRulesQuery{Category: "luxo", PeriodID: "carnaval"}, qs.calls[0])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	cmds := &stubCommandBus{}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	rec := perform(router, http.MethodPost, "/api/v1/admin/accommodations/101/unblock", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = perform(router, http.MethodPost, "/api/v1/admin/accommodations/101/unblock", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, cmds.calls)
}

func TestUpsertPriceRuleDispatchesAsAdmin(t *testing.T) {
	cmds := &stubCommandBus{result: &dto.PriceRuleView{ID: "r1", Nightly: "300.50"}}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	body := `{"category":"LUXO","people":2,"payment_method":"PIX","period_id":"baixa","nightly":300.50,"min_stay":2}`
	rec := perform(router, http.MethodPut, "/api/v1/admin/price-rules/r1", body, map[string]string{
		"Authorization":   "Bearer " + testToken,
		"Idempotency-Key": "req-42",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, cmds.calls, 1)
	cmd, ok := cmds.calls[0].(catalog.UpsertPriceRuleCommand)
	require.True(t, ok)
	assert.Equal(t, "r1", cmd.ID)
	assert.Equal(t, "300.50", cmd.Nightly)
	assert.Equal(t, 2, cmd.MinStay)
	assert.Equal(t, "req-42", cmd.IdemKey)

	principal, ok := security.PrincipalFrom(cmds.ctxs[0])
	require.True(t, ok)
	assert.Equal(t, security.RoleAdmin, principal.Role)
	assert.Equal(t, "300.50", decode(t, rec)["nightly"])
}

func TestOpenHoldReturnsCreated(t *testing.T) {
	cmds := &stubCommandBus{result: &dto.HoldView{ID: "h1", AccommodationID: "101", Active: true}}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	rec := perform(router, http.MethodPost, "/api/v1/admin/maintenance/holds", `{"accommodation_id":"101","reason":"leak"}`,
		map[string]string{"Authorization": "Bearer " + testToken})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "h1", decode(t, rec)["id"])
}

func TestAdminCommandConflictsMapTo409(t *testing.T) {
	cmds := &stubCommandBus{err: domaintariffs.ErrPeriodOverlap}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	body := `{"name":"Carnaval","start":"2024-02-09","end":"2024-02-14","min_stay":3}`
	rec := perform(router, http.MethodPut, "/api/v1/admin/periods/carnaval", body, map[string]string{"Authorization": "Bearer " + testToken})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminRejectsMalformedJSON(t *testing.T) {
	cmds := &stubCommandBus{}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	rec := perform(router, http.MethodPut, "/api/v1/admin/accommodations/101", `{"name":`, map[string]string{"Authorization": "Bearer " + testToken})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, cmds.calls)
}

func TestExportWithoutSnapshotStoreIsNotImplemented(t *testing.T) {
	cmds := &stubCommandBus{err: catalog.ErrSnapshotStoreMissing}
	router := newTestRouter(t, cmds, &stubQueryBus{})

	rec := perform(router, http.MethodPost, "/api/v1/admin/catalog/export", "", map[string]string{"Authorization": "Bearer " + testToken})

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSwaggerAndHealthRoutes(t *testing.T) {
	router := newTestRouter(t, &stubCommandBus{}, &stubQueryBus{})

	rec := perform(router, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.0.3", decode(t, rec)["openapi"])
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = perform(router, http.MethodGet, "/swagger/doc.json", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = perform(router, http.MethodGet, "/swagger", "", nil)
	assert.Contains(t, rec.Body.String(), swaggerSpecPath)

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/readyz", "", nil).Code)
}

func TestStatusForPrefersDataAccessOverWrappedSentinels(t *testing.T) {
	corrupt := &svcsearch.DataAccessError{Op: "price accommodation 101", Err: fmt.Errorf("pricing: %w", money.ErrInvalidCurrency)}
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(corrupt))
	assert.Equal(t, http.StatusBadRequest, statusFor(money.ErrInvalidCurrency))
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("retry exhausted: %w", uow.ErrConflict)))
	assert.Equal(t, http.StatusConflict, statusFor(middleware.ErrIdempotencyConflict))
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
}
