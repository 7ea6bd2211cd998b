package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"innkeep/internal/infra/config"
	"innkeep/internal/infra/obs"
)

type Handlers struct {
	Search    SearchHTTP
	Catalog   CatalogHTTP
	Admin     AdminHTTP
	AdminAuth gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(obsMW.RequestID())
	router.Use(obsMW.Recovery())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Search != nil {
		api.GET("/availability", h.Search.Availability)
	}
	if h.Catalog != nil {
		api.GET("/catalog/accommodations", h.Catalog.Accommodations)
		api.GET("/catalog/periods", h.Catalog.Periods)
		api.GET("/catalog/price-rules", h.Catalog.PriceRules)
		api.GET("/periods/resolve", h.Catalog.ResolvePeriod)
		api.GET("/quotes", h.Catalog.RecentQuotes)
	}
	if h.Admin != nil {
		admin := api.Group("/admin")
		if h.AdminAuth != nil {
			admin.Use(h.AdminAuth)
		}
		admin.PUT("/accommodations/:id", h.Admin.UpsertAccommodation)
		admin.POST("/accommodations/:id/block", h.Admin.BlockAccommodation)
		admin.POST("/accommodations/:id/unblock", h.Admin.UnblockAccommodation)
		admin.PUT("/periods/:id", h.Admin.UpsertPeriod)
		admin.PUT("/price-rules/:id", h.Admin.UpsertPriceRule)
		admin.GET("/maintenance/holds", h.Admin.ListHolds)
		admin.POST("/maintenance/holds", h.Admin.OpenHold)
		admin.POST("/maintenance/holds/:id/close", h.Admin.CloseHold)
		admin.POST("/catalog/export", h.Admin.ExportSnapshot)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
