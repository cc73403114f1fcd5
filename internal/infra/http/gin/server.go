package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Window(c *gin.Context)
	Check(c *gin.Context)
	Search(c *gin.Context)
}

type ReservationHTTP interface {
	Create(c *gin.Context)
	GuestCreate(c *gin.Context)
	Get(c *gin.Context)
	Mine(c *gin.Context)
	Cancel(c *gin.Context)
	Complete(c *gin.Context)
}

type PaymentHTTP interface {
	Outcome(c *gin.Context)
}

type AdminHTTP interface {
	UpsertResource(c *gin.Context)
	AddBlocks(c *gin.Context)
	RemoveBlocks(c *gin.Context)
	SetPrices(c *gin.Context)
	ClearPrices(c *gin.Context)
}

type Handlers struct {
	Availability AvailabilityHTTP
	Reservation  ReservationHTTP
	Payment      PaymentHTTP
	Admin        AdminHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewRouter builds the gin engine with every route of h that is set.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", HeaderUserID, HeaderUserRole},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(GatewayPrincipal())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/resources/:id/availability", h.Availability.Window)
		api.GET("/resources/:id/check", h.Availability.Check)
		api.GET("/search", h.Availability.Search)
	}
	if h.Reservation != nil {
		api.POST("/reservations", h.Reservation.Create)
		api.POST("/guest/reservations", h.Reservation.GuestCreate)
		api.GET("/reservations/:id", h.Reservation.Get)
		api.POST("/reservations/:id/cancel", h.Reservation.Cancel)
		api.POST("/reservations/:id/complete", h.Reservation.Complete)
		api.GET("/me/reservations", h.Reservation.Mine)
	}
	if h.Payment != nil {
		api.POST("/payments/outcomes", h.Payment.Outcome)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/admin/resources")
		adminGroup.PUT("/:id", h.Admin.UpsertResource)
		adminGroup.POST("/:id/blocks", h.Admin.AddBlocks)
		adminGroup.DELETE("/:id/blocks", h.Admin.RemoveBlocks)
		adminGroup.PUT("/:id/prices", h.Admin.SetPrices)
		adminGroup.DELETE("/:id/prices", h.Admin.ClearPrices)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
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
