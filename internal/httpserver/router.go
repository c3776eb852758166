package httpserver

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnstore/internal/checkout"
	"learnstore/internal/domain"
	"learnstore/internal/repository/paymentresponse"
	basketsvc "learnstore/internal/service/basket"
)

type siteRepo interface {
	GetByKey(ctx context.Context, key string) (*domain.Site, error)
}

type basketService interface {
	AddItems(ctx context.Context, site domain.Site, user domain.User, in basketsvc.AddInput) (*domain.Basket, error)
	Get(ctx context.Context, site domain.Site, user domain.User, id string) (*domain.Basket, error)
	ChangeQuantity(ctx context.Context, site domain.Site, user domain.User, basketID string, in basketsvc.ChangeQuantityInput) (*domain.Basket, error)
}

type checkoutPipeline interface {
	Place(ctx context.Context, req checkout.Request) checkout.Outcome
}

type auditLog interface {
	List(ctx context.Context, filter paymentresponse.Filter) ([]domain.PaymentProcessorResponse, error)
}

type tracker interface {
	TrackSilently(ctx context.Context, site domain.Site, user domain.User, name string, properties map[string]any)
}

// Deps are the collaborators of the API handlers.
type Deps struct {
	SiteRepo    siteRepo
	BasketSvc   basketService
	Checkout    checkoutPipeline
	Audit       auditLog
	Tracker     tracker
	CORSOrigins []string
	Now         func() time.Time
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.SiteRepo == nil || deps.BasketSvc == nil || deps.Checkout == nil || deps.Audit == nil {
		return nil, errors.New("httpserver: missing dependency")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", userHeader, emailHeader, rolesHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, logger))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/sites/:siteKey/api/v1", siteMiddleware(deps.SiteRepo))

	buyer := api.Group("", userMiddleware())
	buyer.GET("/basket/add", h.addItems)
	buyer.GET("/baskets/:basketID", h.getBasket)
	buyer.POST("/baskets/:basketID/lines", h.changeQuantity)
	buyer.POST("/checkout", h.checkout)

	staff := api.Group("", userMiddleware(), staffMiddleware())
	staff.GET("/payment-responses", h.listPaymentResponses)

	return router, nil
}
