package api

import (
	"horajudaica-backend/internal/dispatch"
	"horajudaica-backend/internal/subscription/delivery"
	"horajudaica-backend/internal/subscription/usecase"
	"horajudaica-backend/pkg/geo"
	"horajudaica-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	subscriptionHandler *delivery.SubscriptionHandler
	dispatchJob         *dispatch.Job
}

func NewHandler(coordinator usecase.SubscriptionCoordinator, dispatchJob *dispatch.Job, limiter *ratelimit.Limiter, geoClient *geo.Client) *Handler {
	return &Handler{
		subscriptionHandler: delivery.NewSubscriptionHandler(coordinator, limiter, geoClient),
		dispatchJob:         dispatchJob,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.subscriptionHandler, h.dispatchJob)

	return r.Run(addr)
}
