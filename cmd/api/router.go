package api

import (
	"net/http"

	"horajudaica-backend/internal/dispatch"
	"horajudaica-backend/internal/subscription/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, subscriptionHandler *delivery.SubscriptionHandler, dispatchJob *dispatch.Job) {
	api := r.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Subscription routes
		api.POST("/subscriptions", subscriptionHandler.Subscribe)
		api.DELETE("/subscriptions", subscriptionHandler.Unsubscribe)

		// Manual trigger for the daily dispatch; returns the same status
		// payload a scheduled run logs.
		api.POST("/dispatch/run", func(c *gin.Context) {
			msg, err := dispatchJob.Run(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send emails"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": msg})
		})
	}
}
