package delivery

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"horajudaica-backend/internal/subscription/domain"
	"horajudaica-backend/internal/subscription/usecase"
	"horajudaica-backend/pkg/geo"
	"horajudaica-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler handles subscription-related HTTP requests
type SubscriptionHandler struct {
	coordinator usecase.SubscriptionCoordinator
	limiter     *ratelimit.Limiter
	geoClient   *geo.Client // nil when geo lookups are disabled
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(coordinator usecase.SubscriptionCoordinator, limiter *ratelimit.Limiter, geoClient *geo.Client) *SubscriptionHandler {
	return &SubscriptionHandler{
		coordinator: coordinator,
		limiter:     limiter,
		geoClient:   geoClient,
	}
}

// SubscribeRequest represents the request body for subscribing
type SubscribeRequest struct {
	SubscriptionType string `json:"subscriptionType" binding:"required"`
	UserEmail        string `json:"userEmail" binding:"required,email"`
}

// UnsubscribeRequest represents the request body for unsubscribing
type UnsubscribeRequest struct {
	SubscriptionType        string `json:"subscriptionType" binding:"required"`
	OneSignalSubscriptionID string `json:"oneSignalSubscriptionId" binding:"required"`
}

// Subscribe creates or reactivates a subscription
// POST /api/subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Invalid request body."})
		return
	}

	subType, err := domain.ParseType(req.SubscriptionType)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Invalid request body."})
		return
	}

	ip := c.ClientIP()
	if allowed, retryAfter := h.limiter.Allow(ip); !allowed {
		seconds := int(retryAfter.Seconds()) + 1
		c.Header("Retry-After", fmt.Sprintf("%d", seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": fmt.Sprintf("You subscribed recently. Try again in %d seconds.", seconds),
		})
		return
	}

	// Best-effort locale hints; failure never blocks the subscribe.
	var geoData *geo.Data
	if h.geoClient != nil && ip != "" {
		geoData, err = h.geoClient.Lookup(c.Request.Context(), ip)
		if err != nil {
			log.Printf("[Subscriptions] Geo lookup failed for %s: %v", ip, err)
			geoData = nil
		}
	}

	err = h.coordinator.Subscribe(c.Request.Context(), usecase.SubscribeRequest{
		Type:  subType,
		Email: req.UserEmail,
		Geo:   geoData,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrAlreadySubscribed) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Email already subscribed."})
			return
		}
		log.Printf("[Subscriptions] Subscribe failed for %s: %v", req.UserEmail, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to subscribe."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unsubscribe soft-cancels a subscription
// DELETE /api/subscriptions
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Invalid request body."})
		return
	}

	subType, err := domain.ParseType(req.SubscriptionType)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Invalid request body."})
		return
	}

	err = h.coordinator.Unsubscribe(c.Request.Context(), usecase.UnsubscribeRequest{
		Type:                    subType,
		OneSignalSubscriptionID: req.OneSignalSubscriptionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrSubscriptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Subscription not found."})
		case errors.Is(err, usecase.ErrAlreadyUnsubscribed):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Subscription already cancelled."})
		default:
			log.Printf("[Subscriptions] Unsubscribe failed for %s: %v", req.OneSignalSubscriptionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to unsubscribe."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
