package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"horajudaica-backend/internal/subscription/usecase"
	"horajudaica-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubCoordinator returns canned errors and records the requests it saw.
type stubCoordinator struct {
	subscribeErr   error
	unsubscribeErr error

	subscribeCalls   []usecase.SubscribeRequest
	unsubscribeCalls []usecase.UnsubscribeRequest
}

func (s *stubCoordinator) Subscribe(_ context.Context, req usecase.SubscribeRequest) error {
	s.subscribeCalls = append(s.subscribeCalls, req)
	return s.subscribeErr
}

func (s *stubCoordinator) Unsubscribe(_ context.Context, req usecase.UnsubscribeRequest) error {
	s.unsubscribeCalls = append(s.unsubscribeCalls, req)
	return s.unsubscribeErr
}

func setupRouter(coord usecase.SubscriptionCoordinator, limiter *ratelimit.Limiter) *gin.Engine {
	if limiter == nil {
		limiter = ratelimit.New(time.Millisecond, 100)
	}
	h := NewSubscriptionHandler(coord, limiter, nil)
	r := gin.New()
	r.POST("/api/subscriptions", h.Subscribe)
	r.DELETE("/api/subscriptions", h.Unsubscribe)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscribeOK(t *testing.T) {
	coord := &stubCoordinator{}
	r := setupRouter(coord, nil)

	w := doJSON(r, http.MethodPost, "/api/subscriptions", `{"subscriptionType":"omer-count","userEmail":"a@b.com"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	require.Len(t, coord.subscribeCalls, 1)
	assert.Equal(t, "a@b.com", coord.subscribeCalls[0].Email)
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"subscriptionType":`},
		{"missing email", `{"subscriptionType":"omer-count"}`},
		{"bad email", `{"subscriptionType":"omer-count","userEmail":"not-an-email"}`},
		{"unknown topic", `{"subscriptionType":"lottery-numbers","userEmail":"a@b.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &stubCoordinator{}
			r := setupRouter(coord, nil)

			w := doJSON(r, http.MethodPost, "/api/subscriptions", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Empty(t, coord.subscribeCalls, "no side effects on validation failure")
		})
	}
}

func TestSubscribeConflict(t *testing.T) {
	coord := &stubCoordinator{subscribeErr: usecase.ErrAlreadySubscribed}
	r := setupRouter(coord, nil)

	w := doJSON(r, http.MethodPost, "/api/subscriptions", `{"subscriptionType":"omer-count","userEmail":"a@b.com"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already subscribed")
}

func TestSubscribeUpstreamFailure(t *testing.T) {
	coord := &stubCoordinator{subscribeErr: context.DeadlineExceeded}
	r := setupRouter(coord, nil)

	w := doJSON(r, http.MethodPost, "/api/subscriptions", `{"subscriptionType":"omer-count","userEmail":"a@b.com"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// The client gets a generic message, never the upstream detail.
	assert.NotContains(t, w.Body.String(), "deadline")
}

func TestSubscribeRateLimited(t *testing.T) {
	coord := &stubCoordinator{}
	limiter := ratelimit.New(10*time.Minute, 2)
	r := setupRouter(coord, limiter)

	body := `{"subscriptionType":"omer-count","userEmail":"a@b.com"}`
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/subscriptions", body).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/subscriptions", body).Code)

	w := doJSON(r, http.MethodPost, "/api/subscriptions", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Len(t, coord.subscribeCalls, 2)
}

func TestUnsubscribeOK(t *testing.T) {
	coord := &stubCoordinator{}
	r := setupRouter(coord, nil)

	w := doJSON(r, http.MethodDelete, "/api/subscriptions", `{"subscriptionType":"omer-count","oneSignalSubscriptionId":"os-sub-1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, coord.unsubscribeCalls, 1)
	assert.Equal(t, "os-sub-1", coord.unsubscribeCalls[0].OneSignalSubscriptionID)
}

func TestUnsubscribeErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", usecase.ErrSubscriptionNotFound, http.StatusNotFound},
		{"already cancelled", usecase.ErrAlreadyUnsubscribed, http.StatusConflict},
		{"upstream failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &stubCoordinator{unsubscribeErr: tt.err}
			r := setupRouter(coord, nil)

			w := doJSON(r, http.MethodDelete, "/api/subscriptions", `{"subscriptionType":"omer-count","oneSignalSubscriptionId":"os-sub-1"}`)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	coord := &stubCoordinator{}
	r := setupRouter(coord, nil)

	w := doJSON(r, http.MethodDelete, "/api/subscriptions", `{"subscriptionType":"omer-count","oneSignalSubscriptionId":""}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, coord.unsubscribeCalls)
}
