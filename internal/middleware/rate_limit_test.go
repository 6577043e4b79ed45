package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userRequest(userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest("POST", "/test", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		user := &models.User{ID: userID}
		req = req.WithContext(auth.WithUser(req.Context(), user, nil, nil))
	}
	return req
}

// TestRateLimitByUser_EnforcesLimit verifies the per-user budget returns 429 once exhausted
func TestRateLimitByUser_EnforcesLimit(t *testing.T) {
	handler := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 5})(okHandler())

	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, userRequest("user-limit-test", "10.0.0.1:1234"))
		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("user-limit-test", "10.0.0.1:1234"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if body := recorder.Body.String(); body != `{"error":"Rate limit exceeded"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

// TestRateLimitByUser_IsolatesUserBuckets verifies separate budgets per user
func TestRateLimitByUser_IsolatesUserBuckets(t *testing.T) {
	handler := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	// Same IP, distinct users
	for i := 0; i < 3; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, userRequest("user-a-isolation", "10.0.0.2:1234"))
		if recorder.Code != http.StatusOK {
			t.Errorf("user A request %d failed", i+1)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("user-b-isolation", "10.0.0.2:1234"))
	if recorder.Code != http.StatusOK {
		t.Errorf("user B should have an independent budget, got status %d", recorder.Code)
	}
}

// TestRateLimitByUser_FallsBackToIP verifies anonymous requests are keyed by IP
func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	handler := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	for i := 0; i < 2; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, userRequest("", "10.0.0.3:1234"))
		if recorder.Code != http.StatusOK {
			t.Errorf("anonymous request %d failed", i+1)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("", "10.0.0.3:1234"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected anonymous requests keyed by IP to hit the limit, got %d", recorder.Code)
	}

	// A different IP still gets through
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("", "10.0.0.4:1234"))
	if recorder.Code != http.StatusOK {
		t.Errorf("different IP should have an independent budget, got %d", recorder.Code)
	}
}

// TestRateLimitByIP_EnforcesLimit verifies the credential-endpoint limiter
func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("", "10.0.0.5:1234"))
	if recorder.Code != http.StatusOK {
		t.Errorf("first request failed with status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, userRequest("", "10.0.0.5:1234"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", recorder.Code)
	}
}
