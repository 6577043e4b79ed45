package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRFProtection(t *testing.T) {
	protected := CSRFProtection(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("safe methods pass without a token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/notes", nil)
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("matching token passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/notes", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "token123"})
		req.Header.Set("X-CSRF-Token", "token123")
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/notes", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "token123"})
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("mismatched token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/notes", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "token123"})
		req.Header.Set("X-CSRF-Token", "forged")
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})
}

func TestEnsureCSRFToken(t *testing.T) {
	handler := EnsureCSRFToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var issued *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CSRFCookieName {
			issued = c
		}
	}
	if issued == nil || issued.Value == "" {
		t.Fatal("expected a CSRF cookie to be issued")
	}

	// A client that already holds a token keeps it
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: issued.Value})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if len(w.Result().Cookies()) != 0 {
		t.Error("expected no new cookie for a client with an existing token")
	}
}
