package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/genstudio/internal/model"
)

func TestRouterIntegration_ProtectedRoutes(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "router-session" {
				return &model.Session{ID: id, UserID: "user-router", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
	}
	rl := NewRateLimiter(testRateConfig(100, 1))
	defer rl.Stop()

	csrfConfig := CSRFConfig{}
	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(repo))
		r.Use(NewCSRFMiddleware(csrfConfig))
		r.Use(rl.GeneralMiddleware())

		r.Get("/api/image/results", func(w http.ResponseWriter, r *http.Request) {
			sessionID, _ := SessionIDFromContext(r.Context())
			WriteJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
		})
		r.With(rl.GenerationMiddleware()).Post("/api/image/generate", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})

	newReq := func(method, path string, session, csrf string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		if session != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})
		}
		if csrf != "" {
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrf})
			req.Header.Set(csrfHeaderName, csrf)
		}
		return req
	}

	t.Run("csrf token endpoint needs no session", func(t *testing.T) {
		if w := serve(r, newReq(http.MethodGet, "/api/csrf-token", "", "")); w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("GET with session", func(t *testing.T) {
		w := serve(r, newReq(http.MethodGet, "/api/image/results", "router-session", ""))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["session_id"] != "router-session" {
			t.Errorf("session_id = %q", body["session_id"])
		}
	})

	t.Run("session checked before csrf", func(t *testing.T) {
		if w := serve(r, newReq(http.MethodPost, "/api/image/generate", "", "")); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("POST without csrf", func(t *testing.T) {
		if w := serve(r, newReq(http.MethodPost, "/api/image/generate", "router-session", "")); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("generation limit", func(t *testing.T) {
		if w := serve(r, newReq(http.MethodPost, "/api/image/generate", "router-session", "tok")); w.Code != http.StatusAccepted {
			t.Fatalf("first: status = %d", w.Code)
		}
		if w := serve(r, newReq(http.MethodPost, "/api/image/generate", "router-session", "tok")); w.Code != http.StatusTooManyRequests {
			t.Errorf("second: status = %d, want 429", w.Code)
		}
	})
}
