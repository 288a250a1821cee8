package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/duzelt/duzelt-backend/pkg/auth"
	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

func identityConfig() config.IdentityConfig {
	return config.IdentityConfig{JWTSecret: "unit-test-secret"}
}

func authHandler(t *testing.T, cfg config.IdentityConfig, captured *struct{ userID, email string }) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	return Auth(cfg, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.userID = UserIDFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthSeedsContextFromValidToken(t *testing.T) {
	cfg := identityConfig()
	token, err := auth.MintIdentityToken(cfg, time.Now().UTC(), "user-1", "aysel@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var captured struct{ userID, email string }
	handler := authHandler(t, cfg, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.userID != "user-1" || captured.email != "aysel@example.com" {
		t.Fatalf("unexpected context values %+v", captured)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	var captured struct{ userID, email string }
	handler := authHandler(t, identityConfig(), &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	cfg := identityConfig()
	other := cfg
	other.JWTSecret = "different-secret"
	token, err := auth.MintIdentityToken(other, time.Now().UTC(), "user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var captured struct{ userID, email string }
	handler := authHandler(t, cfg, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if captured.userID != "" {
		t.Fatal("handler must not run on invalid token")
	}
}
