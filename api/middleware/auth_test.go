package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/lumicrm/payments-backend/pkg/auth"
	"github.com/lumicrm/payments-backend/pkg/config"
	"github.com/lumicrm/payments-backend/pkg/logger"
)

func authTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "middleware-test-secret",
		Issuer:            "payments-test",
		ExpirationMinutes: 15,
	}
}

func TestAuthRejectsMissingCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	handler := Auth(authTestConfig(), logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	handler := Auth(authTestConfig(), logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthSeedsContextFromClaims(t *testing.T) {
	cfg := authTestConfig()
	logg := logger.New(logger.Options{ServiceName: "test"})
	userID := uuid.New()
	orgID := uuid.New()

	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:         userID,
		OrganisationID: orgID,
		Role:           "operator",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var seenUser, seenOrg, seenRole string
	handler := Auth(cfg, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		seenOrg = OrganisationIDFromContext(r.Context())
		seenRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if seenUser != userID.String() || seenOrg != orgID.String() || seenRole != "operator" {
		t.Fatalf("claims not seeded: user=%s org=%s role=%s", seenUser, seenOrg, seenRole)
	}
}
