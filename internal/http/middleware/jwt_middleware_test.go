package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sagewell/sagewell-bookings/pkg/auth"
)

const testSecret = "test-secret"

func protected(t *testing.T, wantSub int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r)
		if claims == nil || claims.Sub != wantSub {
			t.Errorf("claims = %+v, want sub %d", claims, wantSub)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePractitionerAcceptsToken(t *testing.T) {
	token, err := auth.NewAccessToken(3, "maya@example.com", "practitioner", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/practitioner/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	RequirePractitioner(testSecret)(protected(t, 3)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequirePractitionerRejectsRole(t *testing.T) {
	token, err := auth.NewAccessToken(8, "guest@example.com", "customer", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/practitioner/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	RequirePractitioner(testSecret)(protected(t, 8)).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRequirePractitionerRejectsMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/practitioner/bookings", nil)
	w := httptest.NewRecorder()
	RequirePractitioner(testSecret)(protected(t, 0)).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequirePractitionerRejectsGarbageToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/practitioner/bookings", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	RequirePractitioner(testSecret)(protected(t, 0)).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
