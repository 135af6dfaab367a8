package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mealdrop/internal/auth"
)

func TestIssueToken(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator)

	payload := map[string]string{"user_id": "cust-1", "role": "customer"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected token")
	}
}

func TestIssueTokenInvalidRole(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator)

	payload := map[string]string{"user_id": "cust-1", "role": "superuser"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRoleMismatchIsForbidden(t *testing.T) {
	authenticator := auth.New("secret", time.Hour)
	handler := NewServer(nil, authenticator)

	token, _, err := authenticator.IssueToken("drv-1", "driver", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
