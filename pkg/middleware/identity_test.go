package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractIdentity(t *testing.T) {
	var got Identity
	handler := ExtractIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserRole, RoleAdmin)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.UserID != "user-1" || got.Role != RoleAdmin {
		t.Errorf("unexpected identity: %+v", got)
	}
	if !got.IsAdmin() {
		t.Error("expected admin identity")
	}
}

func TestExtractIdentity_MissingHeaders(t *testing.T) {
	var got Identity
	handler := ExtractIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got.UserID != "" || got.Role != "" {
		t.Errorf("expected empty identity, got %+v", got)
	}
	if got.IsAdmin() {
		t.Error("empty identity must not be admin")
	}
}

func TestIdentityFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := IdentityFromContext(req.Context()); id != (Identity{}) {
		t.Errorf("expected zero identity, got %+v", id)
	}
}
