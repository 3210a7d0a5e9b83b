package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/rbac"
)

type fakeSessions map[string]*models.User

func (f fakeSessions) Load(_ context.Context, sid string) (*models.User, error) {
	return f[sid], nil
}

func serveWith(t *testing.T, sessions SessionLoader, token string) (int, string) {
	t.Helper()
	var role string
	h := WithAuth(sessions)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
		if _, ok := UserFromContext(r.Context()); !ok {
			t.Error("session user missing from context")
		}
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code, role
}

func TestWithAuth(t *testing.T) {
	t.Setenv("XCYBER_JWT_SECRET", "test-secret")
	sessions := fakeSessions{"s1": {ID: "u1", Role: models.RoleAgent}}
	tok, err := SignToken("u1", models.RoleAgent, "p1", "s1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if code, role := serveWith(t, sessions, tok); code != http.StatusOK || role != "agent" {
		t.Fatalf("got %d role %q, want 200 agent", code, role)
	}
	if code, _ := serveWith(t, sessions, ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want 401", code)
	}
	if code, _ := serveWith(t, sessions, tok+"x"); code != http.StatusUnauthorized {
		t.Fatalf("tampered token: got %d, want 401", code)
	}
	delete(sessions, "s1")
	if code, _ := serveWith(t, sessions, tok); code != http.StatusUnauthorized {
		t.Fatalf("revoked session: got %d, want 401", code)
	}
}

func TestExpiredToken(t *testing.T) {
	tok, err := SignToken("u1", models.RoleUser, "", "s1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code, _ := serveWith(t, fakeSessions{"s1": {ID: "u1"}}, tok); code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", code)
	}
}

func TestClaimsRoundTrip(t *testing.T) {
	tok, _ := SignToken("u9", models.RoleUser, "", "s9", time.Hour)
	c, err := parseToken(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UID != "u9" || c.SID != "s9" || c.Role != models.RoleUser {
		t.Fatalf("claims got %+v", c)
	}
}

func TestLocaleMiddleware(t *testing.T) {
	var got string
	h := LocaleMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/?lang=zh-TW", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "zh" {
		t.Fatalf("got %q, want zh", got)
	}
}
