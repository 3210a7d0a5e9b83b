package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xcyber/portal/internal/models"
)

func newTestAuth(store AuthStore, sessions SessionStore) *AuthService {
	svc := NewAuthService(store, sessions, func(uid string, role models.Role, pid, sid string, ttl time.Duration) (string, error) {
		return "token:" + uid + ":" + string(role) + ":" + sid, nil
	})
	svc.now = func() time.Time { return time.Unix(0, 0).UTC() }
	n := 0
	svc.idGen = func(prefix string, _ int) string {
		n++
		return prefix + string(rune('0'+n))
	}
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	sessions := newStubSessions()
	svc := newTestAuth(store, sessions)

	res, err := svc.Register(ctx, RegisterRequest{Email: "user@example.com", Password: "Secret123", Name: "Ann"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.User.Role != models.RoleUser || res.User.Password != "" {
		t.Fatalf("unexpected session user: %+v", res.User)
	}
	if res.Token != "token:"+res.User.ID+":user:"+res.SessionID {
		t.Fatalf("unexpected token %q", res.Token)
	}
	if _, ok := sessions.m[res.SessionID]; !ok {
		t.Fatalf("session snapshot not saved")
	}

	if _, err = svc.Register(ctx, RegisterRequest{Email: "user@example.com", Password: "other"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate registration: got %v, want ErrEmailExists", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("users got %d, want 1", len(store.users))
	}

	loginRes, err := svc.Login(ctx, "user@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if loginRes.Token == "" || loginRes.SessionID == res.SessionID {
		t.Fatalf("expected a fresh session on login: %+v", loginRes)
	}
	if _, err := svc.Login(ctx, "user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "USER@example.com", "Secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("email match must be exact: got %v", err)
	}
}

func TestAuthEmailIsTrimmedThenExact(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	svc := newTestAuth(store, newStubSessions())

	res, err := svc.Register(ctx, RegisterRequest{Email: "  ann@example.com ", Password: "Secret123"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.User.Email != "ann@example.com" {
		t.Fatalf("stored email got %q, want trimmed", res.User.Email)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ann@example.com", Password: "x"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("trimmed duplicate: got %v, want ErrEmailExists", err)
	}
	if _, err := svc.Login(ctx, " ann@example.com", "Secret123"); err != nil {
		t.Fatalf("Login with padded email returned error: %v", err)
	}
	if _, err := svc.Login(ctx, "Ann@example.com", "Secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("case-changed email: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "ann@example.com", " Secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("padded password: got %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthAgentNeedsProvider(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.addProvider("P1", "Acme")
	svc := newTestAuth(store, newStubSessions())

	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "pw", Role: models.RoleAgent}); !IsCode(err, ErrorInvalid) {
		t.Fatalf("agent without provider: got %v, want invalid", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "pw", Role: models.RoleAgent, InsuranceProviderID: "P9"}); !IsCode(err, ErrorNotFound) {
		t.Fatalf("agent with unknown provider: got %v, want not_found", err)
	}
	res, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "pw", Role: models.RoleAgent, InsuranceProviderID: "P1"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.User.InsuranceProviderID != "P1" {
		t.Fatalf("agent provider got %q, want P1", res.User.InsuranceProviderID)
	}
	u, err := svc.Register(ctx, RegisterRequest{Email: "u@example.com", Password: "pw", Role: models.RoleUser, InsuranceProviderID: "P1"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.User.InsuranceProviderID != "" {
		t.Fatalf("non-agent kept provider %q", u.User.InsuranceProviderID)
	}
}

func TestAuthValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuth(newStubStore(), newStubSessions())

	if _, err := svc.Register(ctx, RegisterRequest{}); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "x@example.com", Password: "pw", Role: "root"}); !IsCode(err, ErrorInvalid) {
		t.Fatalf("unknown role: got %v, want invalid", err)
	}
	if _, err := svc.Login(ctx, "", ""); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected validation error on login, got %v", err)
	}
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuth(newStubStore(), newStubSessions())

	res, err := svc.Register(ctx, RegisterRequest{Email: "user@example.com", Password: "pw", Name: "Ann"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	me, err := svc.Me(ctx, res.SessionID)
	if err != nil || me.Email != "user@example.com" {
		t.Fatalf("Me got %+v, %v", me, err)
	}
	if err := svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := svc.Me(ctx, res.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Me after logout: got %v, want ErrSessionNotFound", err)
	}
}
