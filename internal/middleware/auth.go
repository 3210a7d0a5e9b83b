package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/rbac"
	"github.com/xcyber/portal/internal/utils"
)

type authCtxKey int

const (
	authKey authCtxKey = 7
	userKey authCtxKey = 8
)

type Claims struct {
	UID  string      `json:"uid"`
	Role models.Role `json:"role"`
	PID  string      `json:"pid,omitempty"`
	SID  string      `json:"sid"`
	jwt.RegisteredClaims
}

// SessionLoader resolves a session id to its user; nil means revoked.
type SessionLoader interface {
	Load(ctx context.Context, sessionID string) (*models.User, error)
}

func secret() []byte {
	return []byte(utils.SafeEnv("XCYBER_JWT_SECRET", "xcyber-dev-secret"))
}

func SignToken(uid string, role models.Role, providerID, sid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UID: uid, Role: role, PID: providerID, SID: sid, RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(ttl))}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

func parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return secret(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches claims, role and session user to the context when the
// bearer token is valid and its session still exists.
func WithAuth(sessions SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			c, err := parseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if sessions != nil {
				u, err := sessions.Load(ctx, c.SID)
				if err != nil {
					log.Printf("auth: load session: %v", err)
				}
				if u == nil {
					next.ServeHTTP(w, r)
					return
				}
				ctx = context.WithValue(ctx, userKey, u)
			}
			ctx = context.WithValue(ctx, authKey, c)
			ctx = rbac.WithRole(ctx, string(c.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(authKey).(*Claims); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(authKey).(*Claims)
	return c, ok
}

// UserFromContext returns the session user stored by WithAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}
