package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xcyber/portal/internal/models"
)

type AuthStore interface {
	FindUserByEmail(email string) (*models.User, error)
	GetProvider(id string) (*models.Provider, error)
	AddUser(u *models.User) error
}

// SessionStore keeps the projected user of each signed-in session.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, u *models.User, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*models.User, error)
	Delete(ctx context.Context, sessionID string) error
}

// TokenSigner issues a bearer token bound to a session.
type TokenSigner func(uid string, role models.Role, providerID, sid string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	sessions  SessionStore
	now       func() time.Time
	idGen     func(prefix string, n int) string
	signToken TokenSigner
	tokenTTL  time.Duration
	hashCost  int
}

type AuthResult struct {
	Token     string       `json:"token"`
	SessionID string       `json:"session_id"`
	User      *models.User `json:"user"`
}

type RegisterRequest struct {
	Email               string      `json:"email" validate:"required,email"`
	Password            string      `json:"password" validate:"required"`
	Name                string      `json:"name"`
	Phone               string      `json:"phone"`
	Role                models.Role `json:"role" validate:"omitempty,oneof=admin agent user"`
	InsuranceProviderID string      `json:"insurance_provider_id"`
}

func NewAuthService(store AuthStore, sessions SessionStore, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		sessions:  sessions,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func(prefix string, n int) string { return prefix + shortID(n) },
		signToken: signer,
		tokenTTL:  24 * time.Hour,
		hashCost:  bcrypt.DefaultCost,
	}
}

// SetTokenTTL overrides the lifetime of tokens and sessions.
func (s *AuthService) SetTokenTTL(ttl time.Duration) {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Register adds a user and signs them in. The email is trimmed of surrounding
// whitespace, as in Login, then matched exactly; a duplicate is a conflict.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.Email == "" || strings.TrimSpace(req.Password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if err := validateStruct("registration", req); err != nil {
		return nil, err
	}
	if req.Role == models.RoleAgent {
		if req.InsuranceProviderID == "" {
			return nil, NewInvalidError("agents must select an insurance provider")
		}
		p, err := s.store.GetProvider(req.InsuranceProviderID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, NewNotFoundError("provider not found")
		}
	} else {
		req.InsuranceProviderID = ""
	}
	existing, err := s.store.FindUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:                  s.idGen("u", 8),
		Email:               req.Email,
		PassHash:            hash,
		Name:                req.Name,
		Phone:               req.Phone,
		Role:                req.Role,
		InsuranceProviderID: req.InsuranceProviderID,
		CreatedAt:           s.now(),
	}
	if err := s.store.AddUser(u); err != nil {
		return nil, err
	}
	return s.begin(ctx, u)
}

// Login matches the trimmed email exactly (case-sensitive) and the password
// as given.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.begin(ctx, u)
}

func (s *AuthService) begin(ctx context.Context, u *models.User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	sid := s.idGen("s", 16)
	pub := u.Public()
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, sid, pub, s.tokenTTL); err != nil {
			return nil, err
		}
	}
	token, err := s.signToken(u.ID, u.Role, u.InsuranceProviderID, sid, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, SessionID: sid, User: pub}, nil
}

// Logout clears the session snapshot; tokens bound to it stop working.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" || s.sessions == nil {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Me restores the signed-in user from the session snapshot.
func (s *AuthService) Me(ctx context.Context, sessionID string) (*models.User, error) {
	if sessionID == "" || s.sessions == nil {
		return nil, ErrSessionNotFound
	}
	u, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrSessionNotFound
	}
	return u, nil
}
