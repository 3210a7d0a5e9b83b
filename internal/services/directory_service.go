package services

import (
	"sort"
	"strings"

	"github.com/xcyber/portal/internal/models"
)

type DirectoryStore interface {
	ListUsers() ([]*models.User, error)
	GetUser(id string) (*models.User, error)
	GetProvider(id string) (*models.Provider, error)
	ListResponsesByProvider(providerID string) ([]*models.Response, error)
}

// DirectoryService backs the admin views of people and their answer sets.
type DirectoryService struct {
	store DirectoryStore
}

func NewDirectoryService(store DirectoryStore) *DirectoryService {
	return &DirectoryService{store: store}
}

// UserResponses is one user's answer set for a provider.
type UserResponses struct {
	User      *models.User       `json:"user"`
	Status    models.FormStatus  `json:"status"`
	Responses []*models.Response `json:"responses"`
}

// ListUsers returns users, optionally restricted to one role and to a
// case-insensitive name/email match, sorted by name then email.
func (s *DirectoryService) ListUsers(role models.Role, query string) ([]*models.User, error) {
	if role != "" && !role.Valid() {
		return nil, NewInvalidError("unknown role")
	}
	users, err := s.store.ListUsers()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []*models.User{}
	for _, u := range users {
		if role != "" && u.Role != role {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, u.Public())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// ProviderResponses groups a provider's responses by user.
func (s *DirectoryService) ProviderResponses(providerID string) ([]UserResponses, error) {
	p, err := s.store.GetProvider(providerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("provider not found")
	}
	rs, err := s.store.ListResponsesByProvider(providerID)
	if err != nil {
		return nil, err
	}
	byUser := map[string][]*models.Response{}
	order := []string{}
	for _, r := range rs {
		if _, ok := byUser[r.UserID]; !ok {
			order = append(order, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	out := make([]UserResponses, 0, len(order))
	for _, uid := range order {
		u, err := s.store.GetUser(uid)
		if err != nil {
			return nil, err
		}
		if u == nil {
			u = &models.User{ID: uid}
		}
		out = append(out, UserResponses{User: u.Public(), Status: statusOf(byUser[uid]), Responses: byUser[uid]})
	}
	return out, nil
}
