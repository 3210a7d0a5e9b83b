package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xcyber/portal/internal/models"
)

// AnalyticsStore is the read-only view the derived statistics are computed from.
type AnalyticsStore interface {
	ListProviders() ([]*models.Provider, error)
	GetProvider(id string) (*models.Provider, error)
	ListSections(providerID string) ([]*models.Section, error)
	ListQuestions(sectionID string) ([]*models.Question, error)
	ListResponses() ([]*models.Response, error)
	ListResponsesByProvider(providerID string) ([]*models.Response, error)
	ListResponsesByUser(userID, providerID string) ([]*models.Response, error)
	ListUsers() ([]*models.User, error)
	GetUser(id string) (*models.User, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type ProviderStat struct {
	ProviderID           string `json:"provider_id"`
	ProviderName         string `json:"provider_name"`
	TotalUsers           int    `json:"total_users"`
	DraftCount           int    `json:"draft_count"`
	SubmittedCount       int    `json:"submitted_count"`
	CompletionPercentage int    `json:"completion_percentage"`
}

type AdminOverview struct {
	TotalUsers         int            `json:"total_users"`
	TotalAgents        int            `json:"total_agents"`
	TotalResponses     int            `json:"total_responses"`
	SubmittedResponses int            `json:"submitted_responses"`
	DraftResponses     int            `json:"draft_responses"`
	Providers          []ProviderStat `json:"providers"`
}

type AgentOverview struct {
	Provider        *models.Provider   `json:"provider"`
	TotalClients    int                `json:"total_clients"`
	DraftUsers      int                `json:"draft_users"`
	SubmittedUsers  int                `json:"submitted_users"`
	TotalSections   int                `json:"total_sections"`
	TotalQuestions  int                `json:"total_questions"`
	RecentResponses []*models.Response `json:"recent_responses"`
}

type AgentClient struct {
	User         *models.User `json:"user"`
	HasSubmitted bool         `json:"has_submitted"`
	HasDraft     bool         `json:"has_draft"`
	Responses    int          `json:"responses"`
	LastActivity time.Time    `json:"last_activity"`
}

type DashboardEntry struct {
	Provider *models.Provider  `json:"provider"`
	Status   models.FormStatus `json:"status"`
}

const recentResponsesLimit = 5

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// userFlags tracks, per user, whether any response is submitted or unsubmitted.
type userFlags struct {
	anySubmitted   bool
	anyUnsubmitted bool
	count          int
	last           time.Time
}

func flagsByUser(rs []*models.Response) (map[string]*userFlags, []string) {
	out := map[string]*userFlags{}
	order := []string{}
	for _, r := range rs {
		f := out[r.UserID]
		if f == nil {
			f = &userFlags{}
			out[r.UserID] = f
			order = append(order, r.UserID)
		}
		f.count++
		if r.IsSubmitted {
			f.anySubmitted = true
		} else {
			f.anyUnsubmitted = true
		}
		if r.UpdatedAt.After(f.last) {
			f.last = r.UpdatedAt
		}
	}
	return out, order
}

// completion is round(submitted/total*100), 0 when total is 0.
func completion(submitted, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(submitted) / float64(total) * 100))
}

func buildProviderStat(p *models.Provider, rs []*models.Response) ProviderStat {
	flags, _ := flagsByUser(rs)
	st := ProviderStat{ProviderID: p.ID, ProviderName: p.Name, TotalUsers: len(flags)}
	for _, f := range flags {
		if f.anySubmitted {
			st.SubmittedCount++
		}
		if f.anyUnsubmitted {
			st.DraftCount++
		}
	}
	st.CompletionPercentage = completion(st.SubmittedCount, st.TotalUsers)
	return st
}

// ProviderStats computes per-provider user counts. Submitted and draft are
// independent: a user with both kinds of response counts in both.
func (s *AnalyticsService) ProviderStats() ([]ProviderStat, error) {
	ps, err := s.store.ListProviders()
	if err != nil {
		return nil, err
	}
	out := make([]ProviderStat, 0, len(ps))
	for _, p := range ps {
		rs, err := s.store.ListResponsesByProvider(p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, buildProviderStat(p, rs))
	}
	return out, nil
}

func (s *AnalyticsService) AdminOverview() (*AdminOverview, error) {
	users, err := s.store.ListUsers()
	if err != nil {
		return nil, err
	}
	rs, err := s.store.ListResponses()
	if err != nil {
		return nil, err
	}
	stats, err := s.ProviderStats()
	if err != nil {
		return nil, err
	}
	ov := &AdminOverview{TotalResponses: len(rs), Providers: stats}
	for _, u := range users {
		switch u.Role {
		case models.RoleUser:
			ov.TotalUsers++
		case models.RoleAgent:
			ov.TotalAgents++
		}
	}
	for _, r := range rs {
		if r.IsSubmitted {
			ov.SubmittedResponses++
		} else {
			ov.DraftResponses++
		}
	}
	return ov, nil
}

// AgentOverview summarizes one provider. Draft and submitted user counts are
// independent: a user with mixed responses counts in both.
func (s *AnalyticsService) AgentOverview(providerID string) (*AgentOverview, error) {
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
	secs, err := s.store.ListSections(providerID)
	if err != nil {
		return nil, err
	}
	ov := &AgentOverview{Provider: p, TotalSections: len(secs)}
	for _, sec := range secs {
		qs, err := s.store.ListQuestions(sec.ID)
		if err != nil {
			return nil, err
		}
		ov.TotalQuestions += len(qs)
	}
	flags, _ := flagsByUser(rs)
	ov.TotalClients = len(flags)
	for _, f := range flags {
		if f.anySubmitted {
			ov.SubmittedUsers++
		}
		if f.anyUnsubmitted {
			ov.DraftUsers++
		}
	}
	recent := append([]*models.Response(nil), rs...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	if len(recent) > recentResponsesLimit {
		recent = recent[:recentResponsesLimit]
	}
	ov.RecentResponses = recent
	return ov, nil
}

// AgentClients lists users with responses for the provider, filtered by a
// case-insensitive match on name or email, most recently active first.
func (s *AnalyticsService) AgentClients(providerID, query string) ([]AgentClient, error) {
	rs, err := s.store.ListResponsesByProvider(providerID)
	if err != nil {
		return nil, err
	}
	flags, order := flagsByUser(rs)
	q := strings.ToLower(strings.TrimSpace(query))
	out := []AgentClient{}
	for _, uid := range order {
		u, err := s.store.GetUser(uid)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		f := flags[uid]
		out = append(out, AgentClient{
			User:         u.Public(),
			HasSubmitted: f.anySubmitted,
			HasDraft:     f.anyUnsubmitted,
			Responses:    f.count,
			LastActivity: f.last,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

// UserDashboard lists providers that have a form, each with the user's status.
func (s *AnalyticsService) UserDashboard(userID string) ([]DashboardEntry, error) {
	ps, err := providersWithSections(s.store)
	if err != nil {
		return nil, err
	}
	out := make([]DashboardEntry, 0, len(ps))
	for _, p := range ps {
		rs, err := s.store.ListResponsesByUser(userID, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, DashboardEntry{Provider: p, Status: statusOf(rs)})
	}
	return out, nil
}
