package services

import (
	"context"
	"sort"
	"time"

	"github.com/xcyber/portal/internal/models"
)

// stubStore is a map-backed store satisfying every service store interface.
type stubStore struct {
	providers map[string]*models.Provider
	sections  map[string]*models.Section
	questions map[string]*models.Question
	responses []*models.Response
	users     []*models.User
	audit     []models.AuditEntry
}

func newStubStore() *stubStore {
	return &stubStore{
		providers: map[string]*models.Provider{},
		sections:  map[string]*models.Section{},
		questions: map[string]*models.Question{},
	}
}

func (s *stubStore) addProvider(id, name string) {
	s.providers[id] = &models.Provider{ID: id, Name: name}
}

func (s *stubStore) ListProviders() ([]*models.Provider, error) {
	out := []*models.Provider{}
	for _, id := range sortedKeys(s.providers) {
		cp := *s.providers[id]
		out = append(out, &cp)
	}
	return out, nil
}

func sortedKeys(m map[string]*models.Provider) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *stubStore) GetProvider(id string) (*models.Provider, error) {
	if p, ok := s.providers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) InsertSection(sec *models.Section) (*models.Section, error) {
	cp := *sec
	n := 0
	for _, v := range s.sections {
		if v.ProviderID == sec.ProviderID {
			n++
		}
	}
	cp.Order = n + 1
	s.sections[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *stubStore) GetSection(id string) (*models.Section, error) {
	if v, ok := s.sections[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) ListSections(providerID string) ([]*models.Section, error) {
	out := []*models.Section{}
	for _, v := range s.sections {
		if v.ProviderID == providerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteSection(id string) (bool, error) {
	if _, ok := s.sections[id]; !ok {
		return false, nil
	}
	delete(s.sections, id)
	for qid, q := range s.questions {
		if q.SectionID == id {
			delete(s.questions, qid)
		}
	}
	kept := s.responses[:0]
	for _, r := range s.responses {
		if r.SectionID != id {
			kept = append(kept, r)
		}
	}
	s.responses = kept
	return true, nil
}

func (s *stubStore) InsertQuestions(qs []*models.Question) ([]*models.Question, error) {
	out := make([]*models.Question, 0, len(qs))
	for _, q := range qs {
		cp := *q
		n := 0
		for _, v := range s.questions {
			if v.SectionID == q.SectionID {
				n++
			}
		}
		cp.Order = n + 1
		s.questions[cp.ID] = &cp
		ret := cp
		out = append(out, &ret)
	}
	return out, nil
}

func (s *stubStore) GetQuestion(id string) (*models.Question, error) {
	if v, ok := s.questions[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) UpdateQuestion(q *models.Question) (bool, error) {
	if _, ok := s.questions[q.ID]; !ok {
		return false, nil
	}
	cp := *q
	s.questions[q.ID] = &cp
	return true, nil
}

func (s *stubStore) ListQuestions(sectionID string) ([]*models.Question, error) {
	out := []*models.Question{}
	for _, v := range s.questions {
		if v.SectionID == sectionID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteQuestion(id string) (bool, error) {
	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	kept := s.responses[:0]
	for _, r := range s.responses {
		if r.QuestionID != id {
			kept = append(kept, r)
		}
	}
	s.responses = kept
	return true, nil
}

func (s *stubStore) UpsertResponse(r *models.Response) (*models.Response, error) {
	for _, cur := range s.responses {
		if cur.UserID == r.UserID && cur.QuestionID == r.QuestionID {
			cur.Answer = r.Answer
			cur.ProviderID = r.ProviderID
			cur.SectionID = r.SectionID
			cur.UpdatedAt = r.UpdatedAt
			cp := *cur
			return &cp, nil
		}
	}
	cp := *r
	s.responses = append(s.responses, &cp)
	out := cp
	return &out, nil
}

func (s *stubStore) MarkSubmitted(userID, providerID string, at time.Time) (int, error) {
	n := 0
	for _, r := range s.responses {
		if r.UserID == userID && r.ProviderID == providerID {
			r.IsSubmitted = true
			r.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (s *stubStore) filter(keep func(*models.Response) bool) []*models.Response {
	out := []*models.Response{}
	for _, r := range s.responses {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (s *stubStore) ListResponses() ([]*models.Response, error) {
	return s.filter(func(*models.Response) bool { return true }), nil
}

func (s *stubStore) ListResponsesByUser(userID, providerID string) ([]*models.Response, error) {
	return s.filter(func(r *models.Response) bool {
		return r.UserID == userID && (providerID == "" || r.ProviderID == providerID)
	}), nil
}

func (s *stubStore) ListResponsesByProvider(providerID string) ([]*models.Response, error) {
	return s.filter(func(r *models.Response) bool { return r.ProviderID == providerID }), nil
}

func (s *stubStore) AddUser(u *models.User) error {
	for _, cur := range s.users {
		if cur.Email == u.Email {
			return ErrEmailExists
		}
	}
	cp := *u
	s.users = append(s.users, &cp)
	return nil
}

func (s *stubStore) FindUserByEmail(email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) GetUser(id string) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListUsers() ([]*models.User, error) {
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStore) AddAudit(e models.AuditEntry) { s.audit = append(s.audit, e) }

// stubSessions is an in-memory SessionStore.
type stubSessions struct {
	m map[string]*models.User
}

func newStubSessions() *stubSessions { return &stubSessions{m: map[string]*models.User{}} }

func (s *stubSessions) Save(_ context.Context, sid string, u *models.User, _ time.Duration) error {
	cp := *u
	s.m[sid] = &cp
	return nil
}

func (s *stubSessions) Load(_ context.Context, sid string) (*models.User, error) {
	if u, ok := s.m[sid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *stubSessions) Delete(_ context.Context, sid string) error {
	delete(s.m, sid)
	return nil
}

var (
	_ SchemaStore    = (*stubStore)(nil)
	_ LedgerStore    = (*stubStore)(nil)
	_ AnalyticsStore = (*stubStore)(nil)
	_ DirectoryStore = (*stubStore)(nil)
	_ ExportStore    = (*stubStore)(nil)
	_ AuthStore      = (*stubStore)(nil)
	_ SessionStore   = (*stubSessions)(nil)
)

// fixture builds provider P1 with two sections:
// S1 {Q1 text required, Q2 checkbox optional}, S2 {Q3 email required}.
func fixture() *stubStore {
	s := newStubStore()
	s.addProvider("P1", "Acme Insurance")
	s.addProvider("P2", "Beta Assurance")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.sections["S1"] = &models.Section{ID: "S1", ProviderID: "P1", Title: "Personal", Order: 1, CreatedAt: t0}
	s.sections["S2"] = &models.Section{ID: "S2", ProviderID: "P1", Title: "Contact", Order: 2, CreatedAt: t0}
	s.questions["Q1"] = &models.Question{ID: "Q1", SectionID: "S1", QuestionText: "Full name", QuestionType: models.QuestionText, Required: true, Order: 1}
	s.questions["Q2"] = &models.Question{ID: "Q2", SectionID: "S1", QuestionText: "Coverage", QuestionType: models.QuestionCheckbox, Options: []string{"A", "B", "C"}, Order: 2}
	s.questions["Q3"] = &models.Question{ID: "Q3", SectionID: "S2", QuestionText: "Email", QuestionType: models.QuestionEmail, Required: true, Order: 1}
	s.users = append(s.users,
		&models.User{ID: "U1", Email: "ann@example.com", Name: "Ann", Role: models.RoleUser},
		&models.User{ID: "U2", Email: "bob@example.com", Name: "Bob", Role: models.RoleUser},
		&models.User{ID: "A1", Email: "agent@example.com", Name: "Agent", Role: models.RoleAgent, InsuranceProviderID: "P1"},
	)
	return s
}
