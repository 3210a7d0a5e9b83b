package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

type responseKey struct {
	userID     string
	questionID string
}

// MemoryStore keeps everything in process. When snapshotPath is set, the
// response list is rewritten to that file after every response mutation.
type MemoryStore struct {
	mu           sync.RWMutex
	providers    map[string]*models.Provider
	sections     map[string]*models.Section
	questions    map[string]*models.Question
	responses    []*models.Response
	byKey        map[responseKey]*models.Response
	users        map[string]*models.User
	usersByEmail map[string]*models.User
	userOrder    []string
	audit        []models.AuditEntry
	snapshotPath string
}

func newMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.clear()
	return s
}

// NewMemoryStore loads seed, then replaces the seeded responses with the
// snapshot at snapshotPath when that file exists.
func NewMemoryStore(seed *models.Seed, snapshotPath string) (*MemoryStore, error) {
	s := newMemoryStore()
	if err := s.Init(seed); err != nil {
		return nil, err
	}
	if snapshotPath == "" {
		return s, nil
	}
	rs, err := readResponseSnapshot(snapshotPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("memory store: no response snapshot at %s, using seed", snapshotPath)
	case err != nil:
		return nil, fmt.Errorf("load response snapshot: %w", err)
	default:
		s.mu.Lock()
		s.setResponses(rs)
		s.pruneLocked()
		s.mu.Unlock()
	}
	s.snapshotPath = snapshotPath
	return s, nil
}

func (s *MemoryStore) clear() {
	s.providers = map[string]*models.Provider{}
	s.sections = map[string]*models.Section{}
	s.questions = map[string]*models.Question{}
	s.responses = []*models.Response{}
	s.byKey = map[responseKey]*models.Response{}
	s.users = map[string]*models.User{}
	s.usersByEmail = map[string]*models.User{}
	s.userOrder = nil
	s.audit = []models.AuditEntry{}
}

// Init replaces all state with seed.
func (s *MemoryStore) Init(seed *models.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	if seed == nil {
		s.persistLocked()
		return nil
	}
	for _, p := range seed.Providers {
		cp := *p
		s.providers[p.ID] = &cp
	}
	for _, sec := range seed.Sections {
		cp := *sec
		s.sections[sec.ID] = &cp
	}
	for _, q := range seed.Questions {
		s.questions[q.ID] = copyQuestion(q)
	}
	for _, u := range seed.Users {
		if _, dup := s.usersByEmail[u.Email]; dup {
			return fmt.Errorf("seed: %w: %s", services.ErrEmailExists, u.Email)
		}
		cp := *u
		cp.Password = ""
		s.users[u.ID] = &cp
		s.usersByEmail[u.Email] = &cp
		s.userOrder = append(s.userOrder, u.ID)
	}
	s.setResponses(seed.Responses)
	s.pruneLocked()
	s.persistLocked()
	return nil
}

// Reset empties the store.
func (s *MemoryStore) Reset() error {
	return s.Init(nil)
}

func (s *MemoryStore) setResponses(rs []*models.Response) {
	s.responses = make([]*models.Response, 0, len(rs))
	s.byKey = map[responseKey]*models.Response{}
	for _, r := range rs {
		k := responseKey{r.UserID, r.QuestionID}
		if cur, ok := s.byKey[k]; ok {
			*cur = *r
			continue
		}
		cp := *r
		s.responses = append(s.responses, &cp)
		s.byKey[k] = &cp
	}
}

// pruneLocked enforces referential integrity: questions need a section,
// sections need a provider, responses need their question and section.
// Every delete funnels through here.
func (s *MemoryStore) pruneLocked() int {
	for id, sec := range s.sections {
		if _, ok := s.providers[sec.ProviderID]; !ok {
			delete(s.sections, id)
		}
	}
	for id, q := range s.questions {
		if _, ok := s.sections[q.SectionID]; !ok {
			delete(s.questions, id)
		}
	}
	kept := s.responses[:0]
	removed := 0
	for _, r := range s.responses {
		q, qok := s.questions[r.QuestionID]
		_, sok := s.sections[r.SectionID]
		if !qok || !sok || q.SectionID != r.SectionID {
			delete(s.byKey, responseKey{r.UserID, r.QuestionID})
			removed++
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(s.responses); i++ {
		s.responses[i] = nil
	}
	s.responses = kept
	return removed
}

func (s *MemoryStore) persistLocked() {
	if s.snapshotPath == "" {
		return
	}
	if err := writeResponseSnapshot(s.snapshotPath, s.responses); err != nil {
		log.Printf("memory store: persist responses: %v", err)
	}
}

func readResponseSnapshot(path string) ([]*models.Response, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs []*models.Response
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func writeResponseSnapshot(path string, rs []*models.Response) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if rs == nil {
		rs = []*models.Response{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyQuestion(q *models.Question) *models.Question {
	cp := *q
	if q.Options != nil {
		cp.Options = append([]string(nil), q.Options...)
	}
	return &cp
}

func copyResponse(r *models.Response) *models.Response {
	cp := *r
	return &cp
}

func (s *MemoryStore) ListProviders() ([]*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetProvider(id string) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.providers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) InsertSection(sec *models.Section) (*models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[sec.ProviderID]; !ok {
		return nil, services.NewNotFoundError("provider not found")
	}
	n := 0
	for _, v := range s.sections {
		if v.ProviderID == sec.ProviderID {
			n++
		}
	}
	cp := *sec
	cp.Order = n + 1
	s.sections[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetSection(id string) (*models.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.sections[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListSections(providerID string) ([]*models.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Section{}
	for _, v := range s.sections {
		if v.ProviderID == providerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	models.SortSections(out)
	return out, nil
}

func (s *MemoryStore) DeleteSection(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sections[id]; !ok {
		return false, nil
	}
	delete(s.sections, id)
	if s.pruneLocked() > 0 {
		s.persistLocked()
	}
	return true, nil
}

// InsertQuestions appends questions in order; all target sections must exist.
func (s *MemoryStore) InsertQuestions(qs []*models.Question) ([]*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		if _, ok := s.sections[q.SectionID]; !ok {
			return nil, services.NewNotFoundError("section not found")
		}
	}
	counts := map[string]int{}
	for _, v := range s.questions {
		counts[v.SectionID]++
	}
	out := make([]*models.Question, 0, len(qs))
	for _, q := range qs {
		counts[q.SectionID]++
		cp := copyQuestion(q)
		cp.Order = counts[q.SectionID]
		s.questions[cp.ID] = cp
		out = append(out, copyQuestion(cp))
	}
	return out, nil
}

func (s *MemoryStore) GetQuestion(id string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.questions[id]; ok {
		return copyQuestion(v), nil
	}
	return nil, nil
}

// UpdateQuestion replaces content fields; section and order are kept.
func (s *MemoryStore) UpdateQuestion(q *models.Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.questions[q.ID]
	if !ok {
		return false, nil
	}
	next := copyQuestion(q)
	next.SectionID = cur.SectionID
	next.Order = cur.Order
	next.CreatedAt = cur.CreatedAt
	s.questions[q.ID] = next
	return true, nil
}

func (s *MemoryStore) ListQuestions(sectionID string) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Question{}
	for _, v := range s.questions {
		if v.SectionID == sectionID {
			out = append(out, copyQuestion(v))
		}
	}
	models.SortQuestions(out)
	return out, nil
}

func (s *MemoryStore) DeleteQuestion(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	if s.pruneLocked() > 0 {
		s.persistLocked()
	}
	return true, nil
}

// UpsertResponse replaces the answer of the (user, question) response or appends a new draft.
func (s *MemoryStore) UpsertResponse(r *models.Response) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[r.QuestionID]
	if !ok || q.SectionID != r.SectionID {
		return nil, services.NewNotFoundError("question not found")
	}
	k := responseKey{r.UserID, r.QuestionID}
	if cur, ok := s.byKey[k]; ok {
		cur.Answer = r.Answer
		cur.ProviderID = r.ProviderID
		cur.SectionID = r.SectionID
		cur.UpdatedAt = r.UpdatedAt
		s.persistLocked()
		return copyResponse(cur), nil
	}
	cp := copyResponse(r)
	cp.IsSubmitted = false
	s.responses = append(s.responses, cp)
	s.byKey[k] = cp
	s.persistLocked()
	return copyResponse(cp), nil
}

func (s *MemoryStore) MarkSubmitted(userID, providerID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.responses {
		if r.UserID == userID && r.ProviderID == providerID {
			r.IsSubmitted = true
			r.UpdatedAt = at
			n++
		}
	}
	if n > 0 {
		s.persistLocked()
	}
	return n, nil
}

func (s *MemoryStore) filterResponses(keep func(*models.Response) bool) []*models.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Response{}
	for _, r := range s.responses {
		if keep(r) {
			out = append(out, copyResponse(r))
		}
	}
	return out
}

func (s *MemoryStore) ListResponses() ([]*models.Response, error) {
	return s.filterResponses(func(*models.Response) bool { return true }), nil
}

// ListResponsesByUser lists the user's responses; an empty providerID means all providers.
func (s *MemoryStore) ListResponsesByUser(userID, providerID string) ([]*models.Response, error) {
	return s.filterResponses(func(r *models.Response) bool {
		return r.UserID == userID && (providerID == "" || r.ProviderID == providerID)
	}), nil
}

func (s *MemoryStore) ListResponsesByProvider(providerID string) ([]*models.Response, error) {
	return s.filterResponses(func(r *models.Response) bool { return r.ProviderID == providerID }), nil
}

// AddUser rejects an exact duplicate email with services.ErrEmailExists.
func (s *MemoryStore) AddUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return services.ErrEmailExists
	}
	cp := *u
	cp.Password = ""
	s.users[u.ID] = &cp
	s.usersByEmail[u.Email] = &cp
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

func (s *MemoryStore) FindUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.usersByEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListUsers() ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		cp := *s.users[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) AddAudit(e models.AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *MemoryStore) ListAudit() []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Snapshot copies the full contents as a seed, credentials included.
func (s *MemoryStore) Snapshot() *models.Seed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seed := &models.Seed{}
	for _, p := range s.providers {
		cp := *p
		seed.Providers = append(seed.Providers, &cp)
	}
	for _, sec := range s.sections {
		cp := *sec
		seed.Sections = append(seed.Sections, &cp)
	}
	for _, q := range s.questions {
		seed.Questions = append(seed.Questions, copyQuestion(q))
	}
	for _, id := range s.userOrder {
		cp := *s.users[id]
		seed.Users = append(seed.Users, &cp)
	}
	for _, r := range s.responses {
		seed.Responses = append(seed.Responses, copyResponse(r))
	}
	return seed
}
