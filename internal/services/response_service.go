package services

import (
	"errors"
	"strings"
	"time"

	"github.com/xcyber/portal/internal/models"
)

// LedgerStore abstracts persistence operations required by ResponseService.
// UpsertResponse keys on (UserID, QuestionID) and must be atomic.
type LedgerStore interface {
	GetProvider(id string) (*models.Provider, error)
	GetSection(id string) (*models.Section, error)
	GetQuestion(id string) (*models.Question, error)
	ListSections(providerID string) ([]*models.Section, error)
	ListQuestions(sectionID string) ([]*models.Question, error)
	UpsertResponse(r *models.Response) (*models.Response, error)
	MarkSubmitted(userID, providerID string, at time.Time) (int, error)
	ListResponsesByUser(userID, providerID string) ([]*models.Response, error)
	ListResponsesByProvider(providerID string) ([]*models.Response, error)
}

// SaveAnswer is one answer addressed to a question of a provider form.
type SaveAnswer struct {
	ProviderID string        `json:"provider_id"`
	SectionID  string        `json:"section_id"`
	QuestionID string        `json:"question_id"`
	Answer     models.Answer `json:"answer"`
}

// SubmitResult reports what a submission changed.
type SubmitResult struct {
	Submitted        int       `json:"submitted"`
	AlreadySubmitted bool      `json:"already_submitted"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// ResponseService is the ledger of user answers.
type ResponseService struct {
	store       LedgerStore
	now         func() time.Time
	idGenerator func() string
	// flushPending runs before a submission so staged drafts reach the ledger first.
	flushPending func(userID, providerID string) error
}

func NewResponseService(store LedgerStore) *ResponseService {
	return &ResponseService{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: func() string { return "r" + shortID(12) },
	}
}

// SetPendingFlusher registers the hook run at the start of SubmitResponses.
func (s *ResponseService) SetPendingFlusher(fn func(userID, providerID string) error) {
	s.flushPending = fn
}

// CheckAnswer runs every check SaveResponse makes without writing anything.
func (s *ResponseService) CheckAnswer(userID string, in SaveAnswer) error {
	if s.store == nil {
		return errors.New("response service store is nil")
	}
	if strings.TrimSpace(userID) == "" {
		return NewInvalidError("user_id required")
	}
	q, err := s.checkTarget(in)
	if err != nil {
		return err
	}
	if err := checkAnswerShape(q, in.Answer); err != nil {
		return err
	}
	status, err := s.Status(userID, in.ProviderID)
	if err != nil {
		return err
	}
	if status == models.StatusSubmitted {
		return ErrFormSubmitted
	}
	return nil
}

func (s *ResponseService) SaveResponse(userID string, in SaveAnswer) (*models.Response, error) {
	if err := s.CheckAnswer(userID, in); err != nil {
		return nil, err
	}
	return s.upsert(userID, in)
}

func (s *ResponseService) upsert(userID string, in SaveAnswer) (*models.Response, error) {
	now := s.now()
	return s.store.UpsertResponse(&models.Response{
		ID:         s.idGenerator(),
		UserID:     userID,
		ProviderID: in.ProviderID,
		SectionID:  in.SectionID,
		QuestionID: in.QuestionID,
		Answer:     in.Answer,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// SaveAnswers writes a batch of answers. Every answer is checked first; one
// bad answer rejects the whole batch and nothing is written.
func (s *ResponseService) SaveAnswers(userID string, answers []SaveAnswer) ([]*models.Response, error) {
	for _, a := range answers {
		if err := s.CheckAnswer(userID, a); err != nil {
			return nil, err
		}
	}
	out := make([]*models.Response, 0, len(answers))
	for _, a := range answers {
		r, err := s.upsert(userID, a)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// checkTarget verifies question -> section -> provider containment.
func (s *ResponseService) checkTarget(in SaveAnswer) (*models.Question, error) {
	if in.ProviderID == "" || in.SectionID == "" || in.QuestionID == "" {
		return nil, NewInvalidError("provider_id, section_id and question_id required")
	}
	q, err := s.store.GetQuestion(in.QuestionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("question not found")
	}
	if q.SectionID != in.SectionID {
		return nil, NewInvalidError("question does not belong to section")
	}
	sec, err := s.store.GetSection(in.SectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, NewNotFoundError("section not found")
	}
	if sec.ProviderID != in.ProviderID {
		return nil, NewInvalidError("section does not belong to provider")
	}
	return q, nil
}

func checkAnswerShape(q *models.Question, a models.Answer) error {
	if q.QuestionType.MultiValued() != a.IsMulti() {
		if q.QuestionType.MultiValued() {
			return NewInvalidError("checkbox answers must be a list")
		}
		return NewInvalidError("answer must be a single value")
	}
	if !q.QuestionType.HasOptions() || a.Empty() {
		return nil
	}
	allowed := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		allowed[o] = struct{}{}
	}
	for _, v := range a.Values() {
		if _, ok := allowed[v]; !ok {
			return NewInvalidError("answer " + v + " is not an option")
		}
	}
	return nil
}

// SubmitResponses marks the user's answer set for a provider as submitted.
// Every required question of every section must have a non-empty answer;
// otherwise nothing changes. Submitting an already submitted set is a no-op.
func (s *ResponseService) SubmitResponses(userID, providerID string) (*SubmitResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(providerID) == "" {
		return nil, NewInvalidError("user_id and provider_id required")
	}
	p, err := s.store.GetProvider(providerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("provider not found")
	}
	if s.flushPending != nil {
		if err := s.flushPending(userID, providerID); err != nil && !errors.Is(err, ErrFormSubmitted) {
			return nil, err
		}
	}
	rs, err := s.store.ListResponsesByUser(userID, providerID)
	if err != nil {
		return nil, err
	}
	switch statusOf(rs) {
	case models.StatusSubmitted:
		return &SubmitResult{AlreadySubmitted: true, SubmittedAt: latestUpdate(rs)}, nil
	case models.StatusNotStarted:
		return nil, NewInvalidError("nothing to submit")
	}

	answers := make(map[string]models.Answer, len(rs))
	for _, r := range rs {
		answers[r.QuestionID] = r.Answer
	}
	secs, err := s.store.ListSections(providerID)
	if err != nil {
		return nil, err
	}
	models.SortSections(secs)
	var missing, malformed []string
	for _, sec := range secs {
		qs, err := s.store.ListQuestions(sec.ID)
		if err != nil {
			return nil, err
		}
		models.SortQuestions(qs)
		for _, q := range qs {
			a, ok := answers[q.ID]
			if q.Required && (!ok || a.Empty()) {
				missing = append(missing, q.ID)
				continue
			}
			if !ok {
				continue
			}
			// the question may have changed type or options since the answer was saved
			if checkAnswerShape(q, a) != nil || !checkAnswerFormat(q.QuestionType, a) {
				malformed = append(malformed, q.ID)
			}
		}
	}
	if len(missing) > 0 {
		return nil, newInvalidDetails("required questions unanswered", missing)
	}
	if len(malformed) > 0 {
		return nil, newInvalidDetails("answers have an invalid format", malformed)
	}
	at := s.now()
	n, err := s.store.MarkSubmitted(userID, providerID, at)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Submitted: n, SubmittedAt: at}, nil
}

func (s *ResponseService) GetResponsesByUser(userID, providerID string) ([]*models.Response, error) {
	return s.store.ListResponsesByUser(userID, providerID)
}

func (s *ResponseService) GetResponsesByProvider(providerID string) ([]*models.Response, error) {
	return s.store.ListResponsesByProvider(providerID)
}

// Status derives the answer-set state for (user, provider).
func (s *ResponseService) Status(userID, providerID string) (models.FormStatus, error) {
	rs, err := s.store.ListResponsesByUser(userID, providerID)
	if err != nil {
		return "", err
	}
	return statusOf(rs), nil
}

func statusOf(rs []*models.Response) models.FormStatus {
	if len(rs) == 0 {
		return models.StatusNotStarted
	}
	for _, r := range rs {
		if !r.IsSubmitted {
			return models.StatusDraft
		}
	}
	return models.StatusSubmitted
}

func latestUpdate(rs []*models.Response) time.Time {
	var t time.Time
	for _, r := range rs {
		if r.UpdatedAt.After(t) {
			t = r.UpdatedAt
		}
	}
	return t
}
