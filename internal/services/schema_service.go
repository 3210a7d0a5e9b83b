package services

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xcyber/portal/internal/models"
)

// SchemaStore is the persistence surface needed to author provider forms.
// Insert* assign Order inside the store; Delete* cascade to dependents.
type SchemaStore interface {
	ListProviders() ([]*models.Provider, error)
	GetProvider(id string) (*models.Provider, error)
	InsertSection(sec *models.Section) (*models.Section, error)
	GetSection(id string) (*models.Section, error)
	ListSections(providerID string) ([]*models.Section, error)
	DeleteSection(id string) (bool, error)
	InsertQuestions(qs []*models.Question) ([]*models.Question, error)
	GetQuestion(id string) (*models.Question, error)
	UpdateQuestion(q *models.Question) (bool, error)
	ListQuestions(sectionID string) ([]*models.Question, error)
	DeleteQuestion(id string) (bool, error)
	AddAudit(entry models.AuditEntry)
}

type SchemaService struct {
	store SchemaStore
	now   func() time.Time
	idGen func(prefix string, n int) string
}

func NewSchemaService(store SchemaStore) *SchemaService {
	return &SchemaService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: func(prefix string, n int) string { return prefix + shortID(n) },
	}
}

type NewQuestion struct {
	SectionID    string              `json:"section_id" validate:"required"`
	QuestionText string              `json:"question_text" validate:"required"`
	QuestionType models.QuestionType `json:"question_type" validate:"required,oneof=text textarea number date email phone mcq checkbox dropdown"`
	Required     bool                `json:"required"`
	Options      []string            `json:"options"`
}

// QuestionPatch is a partial update; nil fields are left untouched.
type QuestionPatch struct {
	QuestionText *string              `json:"question_text,omitempty"`
	QuestionType *models.QuestionType `json:"question_type,omitempty"`
	Options      *[]string            `json:"options,omitempty"`
	Required     *bool                `json:"required,omitempty"`
}

// SectionForm is a section with its ordered questions.
type SectionForm struct {
	*models.Section
	Questions []*models.Question `json:"questions"`
}

type ProviderForm struct {
	Provider *models.Provider `json:"provider"`
	Sections []SectionForm    `json:"sections"`
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func (s *SchemaService) ListProviders() ([]*models.Provider, error) {
	return s.store.ListProviders()
}

func (s *SchemaService) AddSection(providerID, title, actor string) (*models.Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewInvalidError("section title required")
	}
	if strings.TrimSpace(providerID) == "" {
		return nil, NewInvalidError("provider_id required")
	}
	p, err := s.store.GetProvider(providerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("provider not found")
	}
	created, err := s.store.InsertSection(&models.Section{
		ID:         s.idGen("sec", 8),
		ProviderID: providerID,
		Title:      title,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "add_section", Target: created.ID, Note: providerID})
	return created, nil
}

func (s *SchemaService) DeleteSection(id, actor string) error {
	ok, err := s.store.DeleteSection(id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("section not found")
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "delete_section", Target: id})
	return nil
}

// prepareQuestion validates in and returns the question to insert (Order unset).
func (s *SchemaService) prepareQuestion(in NewQuestion) (*models.Question, error) {
	in.QuestionText = strings.TrimSpace(in.QuestionText)
	in.QuestionType = models.QuestionType(strings.ToLower(strings.TrimSpace(string(in.QuestionType))))
	if err := validateStruct("question", in); err != nil {
		return nil, err
	}
	opts, err := checkOptions(in.QuestionType, in.Options)
	if err != nil {
		return nil, err
	}
	return &models.Question{
		ID:           s.idGen("q", 8),
		SectionID:    in.SectionID,
		QuestionText: in.QuestionText,
		QuestionType: in.QuestionType,
		Options:      opts,
		Required:     in.Required,
		CreatedAt:    s.now(),
	}, nil
}

func checkOptions(t models.QuestionType, opts []string) ([]string, error) {
	if !t.HasOptions() {
		return nil, nil
	}
	opts = normalizeOptions(opts)
	if len(opts) < 2 {
		return nil, NewInvalidError(string(t) + " questions need at least 2 options")
	}
	return opts, nil
}

func (s *SchemaService) requireSection(id string) (*models.Section, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidError("section_id required")
	}
	sec, err := s.store.GetSection(id)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, NewNotFoundError("section not found")
	}
	return sec, nil
}

func (s *SchemaService) AddQuestion(in NewQuestion, actor string) (*models.Question, error) {
	q, err := s.prepareQuestion(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireSection(in.SectionID); err != nil {
		return nil, err
	}
	created, err := s.store.InsertQuestions([]*models.Question{q})
	if err != nil {
		return nil, err
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "add_question", Target: q.ID, Note: in.SectionID})
	return created[0], nil
}

// UpdateQuestion merges the provided fields and revalidates the result. Order and section never change.
func (s *SchemaService) UpdateQuestion(id string, patch QuestionPatch, actor string) (*models.Question, error) {
	cur, err := s.store.GetQuestion(id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, NewNotFoundError("question not found")
	}
	merged := NewQuestion{
		SectionID:    cur.SectionID,
		QuestionText: cur.QuestionText,
		QuestionType: cur.QuestionType,
		Required:     cur.Required,
		Options:      cur.Options,
	}
	if patch.QuestionText != nil {
		merged.QuestionText = *patch.QuestionText
	}
	if patch.QuestionType != nil {
		merged.QuestionType = *patch.QuestionType
	}
	if patch.Options != nil {
		merged.Options = *patch.Options
	}
	if patch.Required != nil {
		merged.Required = *patch.Required
	}
	next, err := s.prepareQuestion(merged)
	if err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Order = cur.Order
	next.CreatedAt = cur.CreatedAt
	ok, err := s.store.UpdateQuestion(next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError("question not found")
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "update_question", Target: id})
	return next, nil
}

func (s *SchemaService) DeleteQuestion(id, actor string) error {
	ok, err := s.store.DeleteQuestion(id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("question not found")
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "delete_question", Target: id})
	return nil
}

func (s *SchemaService) ListSections(providerID string) ([]*models.Section, error) {
	secs, err := s.store.ListSections(providerID)
	if err != nil {
		return nil, err
	}
	models.SortSections(secs)
	return secs, nil
}

func (s *SchemaService) ListQuestions(sectionID string) ([]*models.Question, error) {
	qs, err := s.store.ListQuestions(sectionID)
	if err != nil {
		return nil, err
	}
	models.SortQuestions(qs)
	return qs, nil
}

// ListQuestionsByProvider returns every question of the provider, section by section.
func (s *SchemaService) ListQuestionsByProvider(providerID string) ([]*models.Question, error) {
	form, err := s.ProviderForm(providerID)
	if err != nil {
		return nil, err
	}
	out := []*models.Question{}
	for _, sec := range form.Sections {
		out = append(out, sec.Questions...)
	}
	return out, nil
}

func (s *SchemaService) ProviderForm(providerID string) (*ProviderForm, error) {
	p, err := s.store.GetProvider(providerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("provider not found")
	}
	secs, err := s.ListSections(providerID)
	if err != nil {
		return nil, err
	}
	form := &ProviderForm{Provider: p, Sections: make([]SectionForm, 0, len(secs))}
	for _, sec := range secs {
		qs, err := s.ListQuestions(sec.ID)
		if err != nil {
			return nil, err
		}
		form.Sections = append(form.Sections, SectionForm{Section: sec, Questions: qs})
	}
	return form, nil
}

// ProvidersWithQuestions lists providers that have at least one section.
func (s *SchemaService) ProvidersWithQuestions() ([]*models.Provider, error) {
	return providersWithSections(s.store)
}

type providerSectionLister interface {
	ListProviders() ([]*models.Provider, error)
	ListSections(providerID string) ([]*models.Section, error)
}

func providersWithSections(store providerSectionLister) ([]*models.Provider, error) {
	ps, err := store.ListProviders()
	if err != nil {
		return nil, err
	}
	out := []*models.Provider{}
	for _, p := range ps {
		secs, err := store.ListSections(p.ID)
		if err != nil {
			return nil, err
		}
		if len(secs) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// ImportQuestionsCSV appends questions from a CSV with the header
// question_text,question_type,required,options (options separated by "|").
// Nothing is written unless every row is valid.
func (s *SchemaService) ImportQuestionsCSV(sectionID string, data []byte, actor string) (int, error) {
	if _, err := s.requireSection(sectionID); err != nil {
		return 0, err
	}
	// Strip optional UTF-8 BOM
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return 0, NewInvalidError("invalid csv: " + err.Error())
	}
	if len(rows) < 2 {
		return 0, NewInvalidError("empty csv")
	}
	header := rows[0]
	idx := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}
	iText := idx("question_text")
	iType := idx("question_type")
	iReq := idx("required")
	iOpts := idx("options")
	if iText < 0 || iType < 0 {
		return 0, NewInvalidError("csv header must include question_text and question_type")
	}
	get := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	parseBool := func(v string) bool {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes" || v == "y"
	}

	batch := make([]*models.Question, 0, len(rows)-1)
	var bad []string
	for n, row := range rows[1:] {
		line := strconv.Itoa(n + 2)
		if get(row, iText) == "" && get(row, iType) == "" {
			continue
		}
		var opts []string
		if raw := get(row, iOpts); raw != "" {
			opts = strings.Split(raw, "|")
		}
		q, err := s.prepareQuestion(NewQuestion{
			SectionID:    sectionID,
			QuestionText: get(row, iText),
			QuestionType: models.QuestionType(get(row, iType)),
			Required:     parseBool(get(row, iReq)),
			Options:      opts,
		})
		if err != nil {
			bad = append(bad, "line "+line+": "+err.Error())
			continue
		}
		batch = append(batch, q)
	}
	if len(bad) > 0 {
		return 0, newInvalidDetails("csv contains invalid rows", bad)
	}
	if len(batch) == 0 {
		return 0, NewInvalidError("no questions in csv")
	}
	if _, err := s.store.InsertQuestions(batch); err != nil {
		return 0, err
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "import_questions", Target: sectionID, Note: strconv.Itoa(len(batch))})
	return len(batch), nil
}
