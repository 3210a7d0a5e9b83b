package services

import (
	"sort"
	"time"

	"github.com/xcyber/portal/internal/models"
)

type ExportStore interface {
	GetProvider(id string) (*models.Provider, error)
	ListSections(providerID string) ([]*models.Section, error)
	ListQuestions(sectionID string) ([]*models.Question, error)
	ListResponsesByProvider(providerID string) ([]*models.Response, error)
	GetUser(id string) (*models.User, error)
}

type ExportParams struct {
	ProviderID string
	Format     string
	// SubmittedOnly drops users whose answer set is still a draft.
	SubmittedOnly bool
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{store: store}
}

type exportQuestion struct {
	q       *models.Question
	section *models.Section
}

func (s *ExportService) ExportCSV(params ExportParams) (*ExportResult, error) {
	if params.ProviderID == "" {
		return nil, NewInvalidError("provider_id required")
	}
	format := params.Format
	if format == "" {
		format = "long"
	}
	p, err := s.store.GetProvider(params.ProviderID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("provider not found")
	}
	questions, err := s.orderedQuestions(params.ProviderID)
	if err != nil {
		return nil, err
	}
	rs, err := s.store.ListResponsesByProvider(params.ProviderID)
	if err != nil {
		return nil, err
	}
	byUser := map[string][]*models.Response{}
	userIDs := []string{}
	for _, r := range rs {
		if _, ok := byUser[r.UserID]; !ok {
			userIDs = append(userIDs, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	users := map[string]*models.User{}
	kept := userIDs[:0]
	for _, uid := range userIDs {
		if params.SubmittedOnly && statusOf(byUser[uid]) != models.StatusSubmitted {
			continue
		}
		u, err := s.store.GetUser(uid)
		if err != nil {
			return nil, err
		}
		if u == nil {
			u = &models.User{ID: uid}
		}
		users[uid] = u
		kept = append(kept, uid)
	}
	sort.SliceStable(kept, func(i, j int) bool { return users[kept[i]].Email < users[kept[j]].Email })

	filename := p.ID + "-responses-" + format + ".csv"
	switch format {
	case "long":
		b, err := ExportLongCSV(buildLongRows(kept, users, byUser, questions))
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: filename, ContentType: "text/csv; charset=utf-8", Data: b}, nil
	case "wide":
		cols := make([]WideColumn, 0, len(questions))
		for _, eq := range questions {
			cols = append(cols, WideColumn{QuestionID: eq.q.ID, Header: eq.q.QuestionText})
		}
		rows := make([]WideRow, 0, len(kept))
		for _, uid := range kept {
			u := users[uid]
			answers := map[string]string{}
			for _, r := range byUser[uid] {
				answers[r.QuestionID] = r.Answer.Text()
			}
			rows = append(rows, WideRow{UserID: uid, UserName: u.Name, UserEmail: u.Email, Status: string(statusOf(byUser[uid])), Answers: answers})
		}
		b, err := ExportWideCSV(cols, rows)
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: filename, ContentType: "text/csv; charset=utf-8", Data: b}, nil
	default:
		return nil, NewInvalidError("unsupported format")
	}
}

func (s *ExportService) orderedQuestions(providerID string) ([]exportQuestion, error) {
	secs, err := s.store.ListSections(providerID)
	if err != nil {
		return nil, err
	}
	models.SortSections(secs)
	out := []exportQuestion{}
	for _, sec := range secs {
		qs, err := s.store.ListQuestions(sec.ID)
		if err != nil {
			return nil, err
		}
		models.SortQuestions(qs)
		for _, q := range qs {
			out = append(out, exportQuestion{q: q, section: sec})
		}
	}
	return out, nil
}

// buildLongRows emits rows in form order for each user; unanswered questions are skipped.
func buildLongRows(userIDs []string, users map[string]*models.User, byUser map[string][]*models.Response, questions []exportQuestion) []LongRow {
	rows := []LongRow{}
	for _, uid := range userIDs {
		u := users[uid]
		answers := map[string]*models.Response{}
		for _, r := range byUser[uid] {
			answers[r.QuestionID] = r
		}
		for _, eq := range questions {
			r, ok := answers[eq.q.ID]
			if !ok {
				continue
			}
			status := string(models.StatusDraft)
			if r.IsSubmitted {
				status = string(models.StatusSubmitted)
			}
			rows = append(rows, LongRow{
				UserID:       uid,
				UserName:     u.Name,
				UserEmail:    u.Email,
				SectionTitle: eq.section.Title,
				QuestionID:   eq.q.ID,
				QuestionText: eq.q.QuestionText,
				Answer:       r.Answer.Text(),
				Status:       status,
				UpdatedAt:    r.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	return rows
}
