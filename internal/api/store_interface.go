package api

import (
	"time"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

// Store is the single source of truth for providers, forms, responses and users.
// Getters return (nil, nil) for missing records. Deletes cascade to dependents.
type Store interface {
	Init(seed *models.Seed) error
	Reset() error

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

	UpsertResponse(r *models.Response) (*models.Response, error)
	MarkSubmitted(userID, providerID string, at time.Time) (int, error)
	ListResponses() ([]*models.Response, error)
	ListResponsesByUser(userID, providerID string) ([]*models.Response, error)
	ListResponsesByProvider(providerID string) ([]*models.Response, error)

	AddUser(u *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	ListUsers() ([]*models.User, error)

	AddAudit(e models.AuditEntry)
	ListAudit() []models.AuditEntry
}

var (
	_ Store                   = (*MemoryStore)(nil)
	_ services.SchemaStore    = Store(nil)
	_ services.LedgerStore    = Store(nil)
	_ services.AnalyticsStore = Store(nil)
	_ services.DirectoryStore = Store(nil)
	_ services.ExportStore    = Store(nil)
	_ services.AuthStore      = Store(nil)
)
