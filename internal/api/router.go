package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xcyber/portal/internal/middleware"
	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/rbac"
	"github.com/xcyber/portal/internal/services"
	"github.com/xcyber/portal/internal/utils"
)

type Options struct {
	Store    Store
	Sessions services.SessionStore
	// Signer defaults to middleware.SignToken.
	Signer        services.TokenSigner
	TokenTTL      time.Duration
	AutosaveDelay time.Duration
}

type Router struct {
	store     Store
	sessions  services.SessionStore
	schema    *services.SchemaService
	ledger    *services.ResponseService
	autosave  *services.Autosaver
	analytics *services.AnalyticsService
	directory *services.DirectoryService
	exporter  *services.ExportService
	auth      *services.AuthService
}

func NewRouter(opts Options) *Router {
	signer := opts.Signer
	if signer == nil {
		signer = middleware.SignToken
	}
	ledger := services.NewResponseService(opts.Store)
	autosave := services.NewAutosaver(ledger, opts.AutosaveDelay)
	ledger.SetPendingFlusher(autosave.FlushProvider)
	auth := services.NewAuthService(opts.Store, opts.Sessions, signer)
	auth.SetTokenTTL(opts.TokenTTL)
	return &Router{
		store:     opts.Store,
		sessions:  opts.Sessions,
		schema:    services.NewSchemaService(opts.Store),
		ledger:    ledger,
		autosave:  autosave,
		analytics: services.NewAnalyticsService(opts.Store),
		directory: services.NewDirectoryService(opts.Store),
		exporter:  services.NewExportService(opts.Store),
		auth:      auth,
	}
}

// Close writes every staged draft and stops accepting new ones.
func (rt *Router) Close() error {
	return rt.autosave.Close()
}

func (rt *Router) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.WithAuth(rt.sessions))

		r.Post("/auth/register", rt.handleRegister)
		r.Post("/auth/login", rt.handleLogin)
		r.Get("/providers", rt.handleProviders)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/auth/logout", rt.handleLogout)
			r.Get("/auth/me", rt.handleMe)
			r.With(rbac.RequireAny(rbac.PermFormView, rbac.PermSchemaManage)).
				Get("/providers/{providerID}/form", rt.handleProviderForm)

			r.Route("/admin", func(r chi.Router) {
				r.With(rbac.Require(rbac.PermSchemaManage)).Post("/providers/{providerID}/sections", rt.handleAddSection)
				r.With(rbac.Require(rbac.PermSchemaManage)).Delete("/sections/{sectionID}", rt.handleDeleteSection)
				r.With(rbac.Require(rbac.PermSchemaManage)).Post("/sections/{sectionID}/questions", rt.handleAddQuestion)
				r.With(rbac.Require(rbac.PermSchemaManage)).Post("/sections/{sectionID}/questions/import", rt.handleImportQuestions)
				r.With(rbac.Require(rbac.PermSchemaManage)).Patch("/questions/{questionID}", rt.handleUpdateQuestion)
				r.With(rbac.Require(rbac.PermSchemaManage)).Delete("/questions/{questionID}", rt.handleDeleteQuestion)
				r.With(rbac.Require(rbac.PermStatsViewAll)).Get("/overview", rt.handleAdminOverview)
				r.With(rbac.Require(rbac.PermStatsViewAll)).Get("/stats", rt.handleProviderStats)
				r.With(rbac.Require(rbac.PermUsersList)).Get("/users", rt.handleListUsers)
				r.With(rbac.Require(rbac.PermResponsesAll)).Get("/providers/{providerID}/responses", rt.handleProviderResponses)
				r.With(rbac.Require(rbac.PermExportAll)).Get("/providers/{providerID}/export", rt.handleAdminExport)
				r.With(rbac.Require(rbac.PermAuditView)).Get("/audit", rt.handleAudit)
			})

			r.Route("/agent", func(r chi.Router) {
				r.With(rbac.Require(rbac.PermProviderView)).Get("/overview", rt.handleAgentOverview)
				r.With(rbac.Require(rbac.PermProviderClients)).Get("/clients", rt.handleAgentClients)
				r.With(rbac.Require(rbac.PermProviderView)).Get("/responses", rt.handleAgentResponses)
				r.With(rbac.Require(rbac.PermProviderExport)).Get("/export", rt.handleAgentExport)
			})

			r.With(rbac.Require(rbac.PermDashboardOwn)).Get("/me/dashboard", rt.handleDashboard)

			r.Route("/forms/{providerID}", func(r chi.Router) {
				r.With(rbac.Require(rbac.PermFormView)).Get("/", rt.handleGetForm)
				r.With(rbac.Require(rbac.PermFormSave)).Put("/answers", rt.handleSaveAnswers)
				r.With(rbac.Require(rbac.PermFormSave)).Put("/sections/{sectionID}/draft", rt.handleStageDraft)
				r.With(rbac.Require(rbac.PermFormSave)).Post("/sections/{sectionID}/flush", rt.handleFlushDraft)
				r.With(rbac.Require(rbac.PermFormSubmit)).Post("/submit", rt.handleSubmit)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return services.NewInvalidError("invalid json: " + err.Error())
	}
	return nil
}

type errorBody struct {
	Error   string   `json:"error"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	se, ok := services.AsServiceError(err)
	if !ok {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Title: utils.T(locale, "error.internal"), Message: "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch se.Code {
	case services.ErrorInvalid:
		status = http.StatusBadRequest
	case services.ErrorNotFound:
		status = http.StatusNotFound
	case services.ErrorConflict:
		status = http.StatusConflict
	case services.ErrorUnauthorized:
		status = http.StatusUnauthorized
	case services.ErrorForbidden:
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorBody{
		Error:   string(se.Code),
		Title:   utils.T(locale, "error."+string(se.Code)),
		Message: se.Message,
		Details: se.Details,
	})
}

// caller returns the signed-in claims; RequireAuth guarantees presence.
func caller(r *http.Request) *middleware.Claims {
	c, _ := middleware.ClaimsFromContext(r.Context())
	if c == nil {
		return &middleware.Claims{}
	}
	return c
}

// scopedProvider resolves the provider an agent-area request reads. Agents
// are pinned to their own provider; admins pick one with ?provider_id.
func scopedProvider(r *http.Request) (string, error) {
	c := caller(r)
	q := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if c.Role == models.RoleAgent {
		if c.PID == "" {
			return "", services.NewForbiddenError("agent has no provider")
		}
		if q != "" && q != c.PID {
			return "", services.NewForbiddenError("agents may only view their own provider")
		}
		return c.PID, nil
	}
	if q == "" {
		return "", services.NewInvalidError("provider_id required")
	}
	return q, nil
}

func writeCSV(w http.ResponseWriter, res *services.ExportResult) {
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	if _, err := w.Write(res.Data); err != nil {
		log.Printf("api: write export: %v", err)
	}
}
