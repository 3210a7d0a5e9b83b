package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

// POST /api/admin/providers/{providerID}/sections
func (rt *Router) handleAddSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sec, err := rt.schema.AddSection(chi.URLParam(r, "providerID"), req.Title, caller(r).UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

// DELETE /api/admin/sections/{sectionID}
func (rt *Router) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	if err := rt.schema.DeleteSection(chi.URLParam(r, "sectionID"), caller(r).UID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/admin/sections/{sectionID}/questions
func (rt *Router) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.NewQuestion
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	in.SectionID = chi.URLParam(r, "sectionID")
	q, err := rt.schema.AddQuestion(in, caller(r).UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// POST /api/admin/sections/{sectionID}/questions/import (body: CSV)
func (rt *Router) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeServiceError(w, r, services.NewInvalidError("read body: "+err.Error()))
		return
	}
	sectionID := chi.URLParam(r, "sectionID")
	n, err := rt.schema.ImportQuestionsCSV(sectionID, data, caller(r).UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	qs, err := rt.schema.ListQuestions(sectionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"imported": n, "questions": qs})
}

// PATCH /api/admin/questions/{questionID}
func (rt *Router) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch services.QuestionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	q, err := rt.schema.UpdateQuestion(chi.URLParam(r, "questionID"), patch, caller(r).UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DELETE /api/admin/questions/{questionID}
func (rt *Router) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := rt.schema.DeleteQuestion(chi.URLParam(r, "questionID"), caller(r).UID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := rt.analytics.AdminOverview()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (rt *Router) handleProviderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.analytics.ProviderStats()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": stats})
}

// GET /api/admin/users?role=agent&q=smith
func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.directory.ListUsers(models.Role(r.URL.Query().Get("role")), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (rt *Router) handleProviderResponses(w http.ResponseWriter, r *http.Request) {
	rt.writeProviderResponses(w, r, chi.URLParam(r, "providerID"))
}

func (rt *Router) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	rt.writeExport(w, r, chi.URLParam(r, "providerID"))
}

func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries := rt.store.ListAudit()
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (rt *Router) writeProviderResponses(w http.ResponseWriter, r *http.Request, providerID string) {
	groups, err := rt.directory.ProviderResponses(providerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "users": groups})
}

// writeExport serves ?format=long|wide&submitted_only=true as a CSV download.
func (rt *Router) writeExport(w http.ResponseWriter, r *http.Request, providerID string) {
	q := r.URL.Query()
	submittedOnly, _ := strconv.ParseBool(q.Get("submitted_only"))
	res, err := rt.exporter.ExportCSV(services.ExportParams{
		ProviderID:    providerID,
		Format:        strings.ToLower(q.Get("format")),
		SubmittedOnly: submittedOnly,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCSV(w, res)
}
