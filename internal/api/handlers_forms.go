package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

// GET /api/providers[?with_questions=1]
func (rt *Router) handleProviders(w http.ResponseWriter, r *http.Request) {
	var (
		ps  []*models.Provider
		err error
	)
	if r.URL.Query().Get("with_questions") != "" {
		ps, err = rt.schema.ProvidersWithQuestions()
	} else {
		ps, err = rt.schema.ListProviders()
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": ps})
}

// GET /api/providers/{providerID}/form
func (rt *Router) handleProviderForm(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "providerID")
	if c := caller(r); c.Role == models.RoleAgent && c.PID != pid {
		writeServiceError(w, r, services.NewForbiddenError("agents may only view their own provider"))
		return
	}
	form, err := rt.schema.ProviderForm(pid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// GET /api/me/dashboard
func (rt *Router) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.analytics.UserDashboard(caller(r).UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": entries})
}

type formView struct {
	Form      *services.ProviderForm `json:"form"`
	Status    models.FormStatus      `json:"status"`
	Responses []*models.Response     `json:"responses"`
}

func (rt *Router) formView(userID, providerID string) (*formView, error) {
	form, err := rt.schema.ProviderForm(providerID)
	if err != nil {
		return nil, err
	}
	rs, err := rt.ledger.GetResponsesByUser(userID, providerID)
	if err != nil {
		return nil, err
	}
	status, err := rt.ledger.Status(userID, providerID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []*models.Response{}
	}
	return &formView{Form: form, Status: status, Responses: rs}, nil
}

// GET /api/forms/{providerID}
func (rt *Router) handleGetForm(w http.ResponseWriter, r *http.Request) {
	view, err := rt.formView(caller(r).UID, chi.URLParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PUT /api/forms/{providerID}/answers
// {"answers":[{"section_id":"...","question_id":"...","answer":"x" | ["a","b"]}]}
func (rt *Router) handleSaveAnswers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []services.SaveAnswer `json:"answers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	pid := chi.URLParam(r, "providerID")
	for i := range req.Answers {
		req.Answers[i].ProviderID = pid
	}
	uid := caller(r).UID
	saved, err := rt.ledger.SaveAnswers(uid, req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status, err := rt.ledger.Status(uid, pid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": saved, "status": status})
}

// PUT /api/forms/{providerID}/sections/{sectionID}/draft
// {"answers":{"<question id>":"x" | ["a","b"]}}
func (rt *Router) handleStageDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers map[string]models.Answer `json:"answers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	uid, pid := caller(r).UID, chi.URLParam(r, "providerID")
	status, err := rt.ledger.Status(uid, pid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if status == models.StatusSubmitted {
		writeServiceError(w, r, services.ErrFormSubmitted)
		return
	}
	if err := rt.autosave.Stage(uid, pid, chi.URLParam(r, "sectionID"), req.Answers); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"staged": len(req.Answers)})
}

// POST /api/forms/{providerID}/sections/{sectionID}/flush
func (rt *Router) handleFlushDraft(w http.ResponseWriter, r *http.Request) {
	uid := caller(r).UID
	if err := rt.autosave.Flush(uid, chi.URLParam(r, "sectionID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := rt.formView(uid, chi.URLParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/forms/{providerID}/submit
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := rt.ledger.SubmitResponses(caller(r).UID, chi.URLParam(r, "providerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
