package api

import (
	"net/http"

	"github.com/xcyber/portal/internal/middleware"
	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Only an admin may create another admin.
	if req.Role == models.RoleAdmin {
		if c, ok := middleware.ClaimsFromContext(r.Context()); !ok || c.Role != models.RoleAdmin {
			writeServiceError(w, r, services.NewForbiddenError("admin accounts are created by admins"))
			return
		}
	}
	res, err := rt.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := rt.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/auth/logout
func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := rt.auth.Logout(r.Context(), caller(r).SID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/auth/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := rt.auth.Me(r.Context(), caller(r).SID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
