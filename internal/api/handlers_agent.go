package api

import (
	"net/http"
)

// GET /api/agent/overview
func (rt *Router) handleAgentOverview(w http.ResponseWriter, r *http.Request) {
	pid, err := scopedProvider(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ov, err := rt.analytics.AgentOverview(pid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// GET /api/agent/clients?q=
func (rt *Router) handleAgentClients(w http.ResponseWriter, r *http.Request) {
	pid, err := scopedProvider(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	clients, err := rt.analytics.AgentClients(pid, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": pid, "clients": clients})
}

// GET /api/agent/responses
func (rt *Router) handleAgentResponses(w http.ResponseWriter, r *http.Request) {
	pid, err := scopedProvider(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rt.writeProviderResponses(w, r, pid)
}

// GET /api/agent/export
func (rt *Router) handleAgentExport(w http.ResponseWriter, r *http.Request) {
	pid, err := scopedProvider(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rt.writeExport(w, r, pid)
}
