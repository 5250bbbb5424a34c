package http

import (
	"net/http"

	"teamapp/internal/services"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	var f services.AgentFilter
	var err error
	if f.Active, err = QueryBool(r, "active"); err != nil {
		ErrorFrom(r.Context(), "list agents", err).Write(w)
		return
	}
	if f.InTeam, err = QueryBool(r, "inTeam"); err != nil {
		ErrorFrom(r.Context(), "list agents", err).Write(w)
		return
	}
	agents, err := s.deps.Agents.List(r.Context(), f)
	if err != nil {
		ErrorFrom(r.Context(), "list agents", err).Write(w)
		return
	}
	NewJSONResponse().Body(agents).Write(w)
}

// handleAgentRefs returns the {id, pseudo} pairs used by participant pickers.
func (s *Server) handleAgentRefs(w http.ResponseWriter, r *http.Request) {
	refs, err := s.deps.Agents.Refs(r.Context())
	if err != nil {
		ErrorFrom(r.Context(), "list agents", err).Write(w)
		return
	}
	NewJSONResponse().Body(refs).Write(w)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		ErrorFrom(r.Context(), "load agent", err).Write(w)
		return
	}
	a, err := s.deps.Agents.Get(r.Context(), id)
	if err != nil {
		ErrorFrom(r.Context(), "load agent", err).Write(w)
		return
	}
	NewJSONResponse().Body(a).Write(w)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in services.AgentInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFrom(r.Context(), "create agent", err).Write(w)
		return
	}
	a, err := s.deps.Agents.Create(r.Context(), in)
	if err != nil {
		ErrorFrom(r.Context(), "create agent", err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(a).Write(w)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		ErrorFrom(r.Context(), "update agent", err).Write(w)
		return
	}
	var in services.AgentInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFrom(r.Context(), "update agent", err).Write(w)
		return
	}
	a, err := s.deps.Agents.Update(r.Context(), id, in)
	if err != nil {
		ErrorFrom(r.Context(), "update agent", err).Write(w)
		return
	}
	NewJSONResponse().Body(a).Write(w)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		ErrorFrom(r.Context(), "delete agent", err).Write(w)
		return
	}
	if err := s.deps.Agents.Delete(r.Context(), id); err != nil {
		ErrorFrom(r.Context(), "delete agent", err).Write(w)
		return
	}
	NewJSONResponse().Success("agent deleted", nil).Write(w)
}
