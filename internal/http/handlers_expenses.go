package http

import (
	"net/http"
	"strings"

	"teamapp/internal/auth"
	"teamapp/internal/core"
	"teamapp/internal/services"
)

// handleListExpenses materializes due recurring expenses before answering,
// so every read sees an up-to-date document.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	var f services.ExpenseFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := core.ParseExpenseStatus(raw)
		if err != nil {
			ErrorFrom(r.Context(), "list expenses", core.NewValidationError("status", err)).Write(w)
			return
		}
		f.Status = st
	}
	f.Category = sanitizeInput(r.URL.Query().Get("category"))

	doc, err := s.deps.Expenses.List(r.Context(), f)
	if err != nil {
		ErrorFrom(r.Context(), "list expenses", err).Write(w)
		return
	}
	NewJSONResponse().Body(doc).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFrom(r.Context(), "create expense", err).Write(w)
		return
	}
	e, err := s.deps.Expenses.Create(r.Context(), auth.UsernameFromContext(r.Context()), in)
	if err != nil {
		ErrorFrom(r.Context(), "create expense", err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(e).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "load expense", func(id int) (*JSONResponseBuilder, error) {
		e, err := s.deps.Expenses.Get(r.Context(), id)
		return NewJSONResponse().Body(e), err
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "update expense", func(id int, in services.ExpenseInput) (*JSONResponseBuilder, error) {
		e, err := s.deps.Expenses.Update(r.Context(), id, auth.UsernameFromContext(r.Context()), in)
		return NewJSONResponse().Body(e), err
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "delete expense", func(id int) (*JSONResponseBuilder, error) {
		err := s.deps.Expenses.Delete(r.Context(), id)
		return NewJSONResponse().Success("expense deleted", nil), err
	})
}

func (s *Server) handleExpenseComment(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "add comment", func(id int, in commentRequest) (*JSONResponseBuilder, error) {
		e, err := s.deps.Expenses.AddComment(r.Context(), id, in.author(r), in.Text)
		return NewJSONResponse().Status(http.StatusCreated).Body(e), err
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Expenses.ListTemplates(r.Context())
	if err != nil {
		ErrorFrom(r.Context(), "list templates", err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in services.TemplateInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFrom(r.Context(), "create template", err).Write(w)
		return
	}
	t, err := s.deps.Expenses.CreateTemplate(r.Context(), in)
	if err != nil {
		ErrorFrom(r.Context(), "create template", err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(t).Write(w)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "load template", func(id int) (*JSONResponseBuilder, error) {
		t, err := s.deps.Expenses.GetTemplate(r.Context(), id)
		return NewJSONResponse().Body(t), err
	})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "update template", func(id int, in services.TemplateInput) (*JSONResponseBuilder, error) {
		t, err := s.deps.Expenses.UpdateTemplate(r.Context(), id, in)
		return NewJSONResponse().Body(t), err
	})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "delete template", func(id int) (*JSONResponseBuilder, error) {
		err := s.deps.Expenses.DeleteTemplate(r.Context(), id)
		return NewJSONResponse().Success("template deleted", nil), err
	})
}

// handleGenerate runs materialization explicitly and reports the counts.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Expenses.Generate(r.Context())
	if err != nil {
		ErrorFrom(r.Context(), "generate expenses", err).Write(w)
		return
	}
	NewJSONResponse().Success("", map[string]any{
		"created":       res.Created,
		"deactivated":   res.Deactivated,
		"skipped":       res.Skipped,
		"totalExpenses": res.TotalExpenses,
	}).Write(w)
}

func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "instantiate template", func(id int) (*JSONResponseBuilder, error) {
		e, err := s.deps.Expenses.Instantiate(r.Context(), id)
		return NewJSONResponse().Status(http.StatusCreated).Body(e), err
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Summary.Summary(r.Context())
	if err != nil {
		ErrorFrom(r.Context(), "build summary", err).Write(w)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}
