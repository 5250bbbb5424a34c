package http

import (
	"net/http"

	"teamapp/internal/auth"
	"teamapp/internal/services"
)

type statusRequest struct {
	Status string `json:"status"`
}

type commentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// author returns the explicit author or the authenticated user.
func (c commentRequest) author(r *http.Request) string {
	if a := sanitizeInput(c.Author); a != "" {
		return a
	}
	return auth.UsernameFromContext(r.Context())
}

// withID parses {id} and runs fn, writing any error for op.
func withID(w http.ResponseWriter, r *http.Request, op string, fn func(id int) (*JSONResponseBuilder, error)) {
	id, err := PathID(r, "id")
	if err != nil {
		ErrorFrom(r.Context(), op, err).Write(w)
		return
	}
	resp, err := fn(id)
	if err != nil {
		ErrorFrom(r.Context(), op, err).Write(w)
		return
	}
	resp.Write(w)
}

// withBody decodes the request body into a T before running fn.
func withBody[T any](w http.ResponseWriter, r *http.Request, op string, fn func(id int, in T) (*JSONResponseBuilder, error)) {
	withID(w, r, op, func(id int) (*JSONResponseBuilder, error) {
		var in T
		if err := DecodeJSON(r, &in); err != nil {
			return nil, err
		}
		return fn(id, in)
	})
}

func (s *Server) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Commissions.List(r.Context())
	if err != nil {
		ErrorFrom(r.Context(), "list commissions", err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleCreateCommission(w http.ResponseWriter, r *http.Request) {
	var in services.CommissionInput
	if err := DecodeJSON(r, &in); err != nil {
		ErrorFrom(r.Context(), "create commission", err).Write(w)
		return
	}
	c, err := s.deps.Commissions.Create(r.Context(), in)
	if err != nil {
		ErrorFrom(r.Context(), "create commission", err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w)
}

func (s *Server) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "load commission", func(id int) (*JSONResponseBuilder, error) {
		c, err := s.deps.Commissions.Get(r.Context(), id)
		return NewJSONResponse().Body(c), err
	})
}

func (s *Server) handleUpdateCommission(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "update commission", func(id int, in services.CommissionInput) (*JSONResponseBuilder, error) {
		c, err := s.deps.Commissions.Update(r.Context(), id, in)
		return NewJSONResponse().Body(c), err
	})
}

func (s *Server) handleDeleteCommission(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "delete commission", func(id int) (*JSONResponseBuilder, error) {
		err := s.deps.Commissions.Delete(r.Context(), id)
		return NewJSONResponse().Success("commission deleted", nil), err
	})
}

func (s *Server) handleUpdateDeposit(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "update deposit", func(id int, in services.DepositInput) (*JSONResponseBuilder, error) {
		res, err := s.deps.Commissions.UpdateDeposit(r.Context(), id, in)
		return NewJSONResponse().Body(res), err
	})
}

func (s *Server) handleAddDepositPayment(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "record deposit payment", func(id int, in services.PaymentInput) (*JSONResponseBuilder, error) {
		res, err := s.deps.Commissions.AddDepositPayment(r.Context(), id, in)
		return NewJSONResponse().Status(http.StatusCreated).Body(res), err
	})
}

func (s *Server) handleAddSettlement(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "record settlement", func(id int, in services.PaymentInput) (*JSONResponseBuilder, error) {
		res, err := s.deps.Commissions.AddSettlement(r.Context(), id, in)
		return NewJSONResponse().Status(http.StatusCreated).Body(res), err
	})
}

func (s *Server) handleRemoveSettlement(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "remove settlement", func(id int) (*JSONResponseBuilder, error) {
		index, err := PathID(r, "index")
		if err != nil {
			return nil, err
		}
		res, err := s.deps.Commissions.RemoveSettlement(r.Context(), id, index)
		return NewJSONResponse().Body(res), err
	})
}

func (s *Server) handleFinances(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "load finances", func(id int) (*JSONResponseBuilder, error) {
		f, err := s.deps.Commissions.Finances(r.Context(), id)
		return NewJSONResponse().Body(f), err
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "suggest status", func(id int) (*JSONResponseBuilder, error) {
		list, err := s.deps.Commissions.Suggestions(r.Context(), id)
		return NewJSONResponse().Body(list), err
	})
}

func (s *Server) handleApplyStatus(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "update status", func(id int, in statusRequest) (*JSONResponseBuilder, error) {
		c, err := s.deps.Commissions.ApplyStatus(r.Context(), id, in.Status)
		return NewJSONResponse().Body(c), err
	})
}

func (s *Server) handleCommissionComment(w http.ResponseWriter, r *http.Request) {
	withBody(w, r, "add comment", func(id int, in commentRequest) (*JSONResponseBuilder, error) {
		c, err := s.deps.Commissions.AddComment(r.Context(), id, in.author(r), in.Text)
		return NewJSONResponse().Status(http.StatusCreated).Body(c), err
	})
}
