package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teamapp/internal/core"
)

// AgentInput is the editable part of an agent. Active and InTeam default to
// true when omitted.
type AgentInput struct {
	Pseudo   string   `json:"pseudo"`
	Discord  string   `json:"discord"`
	Active   *bool    `json:"active"`
	InTeam   *bool    `json:"inTeam"`
	Roles    []string `json:"roles"`
	Comments string   `json:"comments"`
}

// AgentFilter narrows List. Nil fields match everything.
type AgentFilter struct {
	Active *bool
	InTeam *bool
}

func (f AgentFilter) match(a core.Agent) bool {
	if f.Active != nil && a.Active != *f.Active {
		return false
	}
	if f.InTeam != nil && a.InTeam != *f.InTeam {
		return false
	}
	return true
}

// AgentRef is the lightweight projection used by pickers.
type AgentRef struct {
	ID     int    `json:"id"`
	Pseudo string `json:"pseudo"`
}

type AgentService struct {
	agents *AgentsCollection
	now    func() time.Time
}

func NewAgentService(agents *AgentsCollection) *AgentService {
	return &AgentService{agents: agents, now: func() time.Time { return time.Now().UTC() }}
}

func (s *AgentService) List(ctx context.Context, f AgentFilter) ([]core.Agent, error) {
	doc, err := s.agents.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Agent, 0, len(doc.Agents))
	for _, a := range doc.Agents {
		if f.match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Refs returns id and pseudo of every active agent.
func (s *AgentService) Refs(ctx context.Context) ([]AgentRef, error) {
	active := true
	agents, err := s.List(ctx, AgentFilter{Active: &active})
	if err != nil {
		return nil, err
	}
	out := make([]AgentRef, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentRef{ID: a.ID, Pseudo: a.Pseudo})
	}
	return out, nil
}

func (s *AgentService) Get(ctx context.Context, id int) (core.Agent, error) {
	doc, err := s.agents.Read(ctx)
	if err != nil {
		return core.Agent{}, err
	}
	a, err := doc.Agent(id)
	if err != nil {
		return core.Agent{}, err
	}
	return *a, nil
}

func (in AgentInput) apply(a *core.Agent) {
	a.Pseudo = strings.TrimSpace(in.Pseudo)
	a.Discord = strings.TrimSpace(in.Discord)
	a.Active = in.Active == nil || *in.Active
	a.InTeam = in.InTeam == nil || *in.InTeam
	a.Roles = in.Roles
	a.Comments = strings.TrimSpace(in.Comments)
	a.Normalize()
}

func (s *AgentService) Create(ctx context.Context, in AgentInput) (core.Agent, error) {
	var created core.Agent
	_, err := s.agents.Update(ctx, func(doc *core.AgentsDoc) error {
		a := core.Agent{ID: doc.NextID(), CreatedAt: s.now()}
		in.apply(&a)
		if err := a.Validate(); err != nil {
			return err
		}
		doc.Agents = append(doc.Agents, a)
		created = a
		return nil
	})
	if err != nil {
		return core.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	if !created.InTeam {
		slog.InfoContext(ctx, "Agent created outside the team, marked inactive", "agent_id", created.ID)
	}
	return created, nil
}

func (s *AgentService) Update(ctx context.Context, id int, in AgentInput) (core.Agent, error) {
	var updated core.Agent
	_, err := s.agents.Update(ctx, func(doc *core.AgentsDoc) error {
		a, err := doc.Agent(id)
		if err != nil {
			return err
		}
		next := *a
		in.apply(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		now := s.now()
		next.UpdatedAt = &now
		*a = next
		updated = next
		return nil
	})
	if err != nil {
		return core.Agent{}, fmt.Errorf("update agent %d: %w", id, err)
	}
	return updated, nil
}

func (s *AgentService) Delete(ctx context.Context, id int) error {
	_, err := s.agents.Update(ctx, func(doc *core.AgentsDoc) error {
		return doc.Delete(id)
	})
	if err != nil {
		return fmt.Errorf("delete agent %d: %w", id, err)
	}
	return nil
}
