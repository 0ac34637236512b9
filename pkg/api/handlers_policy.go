package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/radekpospisil/congress/pkg/stores"
)

// canonicalRuleText renders a rule the way it is stored, so inserts and
// deletes of the same rule match regardless of literal order.
func canonicalRuleText(rule datalog.Rule) string {
	return datalog.ReorderForSafety(rule).String()
}

// ensurePolicyRecord writes the policy row when the store does not have it
// yet. Policies born outside the API, the default policy and datasource
// backing policies among them, get their row on the first rule write so the
// rules foreign key holds.
func (s *Server) ensurePolicyRecord(ctx context.Context, name string) error {
	_, err := s.store.GetPolicyByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, stores.ErrNotFound) {
		return err
	}

	info, err := s.runtime.GetPolicy(name)
	if err != nil {
		return err
	}
	return s.store.CreatePolicy(ctx, &stores.PolicyRecord{
		ID:           info.ID,
		Name:         info.Name,
		Abbreviation: info.Abbreviation,
		Description:  info.Description,
		Kind:         string(info.Kind),
		CreatedAt:    info.CreatedAt,
	})
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.runtime.Policies())
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	info, err := s.runtime.CreatePolicy(policy.Info{
		Name:         req.Name,
		Abbreviation: req.Abbreviation,
		Description:  req.Description,
		Kind:         policy.Kind(req.Kind),
	})
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}

	if s.store != nil {
		record := &stores.PolicyRecord{
			ID:           info.ID,
			Name:         info.Name,
			Abbreviation: info.Abbreviation,
			Description:  info.Description,
			Kind:         string(info.Kind),
			CreatedAt:    info.CreatedAt,
		}
		if err := s.store.CreatePolicy(r.Context(), record); err != nil {
			// Keep runtime and store consistent.
			_ = s.runtime.DeletePolicy(info.Name)
			s.respondError(w, http.StatusInternalServerError, "failed to persist policy: "+err.Error())
			return
		}
	}

	s.respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	info, err := s.runtime.GetPolicy(r.PathValue("name"))
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.runtime.DeletePolicy(name); err != nil {
		s.respondRuntimeError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.DeletePolicy(r.Context(), name); err != nil {
			// The runtime is the source of truth; a stale store record is
			// reconciled by the next restore.
			s.logger.Warn().Err(err).Str("policy", name).Msg("Failed to delete stored policy")
		}
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.runtime.Content(r.PathValue("name"))
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponse{Rule: rule.String()})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleInsertRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req ruleRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, changed, err := s.runtime.InsertRule(name, req.Rule)
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}

	if s.store != nil && changed {
		if err := s.ensurePolicyRecord(r.Context(), name); err != nil {
			_, _ = s.runtime.DeleteRule(name, rule.String())
			s.respondError(w, http.StatusInternalServerError, "failed to persist policy: "+err.Error())
			return
		}
		record := &stores.RuleRecord{
			ID:         uuid.NewString(),
			PolicyName: name,
			Rule:       canonicalRuleText(rule),
			Comment:    req.Comment,
			CreatedAt:  time.Now(),
		}
		if err := s.store.InsertRule(r.Context(), record); err != nil {
			_, _ = s.runtime.DeleteRule(name, rule.String())
			s.respondError(w, http.StatusInternalServerError, "failed to persist rule: "+err.Error())
			return
		}
	}

	s.respondJSON(w, http.StatusCreated, ruleResponse{Rule: rule.String()})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req ruleRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	changed, err := s.runtime.DeleteRule(name, req.Rule)
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}
	if !changed {
		s.respondError(w, http.StatusNotFound, "rule not found in policy "+name)
		return
	}

	if s.store != nil {
		rule, err := datalog.ParseRule(req.Rule)
		if err == nil {
			if err := s.store.DeleteRule(r.Context(), name, canonicalRuleText(rule)); err != nil {
				s.logger.Warn().Err(err).Str("policy", name).Msg("Failed to delete stored rule")
			}
		}
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.runtime.Query(r.Context(), r.PathValue("name"), req.Query)
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	events := make([]policy.Event, 0, len(req.Changes))
	for _, change := range req.Changes {
		rule, err := datalog.ParseRule(change.Rule)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid rule in changes: "+err.Error())
			return
		}
		events = append(events, policy.Event{
			Policy: change.Policy,
			Rule:   rule,
			Insert: change.Insert,
		})
	}

	result, err := s.runtime.Simulate(r.Context(), r.PathValue("name"), req.Query, events)
	if err != nil {
		s.respondRuntimeError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
