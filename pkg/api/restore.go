package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/policy"
)

// Restore replays the stored policies, rules, and datasources into a fresh
// runtime. Individual records that no longer load cleanly are skipped with a
// warning so one bad row cannot keep the server down.
func (s *Server) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	records, err := s.store.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored policies: %w", err)
	}

	for _, record := range records {
		_, err := s.runtime.CreatePolicy(policy.Info{
			ID:           record.ID,
			Name:         record.Name,
			Abbreviation: record.Abbreviation,
			Description:  record.Description,
			Kind:         policy.Kind(record.Kind),
			CreatedAt:    record.CreatedAt,
		})
		if err != nil && !errors.Is(err, policy.ErrPolicyExists) {
			s.logger.Warn().Err(err).Str("policy", record.Name).Msg("Failed to restore policy")
			continue
		}

		ruleRecords, err := s.store.ListRulesByPolicy(ctx, record.Name)
		if err != nil {
			return fmt.Errorf("failed to list stored rules of %s: %w", record.Name, err)
		}

		events := make([]policy.Event, 0, len(ruleRecords))
		for _, rr := range ruleRecords {
			rule, err := datalog.ParseRule(rr.Rule)
			if err != nil {
				s.logger.Warn().Err(err).Str("policy", record.Name).Str("rule", rr.Rule).
					Msg("Skipping unparseable stored rule")
				continue
			}
			events = append(events, policy.Event{Policy: record.Name, Rule: rule, Insert: true})
		}
		if _, err := s.runtime.Update(events); err != nil {
			s.logger.Warn().Err(err).Str("policy", record.Name).Msg("Failed to restore rules")
		}
	}

	dsRecords, err := s.store.ListDatasources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored datasources: %w", err)
	}
	for _, record := range dsRecords {
		var dsConfig map[string]string
		if record.Config != "" {
			if err := json.Unmarshal([]byte(record.Config), &dsConfig); err != nil {
				s.logger.Warn().Err(err).Str("datasource", record.Name).
					Msg("Skipping datasource with corrupt config")
				continue
			}
		}
		_, err := s.manager.Add(ctx, datasource.Spec{
			Name:         record.Name,
			Driver:       record.Driver,
			Description:  record.Description,
			Config:       dsConfig,
			PollInterval: record.PollInterval,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("datasource", record.Name).Msg("Failed to restore datasource")
		}
	}

	s.logger.Info().
		Int("policies", len(records)).
		Int("datasources", len(dsRecords)).
		Msg("State restored from store")
	return nil
}
