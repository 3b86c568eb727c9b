// Package rules validates and persists discount-credit condition rules and
// their per-product applications.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/types"
	"github.com/mercantil/demote-service/internal/validation"
)

// RuleStore is the slice of the persistence boundary the rule service
// needs. Satisfied by *database.Store.
type RuleStore interface {
	GetConditionRules(ctx context.Context, f database.RuleFilter) ([]types.ConditionRule, error)
	UpsertConditionRule(ctx context.Context, rule types.ConditionRule, isUpdate bool) (int64, error)
	UpsertRuleApplication(ctx context.Context, app types.RuleApplication, isUpdate bool) (int64, error)
}

var hundred = decimal.NewFromInt(100)

// Service gates all writes to the condition-rule table. The overlap and
// uniqueness checks read current rules through the store without a lock;
// the persistence layer's partial unique index on the active triple is the
// backstop for concurrent submissions.
type Service struct {
	store  RuleStore
	logger zerolog.Logger

	now func() time.Time
}

// NewService returns a rule service over the given store.
func NewService(store RuleStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Validate runs the business checks for an insert or update. Checks run in
// a fixed order and the first failing check short-circuits with a single
// error.
func (s *Service) Validate(ctx context.Context, rule types.ConditionRule, isUpdate bool) (*validation.Result, error) {
	res := validation.NewResult()

	if !rule.CreditedAmount.IsPositive() {
		res.AddErrorKeyed(rule.Description, "credited amount must be greater than zero")
		return res, nil
	}

	if rule.ReturnThresholdPercent.IsNegative() || rule.ReturnThresholdPercent.GreaterThan(hundred) {
		res.AddErrorKeyed(rule.Description, "return threshold must be between 0 and 100 percent")
		return res, nil
	}

	if rule.BeginDate.After(rule.EndDate) {
		res.AddErrorKeyed(rule.Description, "begin date must not be after end date")
		return res, nil
	}

	if isUpdate && rule.DebitedAmount.GreaterThan(rule.CreditedAmount) {
		res.AddErrorKeyed(rule.Description, "debited amount must not exceed credited amount")
		return res, nil
	}

	existing, err := s.store.GetConditionRules(ctx, database.RuleFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading condition rules: %w", err)
	}

	wantDescription := NormalizeDescription(rule.Description)
	for _, other := range existing {
		if other.ID == rule.ID {
			continue
		}
		if NormalizeDescription(other.Description) == wantDescription {
			res.AddErrorKeyed(rule.Description, fmt.Sprintf("description already used by rule %d", other.ID))
			return res, nil
		}
	}

	// Only one currently-valid active rule per (condition, supplier,
	// branch) triple. Begin dates are not compared: a rule counts as
	// conflicting while its end date has not passed, regardless of when
	// it starts.
	now := s.now()
	for _, other := range existing {
		if other.ID == rule.ID {
			continue
		}
		if other.ConditionID == rule.ConditionID &&
			other.SupplierID == rule.SupplierID &&
			other.BranchID == rule.BranchID &&
			other.IsActive &&
			!other.EndDate.Before(now) {
			res.AddErrorKeyed(rule.Description, fmt.Sprintf("an active rule (%d) already covers this condition, supplier and branch", other.ID))
			return res, nil
		}
	}

	if isUpdate {
		found := false
		for _, other := range existing {
			if other.ID == rule.ID {
				found = true
				break
			}
		}
		if !found {
			res.AddErrorKeyed(rule.Description, fmt.Sprintf("rule %d does not exist", rule.ID))
			return res, nil
		}
	}

	return res, nil
}

// Save validates the rule and, when valid, upserts it. The upsert is a
// plain write: debited amount and the active flag are taken exactly as
// supplied by the caller.
func (s *Service) Save(ctx context.Context, rule types.ConditionRule, isUpdate bool) (*validation.Result, error) {
	res, err := s.Validate(ctx, rule, isUpdate)
	if err != nil {
		return nil, err
	}
	if !res.IsValid() {
		return res, nil
	}

	affected, err := s.store.UpsertConditionRule(ctx, rule, isUpdate)
	if err != nil {
		return nil, fmt.Errorf("saving condition rule: %w", err)
	}

	s.logger.Info().
		Int64("rule", rule.ID).
		Bool("update", isUpdate).
		Int64("affected", affected).
		Msg("Saved condition rule")

	res.Value = affected
	return res, nil
}

// SaveApplication upserts a per-product rule application. Updates may only
// change the markdown value; the procedure ignores other fields on update.
func (s *Service) SaveApplication(ctx context.Context, app types.RuleApplication, isUpdate bool) (*validation.Result, error) {
	res := validation.NewResult()

	affected, err := s.store.UpsertRuleApplication(ctx, app, isUpdate)
	if err != nil {
		return nil, fmt.Errorf("saving rule application: %w", err)
	}

	s.logger.Info().
		Int64("application", app.ID).
		Int64("rule", app.RuleID).
		Bool("update", isUpdate).
		Msg("Saved rule application")

	res.Value = affected
	return res, nil
}
