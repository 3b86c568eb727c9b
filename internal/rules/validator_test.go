package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/types"
)

type mockRuleStore struct {
	rules   []types.ConditionRule
	listErr error

	upserts []types.ConditionRule
	appUps  []types.RuleApplication
}

func (m *mockRuleStore) GetConditionRules(context.Context, database.RuleFilter) ([]types.ConditionRule, error) {
	return m.rules, m.listErr
}

func (m *mockRuleStore) UpsertConditionRule(_ context.Context, rule types.ConditionRule, _ bool) (int64, error) {
	m.upserts = append(m.upserts, rule)
	return 1, nil
}

func (m *mockRuleStore) UpsertRuleApplication(_ context.Context, app types.RuleApplication, _ bool) (int64, error) {
	m.appUps = append(m.appUps, app)
	return 1, nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestService(store *mockRuleStore) *Service {
	s := NewService(store, zerolog.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

func validRule() types.ConditionRule {
	return types.ConditionRule{
		ID:                     10,
		ConditionID:            4,
		SupplierID:             70,
		BranchID:               10,
		Description:            "quarterly markdown allowance",
		BeginDate:              testNow.AddDate(0, -1, 0),
		EndDate:                testNow.AddDate(0, 2, 0),
		CreditedAmount:         d("5000"),
		DebitedAmount:          d("1200"),
		ReturnThresholdPercent: d("15"),
		IsActive:               true,
	}
}

func TestValidateInsertHappyPath(t *testing.T) {
	svc := newTestService(&mockRuleStore{})

	res, err := svc.Validate(context.Background(), validRule(), false)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestValidateShortCircuitOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.ConditionRule)
		update  bool
		message string
	}{
		{
			"credited must be positive",
			func(r *types.ConditionRule) { r.CreditedAmount = decimal.Zero },
			false,
			"credited amount",
		},
		{
			"negative credited",
			func(r *types.ConditionRule) { r.CreditedAmount = d("-10") },
			false,
			"credited amount",
		},
		{
			"threshold below range",
			func(r *types.ConditionRule) { r.ReturnThresholdPercent = d("-1") },
			false,
			"return threshold",
		},
		{
			"threshold above range",
			func(r *types.ConditionRule) { r.ReturnThresholdPercent = d("100.01") },
			false,
			"return threshold",
		},
		{
			"inverted dates",
			func(r *types.ConditionRule) { r.BeginDate = r.EndDate.AddDate(0, 0, 1) },
			false,
			"begin date",
		},
		{
			"debited above credited on update",
			func(r *types.ConditionRule) { r.DebitedAmount = r.CreditedAmount.Add(d("1")) },
			true,
			"debited amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockRuleStore{rules: []types.ConditionRule{validRule()}}
			svc := newTestService(store)

			rule := validRule()
			tt.mutate(&rule)

			res, err := svc.Validate(context.Background(), rule, tt.update)
			require.NoError(t, err)
			assert.False(t, res.IsValid())
			require.Len(t, res.Errors(), 1, "first failing check short-circuits")
			assert.Contains(t, res.Errors()[0].Text, tt.message)
		})
	}
}

func TestValidateDebitedNotCheckedOnInsert(t *testing.T) {
	svc := newTestService(&mockRuleStore{})

	rule := validRule()
	rule.DebitedAmount = rule.CreditedAmount.Add(d("100"))

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestValidateDescriptionUniqueness(t *testing.T) {
	other := validRule()
	other.ID = 99
	other.BranchID = 20 // different triple, description still collides
	other.IsActive = false
	other.Description = "Verba Açúcar  Cristal"

	store := &mockRuleStore{rules: []types.ConditionRule{other}}
	svc := newTestService(store)

	rule := validRule()
	rule.Description = "verba acucar cristal"

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Contains(t, res.Errors()[0].Text, "description already used by rule 99")
}

func TestValidateOverlap(t *testing.T) {
	other := validRule()
	other.ID = 99
	other.Description = "some other allowance"

	store := &mockRuleStore{rules: []types.ConditionRule{other}}
	svc := newTestService(store)

	rule := validRule()
	rule.ID = 100

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Contains(t, res.Errors()[0].Text, "active rule (99)")
}

func TestValidateOverlapIgnoresOtherBranch(t *testing.T) {
	other := validRule()
	other.ID = 99
	other.Description = "some other allowance"
	other.BranchID = 20

	store := &mockRuleStore{rules: []types.ConditionRule{other}}
	svc := newTestService(store)

	rule := validRule()
	rule.ID = 100

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestValidateOverlapIgnoresInactiveAndExpired(t *testing.T) {
	inactive := validRule()
	inactive.ID = 98
	inactive.Description = "inactive allowance"
	inactive.IsActive = false

	expired := validRule()
	expired.ID = 99
	expired.Description = "expired allowance"
	expired.EndDate = testNow.AddDate(0, 0, -1)

	store := &mockRuleStore{rules: []types.ConditionRule{inactive, expired}}
	svc := newTestService(store)

	rule := validRule()
	rule.ID = 100

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestValidateOverlapEndDateTodayStillConflicts(t *testing.T) {
	other := validRule()
	other.ID = 99
	other.Description = "ends today"
	other.EndDate = testNow

	store := &mockRuleStore{rules: []types.ConditionRule{other}}
	svc := newTestService(store)

	rule := validRule()
	rule.ID = 100

	res, err := svc.Validate(context.Background(), rule, false)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
}

func TestValidateUpdateRequiresExistingRule(t *testing.T) {
	store := &mockRuleStore{}
	svc := newTestService(store)

	rule := validRule()
	rule.ID = 404

	res, err := svc.Validate(context.Background(), rule, true)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Contains(t, res.Errors()[0].Text, "rule 404 does not exist")
}

func TestValidateUpdateAgainstItself(t *testing.T) {
	// updating a rule must not collide with its own description or window
	existing := validRule()
	store := &mockRuleStore{rules: []types.ConditionRule{existing}}
	svc := newTestService(store)

	res, err := svc.Validate(context.Background(), existing, true)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestValidateStoreFailurePropagates(t *testing.T) {
	store := &mockRuleStore{listErr: errors.New("connection refused")}
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), validRule(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSaveSkipsUpsertWhenInvalid(t *testing.T) {
	store := &mockRuleStore{}
	svc := newTestService(store)

	rule := validRule()
	rule.CreditedAmount = decimal.Zero

	res, err := svc.Save(context.Background(), rule, false)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Empty(t, store.upserts)
}

func TestSaveUpsertsWhenValid(t *testing.T) {
	store := &mockRuleStore{}
	svc := newTestService(store)

	res, err := svc.Save(context.Background(), validRule(), false)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	require.Len(t, store.upserts, 1)
	assert.Equal(t, int64(1), res.Value)
}

func TestSaveApplication(t *testing.T) {
	store := &mockRuleStore{}
	svc := newTestService(store)

	app := types.RuleApplication{ID: 1, RuleID: 10, ProductID: 500, MarkdownValue: d("2.30")}
	res, err := svc.SaveApplication(context.Background(), app, true)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	require.Len(t, store.appUps, 1)
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Verba Açúcar", "verba acucar"},
		{"  spaced   out  ", "spaced out"},
		{"PLAIN", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDescription(tt.in), tt.in)
	}
}
