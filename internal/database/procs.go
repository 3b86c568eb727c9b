package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mercantil/demote-service/internal/types"
)

// Querier is the slice of pgx that the stored-procedure wrappers need.
// Satisfied by *pgxpool.Pool and by pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps the back-office stored procedures. The procedures are the
// system of record for all business writes; this layer only shapes
// parameters (business-code transform, date coercion) and scans results.
type Store struct {
	db Querier
}

// NewStore returns a Store over the given connection source.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// ProcRow is one row of the result set the posting procedures return.
// PendencyID is nil when the posting went through without a note.
type ProcRow struct {
	GeneratedID  int64
	PendencyID   *int64
	PendencyText *string
}

// MovementParams are the inputs to the movement posting procedure.
// Identifiers carry the system check digit; the transform to bare business
// codes happens here.
type MovementParams struct {
	BranchID         int64
	SupplierID       int64
	MovementValue    decimal.Decimal
	RegistrationDate time.Time
	DepositDate      time.Time
	MovementType     types.MovementType
	TypistName       string
	Observation      string
}

// LineDemoteParams are the inputs to the per-line demote posting procedure.
type LineDemoteParams struct {
	InvoiceID         int64
	ProductID         int64
	MarkdownUnitValue decimal.Decimal
	MovementID        *int64
}

// DemoteFilter narrows the demote report query. Nil fields are not
// filtered on.
type DemoteFilter struct {
	BranchID     *int64
	BeginDate    time.Time
	EndDate      time.Time
	ConditionIDs []int64
	StateAcronym *string
	SupplierID   *int64
	ProductID    *int64
}

// RuleFilter narrows the condition-rule query.
type RuleFilter struct {
	BranchID    *int64
	SupplierID  *int64
	ConditionID *int64
}

func scanProcRows(rows pgx.Rows) ([]ProcRow, error) {
	defer rows.Close()

	var out []ProcRow
	for rows.Next() {
		var row ProcRow
		if err := rows.Scan(&row.GeneratedID, &row.PendencyID, &row.PendencyText); err != nil {
			return nil, fmt.Errorf("scanning posting result: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PostMovement calls the supplier movement posting procedure and returns
// its result set.
func (s *Store) PostMovement(ctx context.Context, p MovementParams) ([]ProcRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT generated_id, pendency_id, pendency_text
		FROM post_supplier_movement($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		ToBusinessCode(p.BranchID),
		ToBusinessCode(p.SupplierID),
		p.MovementValue,
		CoerceMovementDate(p.RegistrationDate),
		CoerceMovementDate(p.DepositDate),
		int(p.MovementType),
		p.TypistName,
		p.Observation,
	)
	if err != nil {
		return nil, fmt.Errorf("post_supplier_movement: %w", err)
	}
	return scanProcRows(rows)
}

// PostLineDemote calls the per-line demote posting procedure. MovementID
// is nil when the line is posted without a parent movement.
func (s *Store) PostLineDemote(ctx context.Context, p LineDemoteParams) ([]ProcRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT generated_id, pendency_id, pendency_text
		FROM post_line_demote($1, $2, $3, $4)
	`,
		p.InvoiceID,
		ToBusinessCode(p.ProductID),
		p.MarkdownUnitValue,
		p.MovementID,
	)
	if err != nil {
		return nil, fmt.Errorf("post_line_demote: %w", err)
	}
	return scanProcRows(rows)
}

// GetDemotes runs the demote report query for the given window and filters.
func (s *Store) GetDemotes(ctx context.Context, f DemoteFilter) ([]types.LineItem, error) {
	var branch, supplier, product *int64
	if f.BranchID != nil {
		v := ToBusinessCode(*f.BranchID)
		branch = &v
	}
	if f.SupplierID != nil {
		v := ToBusinessCode(*f.SupplierID)
		supplier = &v
	}
	if f.ProductID != nil {
		v := ToBusinessCode(*f.ProductID)
		product = &v
	}

	rows, err := s.db.Query(ctx, `
		SELECT branch_id, branch_name,
		       client_id, client_name, client_state,
		       supplier_id, supplier_name,
		       product_id, product_name,
		       condition_id, condition_name,
		       invoice_id, invoice_number,
		       quantity,
		       sale_price, sale_price_unit,
		       product_cost, product_cost_unit,
		       average_cost, average_cost_unit,
		       markdown_value, markdown_value_unit,
		       markdown_cost, markdown_cost_unit,
		       markdown_difference,
		       current_margin, new_margin,
		       typist_name, supplier_balance
		FROM get_demotes($1, $2, $3, $4, $5, $6, $7)
	`,
		branch,
		CoerceMovementDate(f.BeginDate),
		CoerceMovementDate(f.EndDate),
		f.ConditionIDs,
		f.StateAcronym,
		supplier,
		product,
	)
	if err != nil {
		return nil, fmt.Errorf("get_demotes: %w", err)
	}
	defer rows.Close()

	var items []types.LineItem
	for rows.Next() {
		var item types.LineItem
		if err := rows.Scan(
			&item.BranchID, &item.BranchName,
			&item.ClientID, &item.ClientName, &item.ClientState,
			&item.SupplierID, &item.SupplierName,
			&item.ProductID, &item.ProductName,
			&item.ConditionID, &item.ConditionName,
			&item.InvoiceID, &item.InvoiceNumber,
			&item.Quantity,
			&item.SalePrice, &item.SalePriceUnit,
			&item.ProductCost, &item.ProductCostUnit,
			&item.AverageCost, &item.AverageCostUnit,
			&item.MarkdownValue, &item.MarkdownValueUnit,
			&item.MarkdownCost, &item.MarkdownCostUnit,
			&item.MarkdownDifference,
			&item.CurrentMargin, &item.NewMargin,
			&item.TypistName, &item.SupplierBalance,
		); err != nil {
			return nil, fmt.Errorf("scanning demote row: %w", err)
		}
		item.BranchID = FromBusinessCode(item.BranchID)
		item.SupplierID = FromBusinessCode(item.SupplierID)
		item.ProductID = FromBusinessCode(item.ProductID)
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetConditionRules lists discount-credit rules matching the filter.
func (s *Store) GetConditionRules(ctx context.Context, f RuleFilter) ([]types.ConditionRule, error) {
	var branch, supplier *int64
	if f.BranchID != nil {
		v := ToBusinessCode(*f.BranchID)
		branch = &v
	}
	if f.SupplierID != nil {
		v := ToBusinessCode(*f.SupplierID)
		supplier = &v
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, condition_id, condition_name,
		       supplier_id, supplier_name, branch_id,
		       description, begin_date, end_date,
		       credited_amount, debited_amount,
		       allow_negative_balance, return_threshold_percent,
		       is_active
		FROM get_condition_rules($1, $2, $3)
	`, branch, supplier, f.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("get_condition_rules: %w", err)
	}
	defer rows.Close()

	var rules []types.ConditionRule
	for rows.Next() {
		var rule types.ConditionRule
		if err := rows.Scan(
			&rule.ID, &rule.ConditionID, &rule.ConditionName,
			&rule.SupplierID, &rule.SupplierName, &rule.BranchID,
			&rule.Description, &rule.BeginDate, &rule.EndDate,
			&rule.CreditedAmount, &rule.DebitedAmount,
			&rule.AllowNegativeBalance, &rule.ReturnThresholdPercent,
			&rule.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scanning condition rule: %w", err)
		}
		rule.BranchID = FromBusinessCode(rule.BranchID)
		rule.SupplierID = FromBusinessCode(rule.SupplierID)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertConditionRule inserts or updates a rule and returns the affected
// row count reported by the procedure. Validation happens before this
// call; the procedure itself is a plain upsert.
func (s *Store) UpsertConditionRule(ctx context.Context, rule types.ConditionRule, isUpdate bool) (int64, error) {
	var affected int64
	err := s.db.QueryRow(ctx, `
		SELECT upsert_condition_rule($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rule.ID,
		rule.ConditionID,
		ToBusinessCode(rule.SupplierID),
		ToBusinessCode(rule.BranchID),
		rule.Description,
		CoerceRuleDate(rule.BeginDate),
		CoerceRuleDate(rule.EndDate),
		rule.CreditedAmount,
		rule.DebitedAmount,
		rule.AllowNegativeBalance,
		rule.ReturnThresholdPercent,
		rule.IsActive,
		isUpdate,
	).Scan(&affected)
	if err != nil {
		return 0, fmt.Errorf("upsert_condition_rule: %w", err)
	}
	return affected, nil
}

// UpsertRuleApplication inserts or updates a per-product rule application.
func (s *Store) UpsertRuleApplication(ctx context.Context, app types.RuleApplication, isUpdate bool) (int64, error) {
	var affected int64
	err := s.db.QueryRow(ctx, `
		SELECT upsert_rule_application($1, $2, $3, $4, $5, $6, $7)
	`,
		app.ID,
		app.RuleID,
		app.ConditionID,
		ToBusinessCode(app.SupplierID),
		ToBusinessCode(app.ProductID),
		app.MarkdownValue,
		isUpdate,
	).Scan(&affected)
	if err != nil {
		return 0, fmt.Errorf("upsert_rule_application: %w", err)
	}
	return affected, nil
}
