package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a supplier ledger movement.
type MovementType int

const (
	MovementTypeUnknown MovementType = 0
	MovementTypeCredit  MovementType = 1
	MovementTypeDebit   MovementType = 2
)

var movementTypeLabels = map[MovementType]string{
	MovementTypeUnknown: "unknown",
	MovementTypeCredit:  "credit",
	MovementTypeDebit:   "debit",
}

func (m MovementType) String() string {
	if label, ok := movementTypeLabels[m]; ok {
		return label
	}
	return movementTypeLabels[MovementTypeUnknown]
}

// DefaultTypistName is assigned to line items whose typist field is blank,
// marking rows that entered the system through the integration feed.
const DefaultTypistName = "Integrator"

// NormalizeTypist maps blank or whitespace-only typist names onto
// DefaultTypistName.
func NormalizeTypist(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultTypistName
	}
	return name
}

// LineItem is a single per-invoice-line demote (markdown) candidate as
// returned by the demote report query. Monetary fields come in pairs: a
// line total and the corresponding per-unit value.
type LineItem struct {
	BranchID   int64  `json:"branchId"`
	BranchName string `json:"branchName"`

	ClientID    int64  `json:"clientId"`
	ClientName  string `json:"clientName"`
	ClientState string `json:"clientState"`

	SupplierID   int64  `json:"supplierId"`
	SupplierName string `json:"supplierName"`

	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`

	// ConditionID is nullable: rows sold outside any discount condition
	// carry no condition at all, which is not the same as condition 0.
	ConditionID   *int64 `json:"conditionId"`
	ConditionName string `json:"conditionName"`

	InvoiceID     int64  `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`

	Quantity decimal.Decimal `json:"quantity"`

	SalePrice     decimal.Decimal `json:"salePrice"`
	SalePriceUnit decimal.Decimal `json:"salePriceUnit"`

	ProductCost     decimal.Decimal `json:"productCost"`
	ProductCostUnit decimal.Decimal `json:"productCostUnit"`

	AverageCost     decimal.Decimal `json:"averageCost"`
	AverageCostUnit decimal.Decimal `json:"averageCostUnit"`

	MarkdownValue     decimal.Decimal `json:"markdownValue"`
	MarkdownValueUnit decimal.Decimal `json:"markdownValueUnit"`

	MarkdownCost     decimal.Decimal `json:"markdownCost"`
	MarkdownCostUnit decimal.Decimal `json:"markdownCostUnit"`

	// MarkdownDifference is the signed value this line contributes to the
	// supplier ledger: positive when the line sold above the new markdown,
	// negative when below it.
	MarkdownDifference decimal.Decimal `json:"markdownDifference"`

	CurrentMargin decimal.Decimal `json:"currentMargin"`
	NewMargin     decimal.Decimal `json:"newMargin"`

	TypistName string `json:"typistName"`

	// SupplierBalance is the supplier's running ledger balance at the time
	// the report row was produced. Nullable: suppliers with no ledger yet
	// group separately from suppliers at exactly zero.
	SupplierBalance *decimal.Decimal `json:"supplierBalance"`
}

// LedgerMovement is one credit or debit posting against a supplier ledger,
// aggregated from line items sharing branch, supplier and typist. The id
// the posting procedure generates travels on the posting result, not here.
type LedgerMovement struct {
	BranchID   int64  `json:"branchId"`
	SupplierID int64  `json:"supplierId"`
	TypistName string `json:"typistName"`

	MovementValue decimal.Decimal `json:"movementValue"`
	MovementType  MovementType    `json:"movementTypeId"`

	RegistrationDate time.Time `json:"registrationDate"`
	DepositDate      time.Time `json:"depositDate"`
	Observation      string    `json:"observation"`

	Items []LineItem `json:"items,omitempty"`
}

// CompactAggregate groups line items by branch, supplier and product.
// The embedded LineItem carries the first row of the group with the
// markdown difference replaced by the group total; all other fields pass
// through unchanged.
type CompactAggregate struct {
	LineItem
	Items []LineItem `json:"children"`
}

// ReportAggregate groups line items by branch, client state, supplier,
// product, condition and supplier balance. Monetary totals are summed,
// per-unit values and margins are averaged; display names come from the
// first row of the group.
type ReportAggregate struct {
	LineItem
	Items []LineItem `json:"children"`
}

// ConditionRule is a time-bounded discount-credit contract for a
// (condition, supplier, branch) triple.
type ConditionRule struct {
	ID int64 `json:"id"`

	ConditionID   int64  `json:"conditionId"`
	ConditionName string `json:"conditionName"`

	SupplierID   int64  `json:"supplierId"`
	SupplierName string `json:"supplierName"`

	BranchID int64 `json:"branchId"`

	Description string `json:"description"`

	BeginDate time.Time `json:"beginDate"`
	EndDate   time.Time `json:"endDate"`

	CreditedAmount decimal.Decimal `json:"creditedAmount"`
	DebitedAmount  decimal.Decimal `json:"debitedAmount"`

	AllowNegativeBalance   bool            `json:"allowNegativeBalance"`
	ReturnThresholdPercent decimal.Decimal `json:"returnThresholdPercent"`

	IsActive bool `json:"isActive"`
}

// Balance is the remaining credit on the rule.
func (r ConditionRule) Balance() decimal.Decimal {
	return r.CreditedAmount.Sub(r.DebitedAmount)
}

// RuleApplication records how much of a condition rule's credit was
// consumed by one product. Only the markdown value is mutable after
// creation.
type RuleApplication struct {
	ID     int64 `json:"id"`
	RuleID int64 `json:"ruleId"`

	ConditionID   int64  `json:"conditionId"`
	ConditionName string `json:"conditionName"`

	SupplierID   int64  `json:"supplierId"`
	SupplierName string `json:"supplierName"`

	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`

	MarkdownValue decimal.Decimal `json:"markdownValue"`
	UsedCredit    decimal.Decimal `json:"usedCredit"`
}
