package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/types"
)

// ListRulesRequest represents query parameters for listing condition rules
type ListRulesRequest struct {
	BranchID    *int64 `form:"branchId"`
	SupplierID  *int64 `form:"supplierId"`
	ConditionID *int64 `form:"conditionId"`
}

// RuleBalanceDTO is a condition rule with its derived balance.
type RuleBalanceDTO struct {
	types.ConditionRule
	Balance decimal.Decimal `json:"balance"`
}

// ListRules lists discount-credit rules matching the filter.
// GET /internal/rules?supplierId=70
func ListRules(c *gin.Context) {
	var req ListRulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules, err := demoteReader.GetConditionRules(c.Request.Context(), database.RuleFilter{
		BranchID:    req.BranchID,
		SupplierID:  req.SupplierID,
		ConditionID: req.ConditionID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load condition rules"})
		return
	}

	out := make([]RuleBalanceDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, RuleBalanceDTO{ConditionRule: rule, Balance: rule.Balance()})
	}

	c.JSON(http.StatusOK, gin.H{"rules": out, "count": len(out)})
}

// RuleRequest represents the payload for inserting or updating a rule
type RuleRequest struct {
	ConditionID            int64           `json:"conditionId" binding:"required"`
	SupplierID             int64           `json:"supplierId" binding:"required"`
	BranchID               int64           `json:"branchId" binding:"required"`
	Description            string          `json:"description" binding:"required,notblank,max=200"`
	BeginDate              string          `json:"beginDate" binding:"required,datetime=2006-01-02"`
	EndDate                string          `json:"endDate" binding:"required,datetime=2006-01-02"`
	CreditedAmount         decimal.Decimal `json:"creditedAmount"`
	DebitedAmount          decimal.Decimal `json:"debitedAmount"`
	AllowNegativeBalance   bool            `json:"allowNegativeBalance"`
	ReturnThresholdPercent decimal.Decimal `json:"returnThresholdPercent"`
	IsActive               bool            `json:"isActive"`
}

func (r RuleRequest) toRule(id int64) types.ConditionRule {
	begin, _ := time.Parse(dateLayout, r.BeginDate)
	end, _ := time.Parse(dateLayout, r.EndDate)

	return types.ConditionRule{
		ID:                     id,
		ConditionID:            r.ConditionID,
		SupplierID:             r.SupplierID,
		BranchID:               r.BranchID,
		Description:            r.Description,
		BeginDate:              begin,
		EndDate:                end,
		CreditedAmount:         r.CreditedAmount,
		DebitedAmount:          r.DebitedAmount,
		AllowNegativeBalance:   r.AllowNegativeBalance,
		ReturnThresholdPercent: r.ReturnThresholdPercent,
		IsActive:               r.IsActive,
	}
}

// CreateRule inserts a new condition rule after validation.
// POST /internal/rules
func CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ruleWriter.Save(c.Request.Context(), req.toRule(0), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save condition rule"})
		return
	}

	status := http.StatusCreated
	if !res.IsValid() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, toResultDTO(res))
}

// UpdateRule updates an existing condition rule after validation. The
// debited amount and the active flag are written exactly as supplied.
// PUT /internal/rules/:id
func UpdateRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ruleWriter.Save(c.Request.Context(), req.toRule(id), true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save condition rule"})
		return
	}

	status := http.StatusOK
	if !res.IsValid() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, toResultDTO(res))
}

// ApplicationRequest represents the payload for a per-product rule
// application
type ApplicationRequest struct {
	ConditionID   int64           `json:"conditionId" binding:"required"`
	SupplierID    int64           `json:"supplierId" binding:"required"`
	ProductID     int64           `json:"productId" binding:"required"`
	MarkdownValue decimal.Decimal `json:"markdownValue"`
}

// CreateApplication records a product's consumption of a rule's credit.
// POST /internal/rules/:id/applications
func CreateApplication(c *gin.Context) {
	ruleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || ruleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ruleWriter.SaveApplication(c.Request.Context(), types.RuleApplication{
		RuleID:        ruleID,
		ConditionID:   req.ConditionID,
		SupplierID:    req.SupplierID,
		ProductID:     req.ProductID,
		MarkdownValue: req.MarkdownValue,
	}, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rule application"})
		return
	}

	c.JSON(http.StatusCreated, toResultDTO(res))
}

// UpdateApplicationRequest carries the only mutable field of an
// application.
type UpdateApplicationRequest struct {
	MarkdownValue decimal.Decimal `json:"markdownValue"`
}

// UpdateApplication changes an application's markdown value.
// PUT /internal/applications/:id
func UpdateApplication(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return
	}

	var req UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ruleWriter.SaveApplication(c.Request.Context(), types.RuleApplication{
		ID:            id,
		MarkdownValue: req.MarkdownValue,
	}, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rule application"})
		return
	}

	c.JSON(http.StatusOK, toResultDTO(res))
}
