package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/grouping"
	"github.com/mercantil/demote-service/internal/ledger"
	"github.com/mercantil/demote-service/internal/margin"
	"github.com/mercantil/demote-service/internal/types"
)

const dateLayout = "2006-01-02"

// ListDemotesRequest represents query parameters for the demote report
type ListDemotesRequest struct {
	BranchID     *int64 `form:"branchId"`
	BeginDate    string `form:"beginDate" binding:"required,datetime=2006-01-02"`
	EndDate      string `form:"endDate" binding:"required,datetime=2006-01-02"`
	ConditionIDs string `form:"conditionIds"`
	State        string `form:"state"`
	SupplierID   *int64 `form:"supplierId"`
	ProductID    *int64 `form:"productId"`
	View         string `form:"view" binding:"omitempty,oneof=flat compact report"`
}

// ListDemotesResponse represents the demote report response. Exactly one
// of the three collections is populated, matching the requested view.
type ListDemotesResponse struct {
	View    string                   `json:"view"`
	Count   int                      `json:"count"`
	Items   []types.LineItem         `json:"items,omitempty"`
	Compact []types.CompactAggregate `json:"compact,omitempty"`
	Report  []types.ReportAggregate  `json:"report,omitempty"`
}

// ListDemotes returns demote candidates for a date window, optionally
// grouped into the compact or report shape.
// GET /internal/demotes?beginDate=...&endDate=...&view=report
func ListDemotes(c *gin.Context) {
	var req ListDemotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	begin, _ := time.Parse(dateLayout, req.BeginDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(begin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must not be before beginDate"})
		return
	}

	conditionIDs, err := parseIDList(req.ConditionIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conditionIds must be a comma-separated list of integers"})
		return
	}

	filter := database.DemoteFilter{
		BranchID:     req.BranchID,
		BeginDate:    begin,
		EndDate:      end,
		ConditionIDs: conditionIDs,
		SupplierID:   req.SupplierID,
		ProductID:    req.ProductID,
	}
	if req.State != "" {
		filter.StateAcronym = &req.State
	}

	items, err := demoteReader.GetDemotes(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load demotes"})
		return
	}

	view := req.View
	if view == "" {
		view = "flat"
	}

	resp := ListDemotesResponse{View: view}
	switch view {
	case "compact":
		resp.Compact = grouping.Compact(items)
		resp.Count = len(resp.Compact)
	case "report":
		resp.Report = grouping.Report(items)
		resp.Count = len(resp.Report)
	default:
		resp.Items = items
		resp.Count = len(items)
	}

	c.JSON(http.StatusOK, resp)
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PreviewDemotesRequest carries line items whose markdown values were
// edited and whose derived fields need recomputing.
type PreviewDemotesRequest struct {
	Items []types.LineItem `json:"items" binding:"required,min=1,max=500"`
}

// PreviewDemotesResponse returns the edited items with every derived
// field recomputed.
type PreviewDemotesResponse struct {
	Count int              `json:"count"`
	Items []types.LineItem `json:"items"`
}

// PreviewDemotes recomputes the fields that follow from an edited unit
// markdown value. The grouped-row edit, the bulk edit and the per-invoice
// child edit all preview through here, so totals and detail rows always
// derive from the same formulas.
// POST /internal/demotes/preview
func PreviewDemotes(c *gin.Context) {
	var req PreviewDemotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := req.Items
	for i := range items {
		items[i] = withDerivedMargins(items[i])
	}

	c.JSON(http.StatusOK, PreviewDemotesResponse{Count: len(items), Items: items})
}

// withDerivedMargins recomputes everything downstream of the unit markdown
// value: the line totals, the cost after markdown and both margins.
func withDerivedMargins(item types.LineItem) types.LineItem {
	item.MarkdownValue = item.MarkdownValueUnit.Mul(item.Quantity)
	item.MarkdownCostUnit = margin.CostAfterMarkdown(item.AverageCostUnit, item.MarkdownValueUnit)
	item.MarkdownCost = item.MarkdownCostUnit.Mul(item.Quantity)
	item.CurrentMargin = margin.Unit(item.AverageCostUnit, item.SalePriceUnit)
	item.NewMargin = margin.AfterMarkdown(item.AverageCostUnit, item.MarkdownValueUnit, item.SalePriceUnit)
	return item
}

// PostDemotesRequest represents a demote batch submission
type PostDemotesRequest struct {
	Items       []types.LineItem `json:"items" binding:"required,min=1,max=500"`
	DepositDate string           `json:"depositDate" binding:"required,datetime=2006-01-02"`
	Observation string           `json:"observation" binding:"omitempty,max=500"`
}

// PostDemotesResponse carries the per-movement and per-line outcomes of a
// batch submission.
type PostDemotesResponse struct {
	Valid     bool        `json:"valid"`
	Movements []ResultDTO `json:"movements"`
	Lines     []ResultDTO `json:"lines"`
}

// PostDemotes submits a batch of demote line items through the two-phase
// ledger write.
// POST /internal/demotes/post
func PostDemotes(c *gin.Context) {
	var req PostDemotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	depositDate, _ := time.Parse(dateLayout, req.DepositDate)

	result, err := batchPoster.Post(c.Request.Context(), ledger.Batch{
		Items:       req.Items,
		DepositDate: depositDate,
		Observation: req.Observation,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to post demote batch"})
		return
	}

	c.JSON(http.StatusOK, PostDemotesResponse{
		Valid:     result.Valid(),
		Movements: toResultDTOs(result.Movements),
		Lines:     toResultDTOs(result.Lines),
	})
}
