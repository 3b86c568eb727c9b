package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/ledger"
	"github.com/mercantil/demote-service/internal/types"
	"github.com/mercantil/demote-service/internal/validation"
)

type mockReader struct {
	items   []types.LineItem
	rules   []types.ConditionRule
	lastFil database.DemoteFilter
}

func (m *mockReader) GetDemotes(_ context.Context, f database.DemoteFilter) ([]types.LineItem, error) {
	m.lastFil = f
	return m.items, nil
}

func (m *mockReader) GetConditionRules(context.Context, database.RuleFilter) ([]types.ConditionRule, error) {
	return m.rules, nil
}

type mockPoster struct {
	lastBatch ledger.Batch
	result    *ledger.BatchResult
}

func (m *mockPoster) Post(_ context.Context, batch ledger.Batch) (*ledger.BatchResult, error) {
	m.lastBatch = batch
	if m.result != nil {
		return m.result, nil
	}
	return &ledger.BatchResult{}, nil
}

type mockRuleWriter struct {
	lastRule types.ConditionRule
	lastApp  types.RuleApplication
	result   *validation.Result
}

func (m *mockRuleWriter) Save(_ context.Context, rule types.ConditionRule, _ bool) (*validation.Result, error) {
	m.lastRule = rule
	if m.result != nil {
		return m.result, nil
	}
	return validation.NewResult(), nil
}

func (m *mockRuleWriter) SaveApplication(_ context.Context, app types.RuleApplication, _ bool) (*validation.Result, error) {
	m.lastApp = app
	if m.result != nil {
		return m.result, nil
	}
	return validation.NewResult(), nil
}

func setupRouter(reader *mockReader, poster *mockPoster, writer *mockRuleWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	InitServices(reader, poster, writer)

	router := gin.New()
	router.GET("/internal/demotes", ListDemotes)
	router.POST("/internal/demotes/preview", PreviewDemotes)
	router.POST("/internal/demotes/post", PostDemotes)
	router.GET("/internal/rules", ListRules)
	router.POST("/internal/rules", CreateRule)
	router.PUT("/internal/rules/:id", UpdateRule)
	router.POST("/internal/rules/:id/applications", CreateApplication)
	router.PUT("/internal/applications/:id", UpdateApplication)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleItem(diff string) types.LineItem {
	return types.LineItem{
		BranchID:           10,
		SupplierID:         70,
		ProductID:          500,
		InvoiceID:          42,
		InvoiceNumber:      "NF-1",
		TypistName:         "ana",
		MarkdownDifference: decimal.RequireFromString(diff),
	}
}

func TestListDemotesRequiresWindow(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/demotes", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDemotesRejectsInvertedWindow(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/demotes?beginDate=2026-05-10&endDate=2026-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDemotesFlat(t *testing.T) {
	reader := &mockReader{items: []types.LineItem{sampleItem("1"), sampleItem("2")}}
	router := setupRouter(reader, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/demotes?beginDate=2026-05-01&endDate=2026-05-31&conditionIds=4,5&state=SP", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListDemotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "flat", resp.View)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Items, 2)

	assert.Equal(t, []int64{4, 5}, reader.lastFil.ConditionIDs)
	require.NotNil(t, reader.lastFil.StateAcronym)
	assert.Equal(t, "SP", *reader.lastFil.StateAcronym)
}

func TestListDemotesCompactView(t *testing.T) {
	reader := &mockReader{items: []types.LineItem{sampleItem("1"), sampleItem("2")}}
	router := setupRouter(reader, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/demotes?beginDate=2026-05-01&endDate=2026-05-31&view=compact", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListDemotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "compact", resp.View)
	require.Equal(t, 1, resp.Count)
	assert.True(t, resp.Compact[0].MarkdownDifference.Equal(decimal.RequireFromString("3")))
}

func TestListDemotesRejectsBadConditionIDs(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/demotes?beginDate=2026-05-01&endDate=2026-05-31&conditionIds=4,x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewDemotesRequiresItems(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodPost, "/internal/demotes/preview", map[string]any{
		"items": []any{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewDemotesRecomputesDerivedFields(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	item := sampleItem("0")
	item.Quantity = decimal.RequireFromString("2")
	item.SalePriceUnit = decimal.RequireFromString("100")
	item.AverageCostUnit = decimal.RequireFromString("80")
	item.MarkdownValueUnit = decimal.RequireFromString("10")

	w := doJSON(t, router, http.MethodPost, "/internal/demotes/preview", PreviewDemotesRequest{
		Items: []types.LineItem{item},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PreviewDemotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)

	got := resp.Items[0]
	assert.True(t, got.CurrentMargin.Equal(decimal.RequireFromString("20")), "currentMargin %s", got.CurrentMargin)
	assert.True(t, got.NewMargin.Equal(decimal.RequireFromString("30")), "newMargin %s", got.NewMargin)
	assert.True(t, got.MarkdownCostUnit.Equal(decimal.RequireFromString("70")), "markdownCostUnit %s", got.MarkdownCostUnit)
	assert.True(t, got.MarkdownCost.Equal(decimal.RequireFromString("140")), "markdownCost %s", got.MarkdownCost)
	assert.True(t, got.MarkdownValue.Equal(decimal.RequireFromString("20")), "markdownValue %s", got.MarkdownValue)
}

func TestPostDemotesRequiresItems(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodPost, "/internal/demotes/post", map[string]any{
		"items":       []any{},
		"depositDate": "2026-05-20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostDemotesHappyPath(t *testing.T) {
	movement := validation.NewResult()
	movement.Value = int64(987)
	lineRes := validation.NewResult()

	poster := &mockPoster{result: &ledger.BatchResult{
		Movements: []*validation.Result{movement},
		Lines:     []*validation.Result{lineRes},
	}}
	router := setupRouter(&mockReader{}, poster, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodPost, "/internal/demotes/post", PostDemotesRequest{
		Items:       []types.LineItem{sampleItem("10")},
		DepositDate: "2026-05-20",
		Observation: "weekly batch",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PostDemotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	require.Len(t, resp.Movements, 1)
	assert.EqualValues(t, 987, resp.Movements[0].Value)

	assert.Equal(t, "weekly batch", poster.lastBatch.Observation)
	assert.Len(t, poster.lastBatch.Items, 1)
}

func TestPostDemotesSurfacesErrors(t *testing.T) {
	movement := validation.NewResult()
	movement.AddError("posting rejected with pendency 200001: supplier blocked")

	poster := &mockPoster{result: &ledger.BatchResult{Movements: []*validation.Result{movement}}}
	router := setupRouter(&mockReader{}, poster, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodPost, "/internal/demotes/post", PostDemotesRequest{
		Items:       []types.LineItem{sampleItem("10")},
		DepositDate: "2026-05-20",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PostDemotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	require.Len(t, resp.Movements, 1)
	assert.False(t, resp.Movements[0].Valid)
}

func validRuleRequest() RuleRequest {
	return RuleRequest{
		ConditionID:            4,
		SupplierID:             70,
		BranchID:               10,
		Description:            "quarterly allowance",
		BeginDate:              "2026-05-01",
		EndDate:                "2026-08-01",
		CreditedAmount:         decimal.RequireFromString("5000"),
		ReturnThresholdPercent: decimal.RequireFromString("15"),
		IsActive:               true,
	}
}

func TestCreateRuleHappyPath(t *testing.T) {
	writer := &mockRuleWriter{}
	router := setupRouter(&mockReader{}, &mockPoster{}, writer)

	w := doJSON(t, router, http.MethodPost, "/internal/rules", validRuleRequest())
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(0), writer.lastRule.ID)
	assert.Equal(t, "quarterly allowance", writer.lastRule.Description)
}

func TestCreateRuleRejectsBlankDescription(t *testing.T) {
	router := setupRouter(&mockReader{}, &mockPoster{}, &mockRuleWriter{})

	req := validRuleRequest()
	req.Description = "   "

	w := doJSON(t, router, http.MethodPost, "/internal/rules", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRuleValidationFailure(t *testing.T) {
	res := validation.NewResult()
	res.AddError("description already used by rule 99")
	writer := &mockRuleWriter{result: res}
	router := setupRouter(&mockReader{}, &mockPoster{}, writer)

	w := doJSON(t, router, http.MethodPost, "/internal/rules", validRuleRequest())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var dto ResultDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.False(t, dto.Valid)
	require.Len(t, dto.Errors, 1)
}

func TestUpdateRuleParsesID(t *testing.T) {
	writer := &mockRuleWriter{}
	router := setupRouter(&mockReader{}, &mockPoster{}, writer)

	w := doJSON(t, router, http.MethodPut, "/internal/rules/42", validRuleRequest())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), writer.lastRule.ID)

	w = doJSON(t, router, http.MethodPut, "/internal/rules/zero", validRuleRequest())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRulesIncludesBalance(t *testing.T) {
	reader := &mockReader{rules: []types.ConditionRule{{
		ID:             1,
		CreditedAmount: decimal.RequireFromString("5000"),
		DebitedAmount:  decimal.RequireFromString("1200"),
	}}}
	router := setupRouter(reader, &mockPoster{}, &mockRuleWriter{})

	w := doJSON(t, router, http.MethodGet, "/internal/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"3800"`)
}

func TestCreateAndUpdateApplication(t *testing.T) {
	writer := &mockRuleWriter{}
	router := setupRouter(&mockReader{}, &mockPoster{}, writer)

	w := doJSON(t, router, http.MethodPost, "/internal/rules/10/applications", ApplicationRequest{
		ConditionID:   4,
		SupplierID:    70,
		ProductID:     500,
		MarkdownValue: decimal.RequireFromString("2.30"),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(10), writer.lastApp.RuleID)

	w = doJSON(t, router, http.MethodPut, "/internal/applications/77", UpdateApplicationRequest{
		MarkdownValue: decimal.RequireFromString("1.10"),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(77), writer.lastApp.ID)
}
