package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesbi/internal/core/apperror"
	"salesbi/internal/core/id"
	"salesbi/internal/domain/auth"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/infrastructure/metrics"
	"salesbi/internal/infrastructure/spreadsheet"
	"salesbi/pkg/logger"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeRuns struct{ runs []pipeline.Run }

func (f *fakeRuns) GetByID(_ context.Context, runID id.ID) (*pipeline.Run, error) {
	for i := range f.runs {
		if f.runs[i].ID == runID {
			return &f.runs[i], nil
		}
	}
	return nil, apperror.NewNotFound("run", runID)
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]pipeline.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) Latest(context.Context) (id.ID, error) {
	for _, r := range f.runs {
		if r.Status == pipeline.StatusCompleted {
			return r.ID, nil
		}
	}
	return id.Nil(), apperror.NewNotFound("run", "latest")
}

func labeled(invoice, date, total string, cat sales.Category) sales.LabeledRecord {
	d, _ := time.Parse("2006-01-02", date)
	return sales.LabeledRecord{
		CleanedRecord: sales.CleanedRecord{
			InvoiceID:   sales.StrPtr(invoice),
			PostingDate: d,
			Total:       decimal.RequireFromString(total),
		},
		BranchLabel:  "Muttathara",
		ItemCategory: cat,
	}
}

var runID = id.MustParse("01920000-0000-7000-8000-000000000001")

func testConfig() RouterConfig {
	repo := reports.NewMemoryRepository([]sales.LabeledRecord{
		labeled("INV-1", "2025-07-01", "100.00", sales.CategoryService),
		labeled("INV-2", "2025-07-15", "50.00", sales.CategorySparePart),
	})
	return RouterConfig{
		DB:      fakeDB{},
		Version: "test",
		Logger:  logger.Nop(),
		Reports: reports.NewService(repo, nil),
		Runs: &fakeRuns{runs: []pipeline.Run{{
			ID:      runID,
			Status:  pipeline.StatusCompleted,
			Revenue: decimal.RequireFromString("150"),
			Summary: &pipeline.Summary{BranchSentinel: "Counter Sale"},
		}}},
	}
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func items(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	list, ok := body(t, rec)["items"].([]any)
	require.True(t, ok)
	return list
}

func TestHealth(t *testing.T) {
	cfg := testConfig()
	r := NewRouter(cfg)
	assert.Equal(t, http.StatusOK, get(t, r, "/health/live").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/health/ready").Code)

	cfg.DB = fakeDB{err: errors.New("connection refused")}
	rec := get(t, NewRouter(cfg), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", body(t, rec)["status"])
}

func TestReports_Summary(t *testing.T) {
	rec := get(t, NewRouter(testConfig()), "/api/v1/reports/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	got := body(t, rec)
	assert.Equal(t, "150.00", got["revenue"])
	assert.Equal(t, float64(2), got["invoices"])
	assert.Equal(t, "75.00", got["averageInvoiceValue"])
}

func TestReports_Endpoints(t *testing.T) {
	r := NewRouter(testConfig())

	monthly := items(t, get(t, r, "/api/v1/reports/monthly?from=2025-07-10"))
	require.Len(t, monthly, 1)
	assert.Equal(t, "50.00", monthly[0].(map[string]any)["revenue"])

	top := items(t, get(t, r, "/api/v1/reports/invoices?top=1"))
	require.Len(t, top, 1)
	assert.Equal(t, "INV-1", top[0].(map[string]any)["invoiceId"])

	categories := items(t, get(t, r, "/api/v1/reports/categories"))
	require.Len(t, categories, 2)
	assert.Equal(t, "Service", categories[0].(map[string]any)["key"])
	assert.Equal(t, "66.67", categories[0].(map[string]any)["sharePct"])

	assert.Len(t, items(t, get(t, r, "/api/v1/reports/branches")), 1)
	assert.Len(t, items(t, get(t, r, "/api/v1/reports/invoice-share")), 2)
	assert.NotEmpty(t, items(t, get(t, r, "/api/v1/reports/invoice-distribution")))
}

func TestReports_InvalidQuery(t *testing.T) {
	r := NewRouter(testConfig())

	for _, path := range []string{
		"/api/v1/reports/summary?from=07/01/2025",
		"/api/v1/reports/summary?from=2025-08-01&to=2025-07-01",
		"/api/v1/reports/summary?runId=nope",
		"/api/v1/reports/invoices?top=5000",
	} {
		rec := get(t, r, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, apperror.CodeValidation, body(t, rec)["code"], path)
	}
}

func TestReports_ExportXLSX(t *testing.T) {
	rec := get(t, NewRouter(testConfig()), "/api/v1/reports/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spreadsheet.ContentTypeXLSX, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 7)
}

func TestRuns(t *testing.T) {
	r := NewRouter(testConfig())

	list := items(t, get(t, r, "/api/v1/runs"))
	require.Len(t, list, 1)
	assert.Nil(t, list[0].(map[string]any)["summary"], "listing omits summaries")

	rec := get(t, r, "/api/v1/runs/"+runID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	got := body(t, rec)
	assert.Equal(t, "150.00", got["revenue"])
	assert.NotNil(t, got["summary"])

	latest := get(t, r, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, latest.Code)
	assert.Equal(t, runID.String(), body(t, latest)["id"])

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/v1/runs/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/v1/runs/"+id.New().String()).Code)
}

func TestAuth(t *testing.T) {
	jwt := auth.NewJWTService(auth.DefaultJWTConfig("0123456789abcdef0123456789abcdef"))
	cfg := testConfig()
	cfg.JWTValidator = jwt
	r := NewRouter(cfg)

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/v1/reports/summary").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/health/live").Code, "probes stay open")

	token, _, err := jwt.GenerateAccessToken("analyst", []string{auth.ScopeReportsRead})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(t, r, "/api/v1/reports/summary", "Authorization", "Bearer "+token).Code)

	unscoped, _, err := jwt.GenerateAccessToken("guest", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/v1/reports/summary", "Authorization", "Bearer "+unscoped).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = metrics.New()
	r := NewRouter(cfg)

	get(t, r, "/api/v1/reports/summary")
	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/reports/summary"`)
}
