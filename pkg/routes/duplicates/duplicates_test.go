package duplicates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/mocks"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

const tenant = "tenant-1"

type fakeLineage struct {
	ids []string
	err error
}

func (f *fakeLineage) MergedInto(context.Context, string, string) ([]string, error) {
	return f.ids, f.err
}

type testAPI struct {
	t     *testing.T
	e     *echo.Echo
	store *mocks.LeadStore
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func newTestAPI(t *testing.T, lineage Lineage) *testAPI {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	store := mocks.NewLeadStore()
	store.Add(
		models.Lead{ID: "a1", TenantID: tenant, CompanyName: "Acme Inc", Email: "jo@acme.com", Source: "web", CreatedAt: day(1), UpdatedAt: day(1)},
		models.Lead{ID: "a2", TenantID: tenant, CompanyName: "Acme Inc", Email: "jo@acme.com", Phone: "555 123 4567", Source: "import", CreatedAt: day(2), UpdatedAt: day(2)},
		models.Lead{ID: "c1", TenantID: tenant, CompanyName: "Initech", Phone: "555 222 3333", Source: "web", CreatedAt: day(3), UpdatedAt: day(3)},
		models.Lead{ID: "c2", TenantID: tenant, CompanyName: "Initech", Phone: "(555) 222-3333", Source: "web", CreatedAt: day(4), UpdatedAt: day(4)},
		models.Lead{ID: "solo", TenantID: tenant, CompanyName: "Umbrella", Source: "web", CreatedAt: day(5), UpdatedAt: day(5)},
	)
	registry, err := merging.NewRegistry(store.NewDependentTable("activities"))
	require.NoError(t, err)

	engine := matching.NewEngine(logger, store, matching.DefaultConfig())
	executor := merging.NewExecutor(logger, store, store, registry, engine, merging.DefaultExecutorConfig())

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	g := e.Group("", middleware.RequireTenant())
	NewHandler(logger, engine, executor, store, store, lineage).RegisterRoutes(g)

	return &testAPI{t: t, e: e, store: store}
}

func (a *testAPI) do(method, path, body, tenantID string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenantID != "" {
		req.Header.Set(middleware.HeaderTenantID, tenantID)
	}
	req.Header.Set(middleware.HeaderUserID, "user-7")

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestFindAllDuplicates(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, out := api.do(http.MethodGet, "/duplicates", "", tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.8, out["threshold"], 1e-9)

	groups := out["groups"].([]any)
	require.Len(t, groups, 2)
	first := groups[0].(map[string]any)
	assert.Equal(t, "a1", first["primary_lead_id"])
	assert.Equal(t, "exact", first["match_type"])
	second := groups[1].(map[string]any)
	assert.Equal(t, "c1", second["primary_lead_id"])
	assert.Equal(t, "similar", second["match_type"])

	summary := out["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["total_groups"])
	assert.EqualValues(t, 2, summary["total_duplicates"])
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		tenantID string
		status   int
	}{
		{"missing tenant", http.MethodGet, "/duplicates", "", "", http.StatusBadRequest},
		{"threshold not a number", http.MethodGet, "/duplicates?threshold=abc", "", tenant, http.StatusBadRequest},
		{"threshold out of range", http.MethodGet, "/duplicates?threshold=1.5", "", tenant, http.StatusBadRequest},
		{"unknown lead", http.MethodGet, "/leads/nope/duplicates", "", tenant, http.StatusNotFound},
		{"lead of another tenant", http.MethodGet, "/leads/a1/duplicates", "", "tenant-2", http.StatusNotFound},
		{"merge without primary", http.MethodPost, "/leads/merge", `{"duplicate_lead_ids":["a2"]}`, tenant, http.StatusBadRequest},
		{"merge without duplicates", http.MethodPost, "/leads/merge", `{"primary_lead_id":"a1","duplicate_lead_ids":[]}`, tenant, http.StatusBadRequest},
		{"merge into itself", http.MethodPost, "/leads/merge", `{"primary_lead_id":"a1","duplicate_lead_ids":["a1"]}`, tenant, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/leads/merge", `{"primary_lead_id":`, tenant, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := api.do(tt.method, tt.path, tt.body, tt.tenantID)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, out["message"])
			assert.NotEmpty(t, out["request_id"])
		})
	}
}

func TestFindDuplicatesForLead(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, out := api.do(http.MethodGet, "/leads/c2/duplicates?threshold=0.85", "", tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c2", out["lead_id"])

	dups := out["duplicates"].([]any)
	require.Len(t, dups, 1)
	match := dups[0].(map[string]any)
	assert.Equal(t, "c1", match["lead"].(map[string]any)["id"])
	assert.Equal(t, true, match["is_primary"])
	assert.InDelta(t, 0.9, match["score"], 1e-9)

	rec, out = api.do(http.MethodGet, "/leads/solo/duplicates", "", tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["duplicates"])
}

func TestMergeLeads(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, out := api.do(http.MethodPost, "/leads/merge",
		`{"primary_lead_id":"a1","duplicate_lead_ids":["a2"],"strategy":"keep-primary"}`, tenant)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, out["deleted_count"])
	assert.NotEmpty(t, out["audit_id"])
	assert.Equal(t, "keep-primary", out["strategy"])

	lead := out["lead"].(map[string]any)
	assert.Equal(t, "a1", lead["id"])
	assert.Equal(t, "555 123 4567", lead["phone"])

	_, ok := api.store.Lead("a2")
	assert.False(t, ok)

	audits := api.store.Audits()
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].PerformedBy)
	assert.Equal(t, "user-7", *audits[0].PerformedBy)

	rec, out = api.do(http.MethodPost, "/leads/merge",
		`{"primary_lead_id":"a1","duplicate_lead_ids":["a2"]}`, tenant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "a2", out["meta"].(map[string]any)["lead_id"])
}

func TestAutoMergeDuplicates(t *testing.T) {
	t.Run("exact only by default", func(t *testing.T) {
		api := newTestAPI(t, nil)

		rec, out := api.do(http.MethodPost, "/duplicates/auto-merge", "", tenant)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, 1, out["merged_count"])
		assert.EqualValues(t, 1, out["groups_processed"])
		assert.Equal(t, 4, api.store.Count())
	})

	t.Run("all groups", func(t *testing.T) {
		api := newTestAPI(t, nil)

		rec, out := api.do(http.MethodPost, "/duplicates/auto-merge", `{"exact_match_only":false}`, tenant)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, 2, out["merged_count"])
		assert.Equal(t, 3, api.store.Count())

		rec, out = api.do(http.MethodPost, "/duplicates/auto-merge", `{"exact_match_only":false}`, tenant)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 0, out["merged_count"])
	})
}

func TestMergeHistory(t *testing.T) {
	t.Run("with lineage", func(t *testing.T) {
		api := newTestAPI(t, &fakeLineage{ids: []string{"a2", "old-1"}})
		rec, _ := api.do(http.MethodPost, "/leads/merge", `{"primary_lead_id":"a1","duplicate_lead_ids":["a2"]}`, tenant)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, out := api.do(http.MethodGet, "/leads/a1/merge-history", "", tenant)
		require.Equal(t, http.StatusOK, rec.Code)
		merges := out["merges"].([]any)
		require.Len(t, merges, 1)
		assert.Equal(t, []any{"a2"}, merges[0].(map[string]any)["merged_lead_ids"])
		assert.Equal(t, []any{"a2", "old-1"}, out["merged_lead_ids"])
	})

	t.Run("lineage failure still returns the audit trail", func(t *testing.T) {
		api := newTestAPI(t, &fakeLineage{err: errors.New("graph down")})
		rec, out := api.do(http.MethodGet, "/leads/a1/merge-history", "", tenant)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, out["merges"])
		assert.NotContains(t, out, "merged_lead_ids")
	})

	t.Run("unknown or foreign lead is not found", func(t *testing.T) {
		api := newTestAPI(t, nil)
		for _, tc := range []struct{ path, tenantID string }{
			{"/leads/missing/merge-history", tenant},
			{"/leads/a1/merge-history", "tenant-2"},
		} {
			rec, out := api.do(http.MethodGet, tc.path, "", tc.tenantID)
			assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
			assert.NotEmpty(t, out["message"])
		}
	})
}
