package lead

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

type memStore struct {
	leads map[string]models.Lead
}

func (s *memStore) Create(_ context.Context, tenantID string, req *models.CreateLeadRequest) (*models.Lead, error) {
	l := models.Lead{ID: "lead-1", TenantID: tenantID, CompanyName: req.CompanyName, Email: req.Email, Source: req.Source}
	s.leads[l.ID] = l
	return &l, nil
}

func (s *memStore) GetByID(_ context.Context, tenantID, id string) (*models.Lead, error) {
	l, ok := s.leads[id]
	if !ok || l.TenantID != tenantID {
		return nil, dedupeerrors.LeadNotFound(id)
	}
	return &l, nil
}

func newServer() *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(&memStore{leads: map[string]models.Lead{}}).RegisterRoutes(e.Group("", middleware.RequireTenant()))
	return e
}

func serve(e *echo.Echo, method, path, body, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, tenantID)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetLead(t *testing.T) {
	e := newServer()

	rec := serve(e, http.MethodPost, "/leads", `{"company_name":"Acme Inc","email":"jo@acme.com","source":"web"}`, "tenant-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "tenant-1", created.TenantID)

	rec = serve(e, http.MethodGet, "/leads/"+created.ID, "", "tenant-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/leads/"+created.ID, "", "tenant-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateLeadValidation(t *testing.T) {
	e := newServer()

	tests := []struct {
		name string
		body string
	}{
		{"missing company", `{"source":"web"}`},
		{"missing source", `{"company_name":"Acme"}`},
		{"bad email", `{"company_name":"Acme","source":"web","email":"not-an-email"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodPost, "/leads", tt.body, "tenant-1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
