package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/config"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	"github.com/nominalabs/nomina/internal/formula"
	"github.com/nominalabs/nomina/internal/observability"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConceptService struct {
	conceptdomain.Service
}

func (stubConceptService) ListTemplates() []conceptdomain.Template {
	return conceptdomain.Templates
}

type stubPayrollService struct {
	payrolldomain.Service
	listErr error
}

func (s stubPayrollService) ListDetails(ctx context.Context, periodID snowflake.ID, caller payrolldomain.Caller) ([]payrolldomain.Detail, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return nil, nil
}

type stubStampingService struct {
	stampingdomain.Service
}

func newTestServer(t *testing.T, payrollSvc payrolldomain.Service) *Server {
	t.Helper()
	log := zap.NewNop()
	s := &Server{
		engine: NewEngine(),
		log:    log,
		cfg:    &config.Config{HTTPAddr: ":0"},

		formulaEngine: formula.NewEngine(formula.EngineParam{Log: log}),
		metrics:       observability.NewMetrics(),
		conceptSvc:    stubConceptService{},
		payrollSvc:    payrollSvc,
		stampingSvc:   stubStampingService{},
	}
	s.RegisterRoutes()
	return s
}

func doRequest(s *Server, method, path, body string, grants string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if grants != "" {
		req.Header.Set("X-Grants", grants)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestCallerRequired(t *testing.T) {
	s := newTestServer(t, stubPayrollService{})

	rec := doRequest(s, http.MethodGet, "/v1/formulas/identifiers", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/formulas/identifiers", "", "payroll:read")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "salario_diario")
	require.Contains(t, rec.Body.String(), "porcentaje")
}

func TestValidateFormula(t *testing.T) {
	s := newTestServer(t, stubPayrollService{})

	rec := doRequest(s, http.MethodPost, "/v1/formulas/validate", `{"expression":"salario_diario * 15"}`, "formula:write")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/v1/formulas/validate", `{"expression":"1 + * 2"}`, "formula:write")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTestFormula(t *testing.T) {
	s := newTestServer(t, stubPayrollService{})

	rec := doRequest(s, http.MethodPost, "/v1/formulas/test",
		`{"expression":"porcentaje(10, base)","context":{"base":"2500"}}`, "formula:write")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "250")
}

func TestDomainErrorMapping(t *testing.T) {
	s := newTestServer(t, stubPayrollService{listErr: employeedomain.ErrScopeDenied})

	rec := doRequest(s, http.MethodGet, "/v1/periods/123/details", "", "payroll:read:own")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsDoesNotRequireCaller(t *testing.T) {
	s := newTestServer(t, stubPayrollService{})
	rec := doRequest(s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
