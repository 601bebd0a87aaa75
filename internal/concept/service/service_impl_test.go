package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/nominalabs/nomina/internal/clock"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/concept/repository"
	"github.com/nominalabs/nomina/internal/formula"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newConceptService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&conceptdomain.Concept{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	return &Service{
		db:  db,
		log: log,

		genID:  node,
		clock:  clock.Fixed{At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		engine: formula.NewEngine(formula.EngineParam{Log: log}),
		repo:   repository.NewRepository(db),
	}
}

func salaryRequest(companyID snowflake.ID) conceptdomain.CreateRequest {
	return conceptdomain.CreateRequest{
		CompanyID: companyID,
		Code:      "sueldo",
		Name:      "Sueldo",
		Kind:      conceptdomain.KindPerception,
		Formula:   "salario_diario * dias_trabajados",
		SATCode:   "001",
		TaxPolicy: conceptdomain.TaxPolicyTaxed,
		Priority:  10,
	}
}

func TestCreateConceptValidatesFormula(t *testing.T) {
	svc := newConceptService(t)
	ctx := context.Background()

	req := salaryRequest(100)
	req.Formula = "salario_diario *"
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, conceptdomain.ErrInvalidFormula)

	req.Formula = "salario_diario * dias_trabajados"
	req.TaxPolicy = conceptdomain.TaxPolicy("SOMETIMES")
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, conceptdomain.ErrInvalidTaxPolicy)
}

func TestCreateConceptRejectsDuplicateActiveCode(t *testing.T) {
	svc := newConceptService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, salaryRequest(100))
	require.NoError(t, err)

	_, err = svc.Create(ctx, salaryRequest(100))
	require.ErrorIs(t, err, conceptdomain.ErrDuplicateCode)

	// Same code under another company is independent.
	_, err = svc.Create(ctx, salaryRequest(200))
	require.NoError(t, err)
}

func TestNewVersionRetiresActiveRow(t *testing.T) {
	svc := newConceptService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, salaryRequest(100))
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	edit := salaryRequest(100)
	edit.Formula = "salario_diario * dias_trabajados + 50"
	second, err := svc.NewVersion(ctx, 100, "sueldo", edit)
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.NotEqual(t, first.ID, second.ID)

	// The old row survives, inactive; only the new version resolves by code.
	var retired conceptdomain.Concept
	require.NoError(t, svc.db.Where("id = ?", first.ID).First(&retired).Error)
	require.False(t, retired.Active)
	require.Equal(t, "salario_diario * dias_trabajados", retired.Formula)

	active, err := svc.repo.FindActiveByCode(ctx, 100, "sueldo")
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	_, err = svc.NewVersion(ctx, 100, "aguinaldo", edit)
	require.ErrorIs(t, err, conceptdomain.ErrConceptNotFound)
}

func TestCreateFromTemplate(t *testing.T) {
	svc := newConceptService(t)
	ctx := context.Background()

	c, err := svc.CreateFromTemplate(ctx, "overtime", conceptdomain.TemplateOverrides{
		CompanyID: 100,
		Name:      "Tiempo extra doble",
	})
	require.NoError(t, err)
	require.Equal(t, "overtime", c.Code)
	require.Equal(t, "Tiempo extra doble", c.Name)
	require.Equal(t, conceptdomain.TaxPolicyExemptUpTo, c.TaxPolicy)
	require.Equal(t, "019", c.SATCode)

	_, err = svc.CreateFromTemplate(ctx, "no_such_template", conceptdomain.TemplateOverrides{CompanyID: 100})
	require.ErrorIs(t, err, conceptdomain.ErrUnknownTemplate)
}
