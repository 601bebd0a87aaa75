package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/clock"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/concept/repository"
	"github.com/nominalabs/nomina/internal/formula"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID  *snowflake.Node
	clock  clock.Clock
	engine *formula.Engine
	repo   conceptdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Engine *formula.Engine
}

func NewService(p ServiceParam) conceptdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("concept.service"),

		genID:  p.GenID,
		clock:  p.Clock,
		engine: p.Engine,
		repo:   repository.NewRepository(p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req conceptdomain.CreateRequest) (*conceptdomain.Concept, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActiveByCode(ctx, req.CompanyID, req.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conceptdomain.ErrDuplicateCode
	}

	now := s.clock.Now()
	c := &conceptdomain.Concept{
		ID:        s.genID.Generate(),
		CompanyID: req.CompanyID,
		Code:      strings.ToLower(strings.TrimSpace(req.Code)),
		Name:      strings.TrimSpace(req.Name),
		Kind:      req.Kind,
		Formula:   req.Formula,
		SATCode:   req.SATCode,
		TaxPolicy: req.TaxPolicy,
		ExemptCap: req.ExemptCap,
		Priority:  req.Priority,
		Version:   1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("concept created",
		zap.String("code", c.Code),
		zap.String("kind", string(c.Kind)),
		zap.Int("version", c.Version))
	return c, nil
}

// NewVersion retires the active row for code and inserts the edit as the next
// version. History is never mutated in place; stamped documents keep pointing
// at the frozen version.
func (s *Service) NewVersion(ctx context.Context, companyID snowflake.ID, code string, req conceptdomain.CreateRequest) (*conceptdomain.Concept, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	current, err := s.repo.FindActiveByCode(ctx, companyID, code)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, conceptdomain.ErrConceptNotFound
	}

	now := s.clock.Now()
	next := &conceptdomain.Concept{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Code:      current.Code,
		Name:      strings.TrimSpace(req.Name),
		Kind:      current.Kind,
		Formula:   req.Formula,
		SATCode:   req.SATCode,
		TaxPolicy: req.TaxPolicy,
		ExemptCap: req.ExemptCap,
		Priority:  req.Priority,
		Version:   current.Version + 1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repoTx := repository.NewRepository(tx)
		if err := repoTx.Deactivate(ctx, current.ID); err != nil {
			return err
		}
		return repoTx.Insert(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) CreateFromTemplate(ctx context.Context, template string, overrides conceptdomain.TemplateOverrides) (*conceptdomain.Concept, error) {
	tpl, ok := conceptdomain.FindTemplate(template)
	if !ok {
		return nil, conceptdomain.ErrUnknownTemplate
	}

	req := conceptdomain.CreateRequest{
		CompanyID: overrides.CompanyID,
		Code:      tpl.Name,
		Name:      tpl.Label,
		Kind:      tpl.Kind,
		Formula:   tpl.Formula,
		SATCode:   tpl.SATCode,
		TaxPolicy: tpl.TaxPolicy,
		Priority:  tpl.Priority,
	}
	if overrides.Code != "" {
		req.Code = overrides.Code
	}
	if overrides.Name != "" {
		req.Name = overrides.Name
	}
	if overrides.Formula != "" {
		req.Formula = overrides.Formula
	}
	if overrides.Priority != 0 {
		req.Priority = overrides.Priority
	}
	return s.Create(ctx, req)
}

func (s *Service) ListTemplates() []conceptdomain.Template {
	return conceptdomain.Templates
}

func (s *Service) OrderedForCalculation(ctx context.Context, companyID snowflake.ID) ([]conceptdomain.Concept, error) {
	concepts, err := s.repo.ListActive(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return OrderByDependency(s.engine, concepts)
}

func (s *Service) validateRequest(req conceptdomain.CreateRequest) error {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: code and name are required", conceptdomain.ErrInvalidFormula)
	}
	if req.Kind != conceptdomain.KindPerception && req.Kind != conceptdomain.KindDeduction {
		return fmt.Errorf("%w: kind must be PERCEPTION or DEDUCTION", conceptdomain.ErrInvalidFormula)
	}
	switch req.TaxPolicy {
	case conceptdomain.TaxPolicyTaxed, conceptdomain.TaxPolicyExempt, conceptdomain.TaxPolicyExemptUpTo:
	default:
		return conceptdomain.ErrInvalidTaxPolicy
	}
	if err := s.engine.Validate(req.Formula); err != nil {
		return fmt.Errorf("%w: %v", conceptdomain.ErrInvalidFormula, err)
	}
	return nil
}
