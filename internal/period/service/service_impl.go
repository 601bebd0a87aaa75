package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/clock"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	"github.com/nominalabs/nomina/internal/period/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  perioddomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) perioddomain.Service {
	return &Service{
		log:   p.Log.Named("period.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.NewRepository(p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req perioddomain.CreateRequest) (*perioddomain.Period, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, perioddomain.ErrInvalidDates
	}

	existing, err := s.repo.FindByNumber(ctx, req.CompanyID, req.Year, req.Number)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, perioddomain.ErrDuplicatePeriod
	}

	now := s.clock.Now()
	p := &perioddomain.Period{
		ID:          s.genID.Generate(),
		CompanyID:   req.CompanyID,
		Number:      req.Number,
		Year:        req.Year,
		Kind:        req.Kind,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		PaymentDate: req.PaymentDate,
		Status:      perioddomain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*perioddomain.Period, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, perioddomain.ErrPeriodNotFound
	}
	return p, nil
}

func (s *Service) Transition(ctx context.Context, id snowflake.ID, next perioddomain.Status) (*perioddomain.Period, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, perioddomain.ErrPeriodNotFound
	}
	if !p.Status.CanTransitionTo(next) {
		return nil, perioddomain.ErrInvalidStatus
	}

	if err := s.repo.TransitionStatus(ctx, id, p.Status, next); err != nil {
		return nil, err
	}
	s.log.Info("period transitioned",
		zap.String("period_id", id.String()),
		zap.String("from", string(p.Status)),
		zap.String("to", string(next)))
	return s.repo.FindByID(ctx, id)
}
