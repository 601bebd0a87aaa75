package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/cfdi"
	"github.com/nominalabs/nomina/internal/clock"
	"github.com/nominalabs/nomina/internal/config"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	employeerepo "github.com/nominalabs/nomina/internal/employee/repository"
	"github.com/nominalabs/nomina/internal/observability"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	payrollrepo "github.com/nominalabs/nomina/internal/payroll/repository"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	periodrepo "github.com/nominalabs/nomina/internal/period/repository"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
	"github.com/nominalabs/nomina/internal/stamping/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts  = 3
	defaultBackoffBase  = time.Second
	maxBackoff          = 30 * time.Second
	defaultCancelWindow = 72 * time.Hour
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	metrics *observability.Metrics
	client  stampingdomain.Client
	store   *idempotencyStore

	maxAttempts  int
	backoffBase  time.Duration
	cancelWindow time.Duration
	emitter      cfdi.Emitter

	repo         stampingdomain.Repository
	detailRepo   payrolldomain.Repository
	periodRepo   perioddomain.Repository
	employeeRepo employeedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *observability.Metrics
	Config  *config.Config
	Client  stampingdomain.Client
	Redis   *redis.Client
}

func NewService(p ServiceParam) stampingdomain.Service {
	maxAttempts := defaultMaxAttempts
	backoffBase := defaultBackoffBase
	cancelWindow := defaultCancelWindow
	var emitter cfdi.Emitter
	if p.Config != nil {
		if p.Config.StampMaxAttempts > 0 {
			maxAttempts = p.Config.StampMaxAttempts
		}
		if p.Config.StampBackoffBase > 0 {
			backoffBase = p.Config.StampBackoffBase
		}
		if p.Config.CancelWindow > 0 {
			cancelWindow = p.Config.CancelWindow
		}
		emitter = cfdi.Emitter{
			RFC:               p.Config.EmitterRFC,
			Name:              p.Config.EmitterName,
			EmployerRegistry:  p.Config.EmployerRegistry,
			FiscalRegime:      p.Config.FiscalRegime,
			ExpeditionZipCode: p.Config.ExpeditionZipCode,
		}
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("stamping.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
		client:  p.Client,
		store:   newIdempotencyStore(p.Redis),

		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		cancelWindow: cancelWindow,
		emitter:      emitter,

		repo:         repository.NewRepository(p.DB),
		detailRepo:   payrollrepo.NewRepository(p.DB),
		periodRepo:   periodrepo.NewRepository(p.DB),
		employeeRepo: employeerepo.NewRepository(p.DB),
	}
}

func (s *Service) CreateForDetail(ctx context.Context, detailID snowflake.ID) (*stampingdomain.Document, error) {
	existing, err := s.repo.FindByDetailID(ctx, detailID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, stampingdomain.ErrDocumentExists
	}

	detail, err := s.detailRepo.FindByID(ctx, detailID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, payrolldomain.ErrDetailNotFound
	}

	period, err := s.periodRepo.FindByID(ctx, detail.PeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrPeriodNotFound
	}
	if !period.Status.Locked() {
		// Only approved payroll may become a fiscal document.
		return nil, perioddomain.ErrInvalidStatus
	}

	employee, err := s.employeeRepo.FindByID(ctx, detail.CompanyID, detail.EmployeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, payrolldomain.ErrDetailNotFound
	}

	now := s.clock.Now()
	xmlPayload, err := cfdi.Build(cfdi.BuildInput{
		Detail:   *detail,
		Employee: *employee,
		Period:   *period,
		Emitter:  s.emitter,
		Serie:    "N",
		Folio:    detail.ID.String(),
		IssuedAt: now,
	})
	if err != nil {
		return nil, err
	}

	doc := &stampingdomain.Document{
		ID:        s.genID.Generate(),
		CompanyID: detail.CompanyID,
		DetailID:  detailID,
		Status:    stampingdomain.StatusPending,
		XML:       xmlPayload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("fiscal document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("detail_id", detailID.String()))
	return doc, nil
}

func (s *Service) Stamp(ctx context.Context, documentID snowflake.ID) (*stampingdomain.Document, error) {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, stampingdomain.ErrDocumentNotFound
	}
	switch doc.Status {
	case stampingdomain.StatusStamped:
		// Stamping is idempotent: the document already carries its UUID.
		return doc, nil
	case stampingdomain.StatusCancelled:
		return nil, stampingdomain.ErrAlreadyCancelled
	}
	if doc.RetryCount >= s.maxAttempts {
		return nil, fmt.Errorf("%w: %s", stampingdomain.ErrRetriesExhausted, doc.LastError)
	}

	// Single writer per document across processes.
	claimed, err := s.store.claim(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, stampingdomain.ErrStampClaimHeld
	}
	defer s.store.release(context.WithoutCancel(ctx), documentID)

	key := idempotencyKey(doc.DetailID, doc.XML)
	recorded, err := s.store.recordedUUID(ctx, key)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := doc.RetryCount; attempt < s.maxAttempts; attempt++ {
		if attempt > doc.RetryCount {
			if err := s.sleepBackoff(ctx, attempt-doc.RetryCount-1); err != nil {
				return nil, err
			}
		}

		result, callErr := s.client.Stamp(ctx, stampingdomain.StampRequest{
			DocumentID:     documentID,
			XML:            doc.XML,
			IdempotencyKey: key,
		})
		if callErr == nil {
			// A previously recorded UUID that disagrees with the provider's
			// answer is a duplicate-stamp conflict, never silently resolved.
			if recorded != nil && *recorded != result.UUID {
				s.metrics.StampAttempts.WithLabelValues("conflict").Inc()
				return nil, &stampingdomain.ProviderError{
					Code:      "duplicate_stamp_conflict",
					Message:   fmt.Sprintf("recorded %s, provider returned %s", recorded, result.UUID),
					Retryable: false,
				}
			}
			if err := s.store.recordUUID(ctx, key, result.UUID); err != nil {
				return nil, err
			}
			if err := s.repo.MarkStamped(ctx, documentID, *result); err != nil {
				return nil, err
			}
			s.metrics.StampAttempts.WithLabelValues("stamped").Inc()
			s.log.Info("document stamped",
				zap.String("document_id", documentID.String()),
				zap.String("uuid", result.UUID.String()))
			return s.repo.FindByID(ctx, documentID)
		}

		lastErr = callErr
		if markErr := s.repo.MarkError(ctx, documentID, callErr.Error()); markErr != nil {
			return nil, markErr
		}

		var provErr *stampingdomain.ProviderError
		if errors.As(callErr, &provErr) && !provErr.Retryable {
			// The document itself was rejected; retrying cannot succeed.
			s.metrics.StampAttempts.WithLabelValues("rejected").Inc()
			return nil, callErr
		}
		s.metrics.StampAttempts.WithLabelValues("retryable_error").Inc()
	}

	return nil, fmt.Errorf("%w: %v", stampingdomain.ErrRetriesExhausted, lastErr)
}

func (s *Service) Cancel(ctx context.Context, documentID snowflake.ID, reason string) (*stampingdomain.Document, error) {
	if reason == "" {
		return nil, stampingdomain.ErrReasonRequired
	}

	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, stampingdomain.ErrDocumentNotFound
	}
	switch doc.Status {
	case stampingdomain.StatusPending, stampingdomain.StatusError:
		return nil, stampingdomain.ErrNotStamped
	case stampingdomain.StatusCancelled:
		return nil, stampingdomain.ErrAlreadyCancelled
	}
	if doc.StampUUID == nil {
		return nil, stampingdomain.ErrNotStamped
	}

	now := s.clock.Now()
	if doc.StampedAt != nil && now.Sub(*doc.StampedAt) > s.cancelWindow {
		return nil, stampingdomain.ErrCancelWindowClosed
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		callErr := s.client.Cancel(ctx, stampingdomain.CancelRequest{
			StampUUID: *doc.StampUUID,
			Reason:    reason,
		})
		if callErr == nil {
			if err := s.repo.MarkCancelled(ctx, documentID, reason, now); err != nil {
				return nil, err
			}
			s.metrics.CancelAttempts.WithLabelValues("cancelled").Inc()
			s.log.Info("document cancelled",
				zap.String("document_id", documentID.String()),
				zap.String("reason", reason))
			return s.repo.FindByID(ctx, documentID)
		}

		lastErr = callErr
		var provErr *stampingdomain.ProviderError
		if errors.As(callErr, &provErr) && !provErr.Retryable {
			s.metrics.CancelAttempts.WithLabelValues("rejected").Inc()
			return nil, callErr
		}
		s.metrics.CancelAttempts.WithLabelValues("retryable_error").Inc()
	}
	return nil, fmt.Errorf("%w: %v", stampingdomain.ErrRetriesExhausted, lastErr)
}

func (s *Service) Get(ctx context.Context, documentID snowflake.ID) (*stampingdomain.Document, error) {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, stampingdomain.ErrDocumentNotFound
	}
	return doc, nil
}

// sleepBackoff waits base*2^n capped at maxBackoff, honoring cancellation.
// No database lock is held while waiting.
func (s *Service) sleepBackoff(ctx context.Context, n int) error {
	wait := s.backoffBase << n
	if wait > maxBackoff {
		wait = maxBackoff
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
