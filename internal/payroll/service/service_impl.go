package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/authz"
	"github.com/nominalabs/nomina/internal/clock"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/config"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	employeerepo "github.com/nominalabs/nomina/internal/employee/repository"
	"github.com/nominalabs/nomina/internal/formula"
	"github.com/nominalabs/nomina/internal/observability"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	"github.com/nominalabs/nomina/internal/payroll/repository"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	periodrepo "github.com/nominalabs/nomina/internal/period/repository"
	"github.com/nominalabs/nomina/internal/rounding"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultWorkers = 4

// runClaimTTL bounds how long a crashed run can block the period before the
// claim expires on its own.
const runClaimTTL = 5 * time.Minute

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	engine  *formula.Engine
	metrics *observability.Metrics
	rdb     *redis.Client
	workers int

	conceptSvc   conceptdomain.Service
	repo         payrolldomain.Repository
	periodRepo   perioddomain.Repository
	employeeRepo employeedomain.Repository

	// inFlight is the in-process fast path; the redis run claim serializes
	// runs for the same period across instances.
	inFlight sync.Map
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Engine     *formula.Engine
	Metrics    *observability.Metrics
	Config     *config.Config
	Redis      *redis.Client
	ConceptSvc conceptdomain.Service
}

func NewService(p ServiceParam) payrolldomain.Service {
	workers := defaultWorkers
	if p.Config != nil && p.Config.CalcWorkers > 0 {
		workers = p.Config.CalcWorkers
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payroll.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		engine:  p.Engine,
		metrics: p.Metrics,
		rdb:     p.Redis,
		workers: workers,

		conceptSvc:   p.ConceptSvc,
		repo:         repository.NewRepository(p.DB),
		periodRepo:   periodrepo.NewRepository(p.DB),
		employeeRepo: employeerepo.NewRepository(p.DB),
	}
}

type employeeResult struct {
	detail  *payrolldomain.Detail
	failure *payrolldomain.Failure
}

func (s *Service) Calculate(ctx context.Context, periodID snowflake.ID, caller payrolldomain.Caller) (*payrolldomain.RunReport, error) {
	scope := authz.ResolveScope(caller.Grants, "payroll", "calculate")
	if scope == authz.ScopeNone {
		return nil, employeedomain.ErrScopeDenied
	}

	if _, running := s.inFlight.LoadOrStore(periodID, struct{}{}); running {
		return nil, payrolldomain.ErrCalculationInProgress
	}
	defer s.inFlight.Delete(periodID)

	// Single run per period across processes, re-runs included; the
	// DRAFT→PROCESSING CAS below only covers the first run.
	claimed, err := s.rdb.SetNX(ctx, runClaimKey(periodID), "1", runClaimTTL).Result()
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, payrolldomain.ErrCalculationInProgress
	}
	defer s.rdb.Del(context.WithoutCancel(ctx), runClaimKey(periodID))

	period, err := s.periodRepo.FindByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrPeriodNotFound
	}
	if period.Status.Locked() {
		return nil, perioddomain.ErrPeriodLocked
	}

	if period.Status == perioddomain.StatusDraft {
		if err := s.periodRepo.TransitionStatus(ctx, periodID, perioddomain.StatusDraft, perioddomain.StatusProcessing); err != nil {
			if err == perioddomain.ErrStatusConflict {
				return nil, payrolldomain.ErrCalculationInProgress
			}
			return nil, err
		}
	}

	// Cycles and malformed formulas surface here, before any employee work.
	concepts, err := s.conceptSvc.OrderedForCalculation(ctx, period.CompanyID)
	if err != nil {
		s.metrics.CalculationRuns.WithLabelValues("config_error").Inc()
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, payrolldomain.ErrNoActiveConcepts
	}

	roster, err := s.employeeRepo.ListEligible(ctx, period.CompanyID, scope, caller.EmployeeID)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, payrolldomain.ErrEmptyRoster
	}

	started := s.clock.Now()
	results, err := s.evaluateRoster(ctx, roster, *period, concepts)
	if err != nil {
		// Cancellation mid-run: nothing was persisted, the period stays
		// PROCESSING and the run can be repeated.
		s.metrics.CalculationRuns.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	report := &payrolldomain.RunReport{PeriodID: periodID}
	var details []payrolldomain.Detail
	for _, res := range results {
		if res.failure != nil {
			report.Failed++
			report.Failures = append(report.Failures, *res.failure)
			s.metrics.EmployeeFailures.Inc()
			continue
		}
		report.Processed++
		details = append(details, *res.detail)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].EmployeeID < details[j].EmployeeID })

	version, err := s.repo.MaxVersion(ctx, periodID)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Version = version + 1
	}

	// Supersede any unapproved snapshots atomically; re-runs are idempotent.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repoTx := repository.NewRepository(tx)
		if err := repoTx.DeleteForPeriod(ctx, periodID); err != nil {
			return err
		}
		return repoTx.InsertDetails(ctx, details)
	})
	if err != nil {
		return nil, err
	}

	report.Elapsed = s.clock.Now().Sub(started)
	s.metrics.CalculationDuration.Observe(report.Elapsed.Seconds())

	if report.Failed == 0 {
		if err := s.periodRepo.TransitionStatus(ctx, periodID, perioddomain.StatusProcessing, perioddomain.StatusCalculated); err != nil && err != perioddomain.ErrStatusConflict {
			return nil, err
		}
		s.metrics.CalculationRuns.WithLabelValues("calculated").Inc()
	} else {
		// The period stays PROCESSING; it cannot reach CALCULATED while any
		// employee has an unresolved failure.
		s.metrics.CalculationRuns.WithLabelValues("partial_failure").Inc()
	}

	s.log.Info("calculation run finished",
		zap.String("period_id", periodID.String()),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed))
	return report, nil
}

// evaluateRoster fans the roster out to a bounded worker pool. Employees are
// independent; the concept slice is shared read-only. Reduction into the
// result slice happens in this goroutine only.
func (s *Service) evaluateRoster(
	ctx context.Context,
	roster []employeedomain.Employee,
	period perioddomain.Period,
	concepts []conceptdomain.Concept,
) ([]employeeResult, error) {
	jobs := make(chan employeedomain.Employee)
	out := make(chan employeeResult, len(roster))

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for emp := range jobs {
				out <- s.evaluateEmployee(emp, period, concepts)
			}
		}()
	}

feed:
	for _, emp := range roster {
		select {
		case jobs <- emp:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]employeeResult, 0, len(roster))
	for res := range out {
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) evaluateEmployee(
	emp employeedomain.Employee,
	period perioddomain.Period,
	concepts []conceptdomain.Concept,
) employeeResult {
	workedDays := decimal.NewFromInt(int64(period.EndDate.Sub(period.StartDate).Hours()/24) + 1)
	evalCtx := buildContext(emp, period, workedDays)

	detail := payrolldomain.Detail{
		ID:         s.genID.Generate(),
		CompanyID:  emp.CompanyID,
		PeriodID:   period.ID,
		EmployeeID: emp.ID,
		WorkedDays: workedDays,
		CreatedAt:  s.clock.Now(),
	}

	var perceptionAmounts, deductionAmounts []decimal.Decimal
	for i, c := range concepts {
		amount, err := s.engine.Evaluate(c.Formula, evalCtx)
		if err != nil {
			return employeeResult{failure: &payrolldomain.Failure{
				EmployeeID:   emp.ID,
				EmployeeCode: emp.Code,
				ConceptCode:  c.Code,
				Reason:       err.Error(),
			}}
		}
		// Later concepts can reference this result by code.
		evalCtx.Set(c.Code, amount)

		taxable, exempt := splitTaxable(c, amount)
		detail.Lines = append(detail.Lines, payrolldomain.Line{
			ID:          s.genID.Generate(),
			DetailID:    detail.ID,
			ConceptID:   c.ID,
			ConceptCode: c.Code,
			Kind:        c.Kind,
			SATCode:     c.SATCode,
			Amount:      amount,
			Taxable:     taxable,
			Exempt:      exempt,
			Position:    i,
		})

		if c.Kind == conceptdomain.KindPerception {
			perceptionAmounts = append(perceptionAmounts, amount)
		} else {
			deductionAmounts = append(deductionAmounts, amount)
		}
	}

	// Sum at full precision, round once; never accumulate rounded partials.
	detail.TotalPerceptions = rounding.Sum(perceptionAmounts)
	detail.TotalDeductions = rounding.Sum(deductionAmounts)
	detail.NetPay = rounding.Currency(detail.TotalPerceptions).Sub(rounding.Currency(detail.TotalDeductions))

	return employeeResult{detail: &detail}
}

func (s *Service) ListDetails(ctx context.Context, periodID snowflake.ID, caller payrolldomain.Caller) ([]payrolldomain.Detail, error) {
	scope := authz.ResolveScope(caller.Grants, "payroll", "read")
	if scope == authz.ScopeNone {
		return nil, employeedomain.ErrScopeDenied
	}

	period, err := s.periodRepo.FindByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrPeriodNotFound
	}

	if scope == authz.ScopeAll {
		return s.repo.ListByPeriod(ctx, periodID)
	}
	if scope == authz.ScopeCompany {
		if err := s.requireCompanyMember(ctx, period.CompanyID, caller.EmployeeID); err != nil {
			return nil, err
		}
		return s.repo.ListByPeriod(ctx, periodID)
	}

	// Narrow scopes select through the scope-filtered roster query; the
	// caller never sees a detail their grant does not cover.
	visible, err := s.employeeRepo.ListEligible(ctx, period.CompanyID, scope, caller.EmployeeID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPeriodForEmployees(ctx, periodID, employeeIDs(visible))
}

func (s *Service) GetDetail(ctx context.Context, detailID snowflake.ID, caller payrolldomain.Caller) (*payrolldomain.Detail, error) {
	scope := authz.ResolveScope(caller.Grants, "payroll", "read")
	if scope == authz.ScopeNone {
		return nil, employeedomain.ErrScopeDenied
	}

	detail, err := s.repo.FindByID(ctx, detailID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, payrolldomain.ErrDetailNotFound
	}

	if scope == authz.ScopeAll {
		return detail, nil
	}
	if scope == authz.ScopeCompany {
		if err := s.requireCompanyMember(ctx, detail.CompanyID, caller.EmployeeID); err != nil {
			return nil, err
		}
		return detail, nil
	}

	// Requesting another employee's detail by identifier does not widen the
	// caller's scope.
	visible, err := s.employeeRepo.ListEligible(ctx, detail.CompanyID, scope, caller.EmployeeID)
	if err != nil {
		return nil, err
	}
	for _, emp := range visible {
		if emp.ID == detail.EmployeeID {
			return detail, nil
		}
	}
	return nil, employeedomain.ErrScopeDenied
}

func runClaimKey(periodID snowflake.ID) string {
	return "payroll:run:" + periodID.String()
}

// requireCompanyMember verifies the caller's employee row exists in companyID.
// A COMPANY-scoped grant stops at the caller's own company boundary.
func (s *Service) requireCompanyMember(ctx context.Context, companyID, employeeID snowflake.ID) error {
	member, err := s.employeeRepo.FindByID(ctx, companyID, employeeID)
	if err != nil {
		return err
	}
	if member == nil {
		return employeedomain.ErrScopeDenied
	}
	return nil
}

func employeeIDs(employees []employeedomain.Employee) []snowflake.ID {
	ids := make([]snowflake.ID, len(employees))
	for i, emp := range employees {
		ids[i] = emp.ID
	}
	return ids
}
