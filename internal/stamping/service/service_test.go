package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nominalabs/nomina/internal/cfdi"
	"github.com/nominalabs/nomina/internal/clock"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockPAC struct {
	mock.Mock
}

func (m *mockPAC) Stamp(ctx context.Context, req stampingdomain.StampRequest) (*stampingdomain.StampResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stampingdomain.StampResult), args.Error(1)
}

func (m *mockPAC) Cancel(ctx context.Context, req stampingdomain.CancelRequest) error {
	return m.Called(ctx, req).Error(0)
}

type stampFixture struct {
	svc      *Service
	pac      *mockPAC
	redis    *miniredis.Miniredis
	db       *gorm.DB
	node     *snowflake.Node
	now      time.Time
	employee *employeedomain.Employee
	period   *perioddomain.Period
	detail   *payrolldomain.Detail
}

func newStampFixture(t *testing.T) *stampFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&employeedomain.Employee{},
		&perioddomain.Period{},
		&payrolldomain.Detail{},
		&payrolldomain.Line{},
		&stampingdomain.Document{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)

	pac := &mockPAC{}
	svc := &Service{
		db:      db,
		log:     zap.NewNop(),
		genID:   node,
		clock:   clock.Fixed{At: now},
		metrics: observability.NewMetrics(),
		client:  pac,
		store:   newIdempotencyStore(rdb),

		maxAttempts:  3,
		backoffBase:  time.Millisecond,
		cancelWindow: 72 * time.Hour,
		emitter: cfdi.Emitter{
			RFC:               "NLA150601AB1",
			Name:              "Nomina Labs SA de CV",
			EmployerRegistry:  "B5510768108",
			FiscalRegime:      "601",
			ExpeditionZipCode: "06600",
		},

		repo:         repository.NewRepository(db),
		detailRepo:   payrollrepo.NewRepository(db),
		periodRepo:   periodrepo.NewRepository(db),
		employeeRepo: employeerepo.NewRepository(db),
	}

	f := &stampFixture{svc: svc, pac: pac, redis: mr, db: db, node: node, now: now}
	f.seed(t)
	return f
}

func (f *stampFixture) seed(t *testing.T) {
	t.Helper()
	companyID := f.node.Generate()

	f.employee = &employeedomain.Employee{
		ID:           f.node.Generate(),
		CompanyID:    companyID,
		Code:         "EMP-001",
		Name:         "Laura Campos",
		RFC:          "CAML900101AB1",
		CURP:         "CAML900101MDFMPR03",
		NSS:          "12345678901",
		DailySalary:  decimal.RequireFromString("537.50"),
		HireDate:     time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC),
		ContractType: "01",
		RiskClass:    "1",
		Active:       true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.db.Create(f.employee).Error)

	f.period = &perioddomain.Period{
		ID:          f.node.Generate(),
		CompanyID:   companyID,
		Number:      6,
		Year:        2026,
		Kind:        perioddomain.KindBiweekly,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		PaymentDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		Status:      perioddomain.StatusApproved,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	require.NoError(t, f.db.Create(f.period).Error)

	f.detail = &payrolldomain.Detail{
		ID:               f.node.Generate(),
		CompanyID:        companyID,
		PeriodID:         f.period.ID,
		EmployeeID:       f.employee.ID,
		WorkedDays:       decimal.RequireFromString("15"),
		TotalPerceptions: decimal.RequireFromString("8062.50"),
		TotalDeductions:  decimal.RequireFromString("945.30"),
		NetPay:           decimal.RequireFromString("7117.20"),
		Version:          1,
		Lines: []payrolldomain.Line{
			{
				ID:          f.node.Generate(),
				ConceptID:   f.node.Generate(),
				ConceptCode: "salary",
				Kind:        conceptdomain.KindPerception,
				SATCode:     "001",
				Amount:      decimal.RequireFromString("8062.50"),
				Taxable:     decimal.RequireFromString("8062.50"),
				Exempt:      decimal.Zero,
				Position:    0,
			},
			{
				ID:          f.node.Generate(),
				ConceptID:   f.node.Generate(),
				ConceptCode: "isr",
				Kind:        conceptdomain.KindDeduction,
				SATCode:     "002",
				Amount:      decimal.RequireFromString("945.30"),
				Taxable:     decimal.RequireFromString("945.30"),
				Exempt:      decimal.Zero,
				Position:    1,
			},
		},
		CreatedAt: f.now,
	}
	require.NoError(t, f.db.Create(f.detail).Error)
}

func (f *stampFixture) createDocument(t *testing.T) *stampingdomain.Document {
	t.Helper()
	doc, err := f.svc.CreateForDetail(context.Background(), f.detail.ID)
	require.NoError(t, err)
	return doc
}

func TestCreateForDetail(t *testing.T) {
	f := newStampFixture(t)

	doc := f.createDocument(t)
	require.Equal(t, stampingdomain.StatusPending, doc.Status)
	require.Contains(t, doc.XML, "cfdi:Comprobante")
	require.Contains(t, doc.XML, f.employee.RFC)
	require.Nil(t, doc.StampUUID)

	// One current document per detail.
	_, err := f.svc.CreateForDetail(context.Background(), f.detail.ID)
	require.ErrorIs(t, err, stampingdomain.ErrDocumentExists)
}

func TestCreateForDetailRequiresApprovedPeriod(t *testing.T) {
	f := newStampFixture(t)
	require.NoError(t, f.db.Model(f.period).Update("status", perioddomain.StatusCalculated).Error)

	_, err := f.svc.CreateForDetail(context.Background(), f.detail.ID)
	require.ErrorIs(t, err, perioddomain.ErrInvalidStatus)
}

func TestStampSuccessIsIdempotent(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	stampUUID := uuid.New()
	f.pac.On("Stamp", mock.Anything, mock.MatchedBy(func(req stampingdomain.StampRequest) bool {
		return req.DocumentID == doc.ID && req.IdempotencyKey != "" && strings.Contains(req.XML, "cfdi:Comprobante")
	})).Return(&stampingdomain.StampResult{
		UUID:      stampUUID,
		SignedXML: doc.XML + "<!-- timbre -->",
		StampedAt: f.now,
	}, nil).Once()

	stamped, err := f.svc.Stamp(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, stampingdomain.StatusStamped, stamped.Status)
	require.NotNil(t, stamped.StampUUID)
	require.Equal(t, stampUUID, *stamped.StampUUID)
	require.NotEmpty(t, stamped.SignedXML)

	// A second call returns the same document without touching the provider.
	again, err := f.svc.Stamp(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, stampUUID, *again.StampUUID)
	f.pac.AssertNumberOfCalls(t, "Stamp", 1)
}

func TestStampNonRetryableStopsImmediately(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	f.pac.On("Stamp", mock.Anything, mock.Anything).Return(nil, &stampingdomain.ProviderError{
		Code: "CFDI33132", Message: "sello invalido", Retryable: false,
	})

	_, err := f.svc.Stamp(context.Background(), doc.ID)
	var provErr *stampingdomain.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.False(t, provErr.Retryable)
	f.pac.AssertNumberOfCalls(t, "Stamp", 1)

	after, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, stampingdomain.StatusError, after.Status)
	require.Equal(t, 1, after.RetryCount)
	require.Contains(t, after.LastError, "CFDI33132")
}

func TestStampRetryableExhaustsAttempts(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	f.pac.On("Stamp", mock.Anything, mock.Anything).Return(nil, &stampingdomain.ProviderError{
		Code: "timeout", Message: "deadline exceeded", Retryable: true,
	})

	_, err := f.svc.Stamp(context.Background(), doc.ID)
	require.ErrorIs(t, err, stampingdomain.ErrRetriesExhausted)
	f.pac.AssertNumberOfCalls(t, "Stamp", 3)

	after, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, stampingdomain.StatusError, after.Status)
	require.Equal(t, 3, after.RetryCount)

	// Attempts are spent for good: the next call refuses without dialing out.
	_, err = f.svc.Stamp(context.Background(), doc.ID)
	require.ErrorIs(t, err, stampingdomain.ErrRetriesExhausted)
	f.pac.AssertNumberOfCalls(t, "Stamp", 3)
}

func TestStampClaimHeldByAnotherWriter(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	require.NoError(t, f.redis.Set("stamp:claim:"+doc.ID.String(), "1"))

	_, err := f.svc.Stamp(context.Background(), doc.ID)
	require.ErrorIs(t, err, stampingdomain.ErrStampClaimHeld)
	f.pac.AssertNumberOfCalls(t, "Stamp", 0)
}

func TestStampRecordedUUIDConflict(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	// A UUID was recorded for this exact detail+payload on a previous run,
	// but the provider now answers with a different one.
	key := idempotencyKey(doc.DetailID, doc.XML)
	require.NoError(t, f.svc.store.recordUUID(context.Background(), key, uuid.New()))

	f.pac.On("Stamp", mock.Anything, mock.Anything).Return(&stampingdomain.StampResult{
		UUID:      uuid.New(),
		SignedXML: doc.XML,
		StampedAt: f.now,
	}, nil)

	_, err := f.svc.Stamp(context.Background(), doc.ID)
	var provErr *stampingdomain.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, "duplicate_stamp_conflict", provErr.Code)

	after, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotEqual(t, stampingdomain.StatusStamped, after.Status)
}

func TestCancelRules(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	_, err := f.svc.Cancel(context.Background(), doc.ID, "")
	require.ErrorIs(t, err, stampingdomain.ErrReasonRequired)

	_, err = f.svc.Cancel(context.Background(), doc.ID, "02")
	require.ErrorIs(t, err, stampingdomain.ErrNotStamped)

	stampUUID := uuid.New()
	f.pac.On("Stamp", mock.Anything, mock.Anything).Return(&stampingdomain.StampResult{
		UUID:      stampUUID,
		SignedXML: doc.XML,
		StampedAt: f.now,
	}, nil).Once()
	_, err = f.svc.Stamp(context.Background(), doc.ID)
	require.NoError(t, err)

	f.pac.On("Cancel", mock.Anything, stampingdomain.CancelRequest{
		StampUUID: stampUUID,
		Reason:    "02",
	}).Return(nil).Once()

	cancelled, err := f.svc.Cancel(context.Background(), doc.ID, "02")
	require.NoError(t, err)
	require.Equal(t, stampingdomain.StatusCancelled, cancelled.Status)
	require.Equal(t, "02", cancelled.CancelReason)
	// The stamped artifact survives cancellation.
	require.Equal(t, stampUUID, *cancelled.StampUUID)
	require.NotEmpty(t, cancelled.XML)

	_, err = f.svc.Cancel(context.Background(), doc.ID, "02")
	require.ErrorIs(t, err, stampingdomain.ErrAlreadyCancelled)
}

func TestCancelWindowClosed(t *testing.T) {
	f := newStampFixture(t)
	doc := f.createDocument(t)

	stampUUID := uuid.New()
	f.pac.On("Stamp", mock.Anything, mock.Anything).Return(&stampingdomain.StampResult{
		UUID:      stampUUID,
		SignedXML: doc.XML,
		StampedAt: f.now.Add(-80 * time.Hour),
	}, nil).Once()
	_, err := f.svc.Stamp(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), doc.ID, "02")
	require.ErrorIs(t, err, stampingdomain.ErrCancelWindowClosed)
	f.pac.AssertNumberOfCalls(t, "Cancel", 0)
}
