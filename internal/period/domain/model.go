// Package domain models pay periods and their forward-only status machine.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindWeekly   Kind = "WEEKLY"
	KindBiweekly Kind = "BIWEEKLY"
	KindMonthly  Kind = "MONTHLY"
)

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusProcessing Status = "PROCESSING"
	StatusCalculated Status = "CALCULATED"
	StatusApproved   Status = "APPROVED"
	StatusPaid       Status = "PAID"
	StatusClosed     Status = "CLOSED"
)

// rank orders statuses; transitions only move up.
func (s Status) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusProcessing:
		return 1
	case StatusCalculated:
		return 2
	case StatusApproved:
		return 3
	case StatusPaid:
		return 4
	case StatusClosed:
		return 5
	}
	return -1
}

// CanTransitionTo permits single forward steps, plus the PROCESSING→DRAFT
// rollback is intentionally absent: a failed run leaves the period PROCESSING
// and re-runnable.
func (s Status) CanTransitionTo(next Status) bool {
	return next.rank() == s.rank()+1
}

// Locked reports whether financial detail under the period is frozen.
// Corrections past this point go through a new snapshot version.
func (s Status) Locked() bool {
	return s.rank() >= StatusApproved.rank()
}

type Period struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	CompanyID   snowflake.ID `gorm:"not null;index:idx_periods_company_number"`
	Number      int          `gorm:"not null;index:idx_periods_company_number"`
	Year        int          `gorm:"not null;index:idx_periods_company_number"`
	Kind        Kind         `gorm:"type:text;not null"`
	StartDate   time.Time    `gorm:"not null"`
	EndDate     time.Time    `gorm:"not null"`
	PaymentDate time.Time    `gorm:"not null"`
	Status      Status       `gorm:"type:text;not null;default:'DRAFT'"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

func (Period) TableName() string { return "payroll_periods" }

var (
	ErrPeriodNotFound  = errors.New("period: not found")
	ErrPeriodLocked    = errors.New("period: financial detail is frozen at this status")
	ErrStatusConflict  = errors.New("period: concurrent status transition lost")
	ErrInvalidStatus   = errors.New("period: invalid status transition")
	ErrInvalidDates    = errors.New("period: end date must follow start date")
	ErrDuplicatePeriod = errors.New("period: number already exists for company and year")
)

type CreateRequest struct {
	CompanyID   snowflake.ID
	Number      int
	Year        int
	Kind        Kind
	StartDate   time.Time
	EndDate     time.Time
	PaymentDate time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Period, error)
	Get(ctx context.Context, id snowflake.ID) (*Period, error)
	// Transition moves the period one step forward through the status
	// machine. The underlying CAS makes concurrent approvals lose cleanly.
	Transition(ctx context.Context, id snowflake.ID, next Status) (*Period, error)
}

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Period, error)
	FindByNumber(ctx context.Context, companyID snowflake.ID, year, number int) (*Period, error)
	Insert(ctx context.Context, p *Period) error
	// TransitionStatus performs a compare-and-swap UPDATE guarded on the
	// expected current status. ErrStatusConflict when the CAS loses; this is
	// the period-level lock that makes a second concurrent calculation run
	// fail fast instead of double-processing.
	TransitionStatus(ctx context.Context, id snowflake.ID, from, to Status) error
}
