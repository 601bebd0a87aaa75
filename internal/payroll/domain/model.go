// Package domain holds the audited payroll snapshot model: one Detail per
// employee per period, plus the run report the engine returns.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/shopspring/decimal"
)

// Detail is one employee's immutable snapshot for one period. Superseded by a
// new version, never edited in place once the period is approved.
type Detail struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	CompanyID        snowflake.ID    `gorm:"not null;index"`
	PeriodID         snowflake.ID    `gorm:"not null;index:idx_details_period_employee"`
	EmployeeID       snowflake.ID    `gorm:"not null;index:idx_details_period_employee"`
	WorkedDays       decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	TotalPerceptions decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalDeductions  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	NetPay           decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Version          int             `gorm:"not null;default:1"`
	Lines            []Line          `gorm:"foreignKey:DetailID"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (Detail) TableName() string { return "payroll_details" }

// Line is one evaluated concept within a Detail, with its taxable/exempt
// split already applied.
type Line struct {
	ID          snowflake.ID       `gorm:"primaryKey"`
	DetailID    snowflake.ID       `gorm:"not null;index"`
	ConceptID   snowflake.ID       `gorm:"not null"`
	ConceptCode string             `gorm:"type:text;not null"`
	Kind        conceptdomain.Kind `gorm:"type:text;not null"`
	SATCode     string             `gorm:"type:text;not null"`
	Amount      decimal.Decimal    `gorm:"type:numeric(14,2);not null"`
	Taxable     decimal.Decimal    `gorm:"type:numeric(14,2);not null"`
	Exempt      decimal.Decimal    `gorm:"type:numeric(14,2);not null"`
	Position    int                `gorm:"not null"`
}

func (Line) TableName() string { return "payroll_detail_lines" }

// Failure records one employee the run could not evaluate. The batch
// continues; the period cannot advance past PROCESSING while failures exist.
type Failure struct {
	EmployeeID   snowflake.ID `json:"employee_id"`
	EmployeeCode string       `json:"employee_code"`
	ConceptCode  string       `json:"concept_code"`
	Reason       string       `json:"reason"`
}

// RunReport summarizes one calculation run.
type RunReport struct {
	PeriodID  snowflake.ID `json:"period_id"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Failures  []Failure    `json:"failures,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

var (
	ErrCalculationInProgress = errors.New("payroll: calculation already in progress for period")
	ErrDetailNotFound        = errors.New("payroll: detail not found")
	ErrNoActiveConcepts      = errors.New("payroll: company has no active concepts")
	ErrEmptyRoster           = errors.New("payroll: no eligible employees under caller scope")
)

// Caller identifies who requested an operation, with their resolved grants.
type Caller struct {
	EmployeeID snowflake.ID
	Grants     []string
}

type Service interface {
	// Calculate runs the engine for every eligible employee of the period's
	// company. Idempotent before approval: prior unapproved snapshots are
	// superseded, not appended.
	Calculate(ctx context.Context, periodID snowflake.ID, caller Caller) (*RunReport, error)
	ListDetails(ctx context.Context, periodID snowflake.ID, caller Caller) ([]Detail, error)
	GetDetail(ctx context.Context, detailID snowflake.ID, caller Caller) (*Detail, error)
}

type Repository interface {
	InsertDetails(ctx context.Context, details []Detail) error
	DeleteForPeriod(ctx context.Context, periodID snowflake.ID) error
	ListByPeriod(ctx context.Context, periodID snowflake.ID) ([]Detail, error)
	ListByPeriodForEmployees(ctx context.Context, periodID snowflake.ID, employeeIDs []snowflake.ID) ([]Detail, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Detail, error)
	MaxVersion(ctx context.Context, periodID snowflake.ID) (int, error)
}
