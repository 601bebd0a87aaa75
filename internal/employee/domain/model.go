// Package domain holds the employee read model the calculation engine
// evaluates against. Employee administration (hiring, editing, offboarding)
// lives in the surrounding HR platform.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/authz"
	"github.com/shopspring/decimal"
)

type Employee struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	CompanyID    snowflake.ID    `gorm:"not null;index"`
	Code         string          `gorm:"type:text;not null"`
	Name         string          `gorm:"type:text;not null"`
	RFC          string          `gorm:"type:text;not null"`
	CURP         string          `gorm:"type:text"`
	NSS          string          `gorm:"type:text"`
	DailySalary  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	HireDate     time.Time       `gorm:"not null"`
	ContractType string          `gorm:"type:text;not null"`
	RiskClass    string          `gorm:"type:text;not null"`
	Department   string          `gorm:"type:text"`
	ManagerID    *snowflake.ID   `gorm:"index"`
	Active       bool            `gorm:"not null;default:true;index"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

func (Employee) TableName() string { return "employees" }

var ErrScopeDenied = errors.New("employee: caller scope denies access")

type Repository interface {
	// ListEligible returns the active roster visible under the caller's
	// resolved scope. Scope is applied in the query itself, never as a
	// post-filter over loaded rows.
	ListEligible(ctx context.Context, companyID snowflake.ID, scope authz.Scope, callerEmployeeID snowflake.ID) ([]Employee, error)
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Employee, error)
}
