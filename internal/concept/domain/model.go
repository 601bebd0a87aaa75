// Package domain holds the payroll concept definitions: named perceptions and
// deductions whose amounts come from runtime-evaluated formulas.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPerception Kind = "PERCEPTION"
	KindDeduction  Kind = "DEDUCTION"
)

// TaxPolicy decides how an evaluated perception splits into taxable and
// exempt portions. Deductions carry SATCode only.
type TaxPolicy string

const (
	TaxPolicyTaxed  TaxPolicy = "TAXED"
	TaxPolicyExempt TaxPolicy = "EXEMPT"
	// TaxPolicyExemptUpTo exempts the amount up to ExemptCap; the remainder
	// is taxable. Used for overtime, sunday premium and similar SAT rules.
	TaxPolicyExemptUpTo TaxPolicy = "EXEMPT_UP_TO"
)

// Concept is one versioned perception or deduction definition. Once a version
// has been referenced by a stamped fiscal document it is frozen; edits create
// a new version row and move the Active flag.
type Concept struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	CompanyID snowflake.ID    `gorm:"not null;index:idx_concepts_company_code"`
	Code      string          `gorm:"type:text;not null;index:idx_concepts_company_code"`
	Name      string          `gorm:"type:text;not null"`
	Kind      Kind            `gorm:"type:text;not null"`
	Formula   string          `gorm:"type:text;not null"`
	SATCode   string          `gorm:"type:text;not null"`
	TaxPolicy TaxPolicy       `gorm:"type:text;not null;default:'TAXED'"`
	ExemptCap decimal.Decimal `gorm:"type:numeric(14,2)"`
	// Priority orders evaluation before dependency edges are considered.
	Priority  int       `gorm:"not null;default:100"`
	Version   int       `gorm:"not null;default:1"`
	Active    bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Concept) TableName() string { return "concepts" }

var (
	ErrConceptNotFound  = errors.New("concept: not found")
	ErrDuplicateCode    = errors.New("concept: code already exists for company")
	ErrCyclicDependency = errors.New("concept: cyclic formula dependency")
	ErrUnknownTemplate  = errors.New("concept: unknown template")
	ErrInvalidFormula   = errors.New("concept: formula does not parse")
	ErrInvalidTaxPolicy = errors.New("concept: invalid tax policy")
)

type CreateRequest struct {
	CompanyID snowflake.ID
	Code      string
	Name      string
	Kind      Kind
	Formula   string
	SATCode   string
	TaxPolicy TaxPolicy
	ExemptCap decimal.Decimal
	Priority  int
}

// TemplateOverrides are the caller-supplied fields when materializing a
// template into a concrete concept.
type TemplateOverrides struct {
	CompanyID snowflake.ID
	Code      string
	Name      string
	Formula   string
	Priority  int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Concept, error)
	// NewVersion freezes the active version of code and installs the edit as
	// a new version row.
	NewVersion(ctx context.Context, companyID snowflake.ID, code string, req CreateRequest) (*Concept, error)
	CreateFromTemplate(ctx context.Context, template string, overrides TemplateOverrides) (*Concept, error)
	ListTemplates() []Template
	// OrderedForCalculation returns the company's active concepts in
	// evaluation order: perceptions before deductions, each kind sorted by
	// dependency topology then priority. Cycles fail here, before any
	// employee is touched.
	OrderedForCalculation(ctx context.Context, companyID snowflake.ID) ([]Concept, error)
}

type Repository interface {
	Insert(ctx context.Context, c *Concept) error
	FindActiveByCode(ctx context.Context, companyID snowflake.ID, code string) (*Concept, error)
	ListActive(ctx context.Context, companyID snowflake.ID) ([]Concept, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}
