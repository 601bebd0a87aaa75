package service

import (
	"sort"

	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	"github.com/nominalabs/nomina/internal/formula"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	"github.com/shopspring/decimal"
)

// Employee and period fields exposed to formulas. Concept codes join this set
// dynamically as each result is computed.
var contextFields = []string{
	"salario_diario",
	"antiguedad_anios",
	"antiguedad_semanas",
	"dias_trabajados",
	"dias_periodo",
	"numero_periodo",
	"anio",
}

// ContextIdentifiers lists the statically available identifiers for the
// formula-authoring surface.
func ContextIdentifiers() []string {
	out := append([]string(nil), contextFields...)
	sort.Strings(out)
	return out
}

func buildContext(emp employeedomain.Employee, period perioddomain.Period, workedDays decimal.Decimal) *formula.Context {
	ctx := formula.NewContext()

	periodDays := decimal.NewFromInt(int64(period.EndDate.Sub(period.StartDate).Hours()/24) + 1)
	seniority := period.EndDate.Sub(emp.HireDate)
	years := decimal.NewFromFloat(seniority.Hours() / 24 / 365.25).Floor()
	weeks := decimal.NewFromFloat(seniority.Hours() / 24 / 7).Floor()
	if weeks.IsNegative() {
		years, weeks = decimal.Zero, decimal.Zero
	}

	ctx.Set("salario_diario", emp.DailySalary)
	ctx.Set("antiguedad_anios", years)
	ctx.Set("antiguedad_semanas", weeks)
	ctx.Set("dias_trabajados", workedDays)
	ctx.Set("dias_periodo", periodDays)
	ctx.Set("numero_periodo", decimal.NewFromInt(int64(period.Number)))
	ctx.Set("anio", decimal.NewFromInt(int64(period.Year)))
	return ctx
}

// splitTaxable applies the concept's fiscal policy to an evaluated perception
// amount. Deductions are never split.
func splitTaxable(c conceptdomain.Concept, amount decimal.Decimal) (taxable, exempt decimal.Decimal) {
	if c.Kind != conceptdomain.KindPerception {
		return amount, decimal.Zero
	}
	switch c.TaxPolicy {
	case conceptdomain.TaxPolicyExempt:
		return decimal.Zero, amount
	case conceptdomain.TaxPolicyExemptUpTo:
		if amount.LessThanOrEqual(c.ExemptCap) {
			return decimal.Zero, amount
		}
		return amount.Sub(c.ExemptCap), c.ExemptCap
	default:
		return amount, decimal.Zero
	}
}
