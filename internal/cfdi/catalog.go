package cfdi

import (
	"fmt"
	"time"
)

// SAT catalog mappings. Unmapped inputs fall back to the explicit defaults
// rather than failing the build; the authority's validator flags genuinely
// wrong codes at stamping time.

var contractTypes = map[string]string{
	"indefinite":  "01",
	"fixed_term":  "02",
	"seasonal":    "03",
	"trial":       "04",
	"training":    "05",
	"commission":  "09",
	"piecework":   "10",
}

const defaultContractType = "99"

var riskClasses = map[string]string{
	"I":   "1",
	"II":  "2",
	"III": "3",
	"IV":  "4",
	"V":   "5",
}

const defaultRiskClass = "99"

var periodicities = map[string]string{
	"WEEKLY":   "02",
	"BIWEEKLY": "04",
	"MONTHLY":  "05",
}

const defaultPeriodicity = "99"

func ContractTypeCode(contractType string) string {
	if code, ok := contractTypes[contractType]; ok {
		return code
	}
	return defaultContractType
}

func RiskClassCode(riskClass string) string {
	if code, ok := riskClasses[riskClass]; ok {
		return code
	}
	return defaultRiskClass
}

func PeriodicityCode(periodKind string) string {
	if code, ok := periodicities[periodKind]; ok {
		return code
	}
	return defaultPeriodicity
}

// Seniority renders elapsed whole weeks since hire in the SAT ISO-8601-like
// duration form, e.g. "P260W".
func Seniority(hireDate, until time.Time) string {
	weeks := int(until.Sub(hireDate).Hours() / 24 / 7)
	if weeks < 0 {
		weeks = 0
	}
	return fmt.Sprintf("P%dW", weeks)
}
