package cfdi_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nominalabs/nomina/internal/cfdi"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() cfdi.BuildInput {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return cfdi.BuildInput{
		Detail: payrolldomain.Detail{
			WorkedDays:       d("15"),
			TotalPerceptions: d("8062.50"),
			TotalDeductions:  d("945.30"),
			NetPay:           d("7117.20"),
			Lines: []payrolldomain.Line{
				{ConceptCode: "sueldo", Kind: conceptdomain.KindPerception, SATCode: "001", Amount: d("8062.50"), Taxable: d("8062.50"), Exempt: d("0")},
				{ConceptCode: "isr", Kind: conceptdomain.KindDeduction, SATCode: "002", Amount: d("806.25")},
				{ConceptCode: "imss", Kind: conceptdomain.KindDeduction, SATCode: "001", Amount: d("139.05")},
			},
		},
		Employee: employeedomain.Employee{
			Code:         "EMP-042",
			Name:         "Laura Campos",
			RFC:          "CAML850612AB1",
			CURP:         "CAML850612MDFMPR03",
			NSS:          "12345678901",
			DailySalary:  d("537.50"),
			HireDate:     time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC),
			ContractType: "indefinite",
			RiskClass:    "II",
		},
		Period: perioddomain.Period{
			Kind:        perioddomain.KindBiweekly,
			StartDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			PaymentDate: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		Emitter: cfdi.Emitter{
			RFC:               "NOM010101AAA",
			Name:              "Nominalabs SA de CV",
			EmployerRegistry:  "B5510768108",
			FiscalRegime:      "601",
			ExpeditionZipCode: "06600",
		},
		Serie:    "N",
		Folio:    "1042",
		IssuedAt: time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildWellFormed(t *testing.T) {
	xmlDoc, err := cfdi.Build(sampleInput())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(xmlDoc, "<?xml"))
	for _, fragment := range []string{
		`Version="4.0"`,
		`TipoDeComprobante="N"`,
		`Moneda="MXN"`,
		`SubTotal="8062.50"`,
		`Descuento="945.30"`,
		`Total="7117.20"`,
		`ClaveProdServ="84111505"`,
		`Descripcion="Pago de nómina"`,
		`Rfc="NOM010101AAA"`,
		`Rfc="CAML850612AB1"`,
		`RegistroPatronal="B5510768108"`,
		`TotalPercepciones="8062.50"`,
		`TotalDeducciones="945.30"`,
		`NumDiasPagados="15.00"`,
		`PeriodicidadPago="04"`,
		`TipoContrato="01"`,
		`RiesgoPuesto="2"`,
		`TotalImpuestosRetenidos="806.25"`,
		`TotalOtrasDeducciones="139.05"`,
		`ImporteGravado="8062.50"`,
		`ImporteExento="0.00"`,
	} {
		assert.Contains(t, xmlDoc, fragment)
	}
}

func TestBuildDeterministic(t *testing.T) {
	first, err := cfdi.Build(sampleInput())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := cfdi.Build(sampleInput())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildRejectsIncompleteInput(t *testing.T) {
	in := sampleInput()
	in.Emitter.RFC = ""
	_, err := cfdi.Build(in)
	assert.ErrorIs(t, err, cfdi.ErrMissingEmitter)

	in = sampleInput()
	in.Employee.RFC = ""
	_, err = cfdi.Build(in)
	assert.ErrorIs(t, err, cfdi.ErrMissingReceiver)

	in = sampleInput()
	in.Detail.Lines = nil
	_, err = cfdi.Build(in)
	assert.ErrorIs(t, err, cfdi.ErrEmptyDetail)
}

func TestCatalogDefaults(t *testing.T) {
	assert.Equal(t, "99", cfdi.ContractTypeCode("gig"))
	assert.Equal(t, "99", cfdi.RiskClassCode("VII"))
	assert.Equal(t, "99", cfdi.PeriodicityCode("DAILY"))
	assert.Equal(t, "01", cfdi.ContractTypeCode("indefinite"))
	assert.Equal(t, "05", cfdi.PeriodicityCode("MONTHLY"))
}

func TestSeniorityWeeks(t *testing.T) {
	hire := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "P52W", cfdi.Seniority(hire, hire.AddDate(1, 0, 0)))
	assert.Equal(t, "P0W", cfdi.Seniority(hire, hire))
	assert.Equal(t, "P0W", cfdi.Seniority(hire, hire.AddDate(0, 0, -7)))
}
