// Package cfdi renders an approved payroll snapshot into the CFDI 4.0
// comprobante with the Nomina 1.2 complement. The transform is pure and
// deterministic: identical input yields byte-identical XML. Stamping concerns
// (UUID, seal, XSD validation) belong to the lifecycle manager and the PAC.
package cfdi

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	"github.com/nominalabs/nomina/internal/rounding"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingEmitter  = errors.New("cfdi: emitter RFC and registration are required")
	ErrMissingReceiver = errors.New("cfdi: employee RFC is required")
	ErrEmptyDetail     = errors.New("cfdi: detail has no line items")
)

// Emitter is the employer's fiscal identity block.
type Emitter struct {
	RFC               string
	Name              string
	EmployerRegistry  string
	FiscalRegime      string
	ExpeditionZipCode string
}

// BuildInput carries everything the transform needs; nothing is looked up.
type BuildInput struct {
	Detail   payrolldomain.Detail
	Employee employeedomain.Employee
	Period   perioddomain.Period
	Emitter  Emitter
	Serie    string
	Folio    string
	IssuedAt time.Time
}

type comprobante struct {
	XMLName           xml.Name    `xml:"cfdi:Comprobante"`
	XMLNSCFDI         string      `xml:"xmlns:cfdi,attr"`
	XMLNSNomina       string      `xml:"xmlns:nomina12,attr"`
	Version           string      `xml:"Version,attr"`
	Serie             string      `xml:"Serie,attr,omitempty"`
	Folio             string      `xml:"Folio,attr,omitempty"`
	Fecha             string      `xml:"Fecha,attr"`
	SubTotal          string      `xml:"SubTotal,attr"`
	Descuento         string      `xml:"Descuento,attr"`
	Moneda            string      `xml:"Moneda,attr"`
	Total             string      `xml:"Total,attr"`
	TipoDeComprobante string      `xml:"TipoDeComprobante,attr"`
	Exportacion       string      `xml:"Exportacion,attr"`
	MetodoPago        string      `xml:"MetodoPago,attr"`
	LugarExpedicion   string      `xml:"LugarExpedicion,attr"`
	Emisor            emisor      `xml:"cfdi:Emisor"`
	Receptor          receptor    `xml:"cfdi:Receptor"`
	Conceptos         conceptos   `xml:"cfdi:Conceptos"`
	Complemento       complemento `xml:"cfdi:Complemento"`
}

type emisor struct {
	RFC           string `xml:"Rfc,attr"`
	Nombre        string `xml:"Nombre,attr"`
	RegimenFiscal string `xml:"RegimenFiscal,attr"`
}

type receptor struct {
	RFC             string `xml:"Rfc,attr"`
	Nombre          string `xml:"Nombre,attr"`
	DomicilioFiscal string `xml:"DomicilioFiscalReceptor,attr"`
	RegimenFiscal   string `xml:"RegimenFiscalReceptor,attr"`
	UsoCFDI         string `xml:"UsoCFDI,attr"`
}

type conceptos struct {
	Concepto []conceptoLine `xml:"cfdi:Concepto"`
}

// conceptoLine is the single fixed invoice line every payroll receipt carries.
type conceptoLine struct {
	ClaveProdServ string `xml:"ClaveProdServ,attr"`
	Cantidad      string `xml:"Cantidad,attr"`
	ClaveUnidad   string `xml:"ClaveUnidad,attr"`
	Descripcion   string `xml:"Descripcion,attr"`
	ValorUnitario string `xml:"ValorUnitario,attr"`
	Importe       string `xml:"Importe,attr"`
	Descuento     string `xml:"Descuento,attr"`
	ObjetoImp     string `xml:"ObjetoImp,attr"`
}

type complemento struct {
	Nomina nomina `xml:"nomina12:Nomina"`
}

type nomina struct {
	Version           string         `xml:"Version,attr"`
	TipoNomina        string         `xml:"TipoNomina,attr"`
	FechaPago         string         `xml:"FechaPago,attr"`
	FechaInicialPago  string         `xml:"FechaInicialPago,attr"`
	FechaFinalPago    string         `xml:"FechaFinalPago,attr"`
	NumDiasPagados    string         `xml:"NumDiasPagados,attr"`
	TotalPercepciones string         `xml:"TotalPercepciones,attr"`
	TotalDeducciones  string         `xml:"TotalDeducciones,attr"`
	Emisor            nominaEmisor   `xml:"nomina12:Emisor"`
	Receptor          nominaReceptor `xml:"nomina12:Receptor"`
	Percepciones      *percepciones  `xml:"nomina12:Percepciones,omitempty"`
	Deducciones       *deducciones   `xml:"nomina12:Deducciones,omitempty"`
}

type nominaEmisor struct {
	RegistroPatronal string `xml:"RegistroPatronal,attr"`
}

type nominaReceptor struct {
	CURP              string `xml:"Curp,attr"`
	NumSeguridadSocial string `xml:"NumSeguridadSocial,attr,omitempty"`
	FechaInicioRelLaboral string `xml:"FechaInicioRelLaboral,attr"`
	Antiguedad        string `xml:"Antigüedad,attr"`
	TipoContrato      string `xml:"TipoContrato,attr"`
	TipoRegimen       string `xml:"TipoRegimen,attr"`
	NumEmpleado       string `xml:"NumEmpleado,attr"`
	RiesgoPuesto      string `xml:"RiesgoPuesto,attr"`
	PeriodicidadPago  string `xml:"PeriodicidadPago,attr"`
	SalarioDiarioIntegrado string `xml:"SalarioDiarioIntegrado,attr"`
	ClaveEntFed       string `xml:"ClaveEntFed,attr"`
}

type percepciones struct {
	TotalSueldos   string       `xml:"TotalSueldos,attr"`
	TotalGravado   string       `xml:"TotalGravado,attr"`
	TotalExento    string       `xml:"TotalExento,attr"`
	Percepcion     []percepcion `xml:"nomina12:Percepcion"`
}

type percepcion struct {
	TipoPercepcion string `xml:"TipoPercepcion,attr"`
	Clave          string `xml:"Clave,attr"`
	Concepto       string `xml:"Concepto,attr"`
	ImporteGravado string `xml:"ImporteGravado,attr"`
	ImporteExento  string `xml:"ImporteExento,attr"`
}

type deducciones struct {
	TotalOtrasDeducciones    string      `xml:"TotalOtrasDeducciones,attr"`
	TotalImpuestosRetenidos  string      `xml:"TotalImpuestosRetenidos,attr"`
	Deduccion                []deduccion `xml:"nomina12:Deduccion"`
}

type deduccion struct {
	TipoDeduccion string `xml:"TipoDeduccion,attr"`
	Clave         string `xml:"Clave,attr"`
	Concepto      string `xml:"Concepto,attr"`
	Importe       string `xml:"Importe,attr"`
}

const (
	cfdiNamespace   = "http://www.sat.gob.mx/cfd/4"
	nominaNamespace = "http://www.sat.gob.mx/nomina12"
	payrollProdServ = "84111505"
	isrSATCode      = "002"
)

// Build renders the fiscal XML for one payroll detail.
func Build(in BuildInput) (string, error) {
	if in.Emitter.RFC == "" || in.Emitter.EmployerRegistry == "" {
		return "", ErrMissingEmitter
	}
	if in.Employee.RFC == "" {
		return "", ErrMissingReceiver
	}
	if len(in.Detail.Lines) == 0 {
		return "", ErrEmptyDetail
	}

	subTotal := money(in.Detail.TotalPerceptions)

	doc := comprobante{
		XMLNSCFDI:         cfdiNamespace,
		XMLNSNomina:       nominaNamespace,
		Version:           "4.0",
		Serie:             in.Serie,
		Folio:             in.Folio,
		Fecha:             in.IssuedAt.Format("2006-01-02T15:04:05"),
		SubTotal:          subTotal,
		Descuento:         money(in.Detail.TotalDeductions),
		Moneda:            "MXN",
		Total:             money(in.Detail.NetPay),
		TipoDeComprobante: "N",
		Exportacion:       "01",
		MetodoPago:        "PUE",
		LugarExpedicion:   in.Emitter.ExpeditionZipCode,
		Emisor: emisor{
			RFC:           in.Emitter.RFC,
			Nombre:        in.Emitter.Name,
			RegimenFiscal: in.Emitter.FiscalRegime,
		},
		Receptor: receptor{
			RFC:             in.Employee.RFC,
			Nombre:          in.Employee.Name,
			DomicilioFiscal: in.Emitter.ExpeditionZipCode,
			RegimenFiscal:   "605", // sueldos y salarios
			UsoCFDI:         "CN01",
		},
		Conceptos: conceptos{Concepto: []conceptoLine{{
			ClaveProdServ: payrollProdServ,
			Cantidad:      "1",
			ClaveUnidad:   "ACT",
			Descripcion:   "Pago de nómina",
			ValorUnitario: subTotal,
			Importe:       subTotal,
			Descuento:     money(in.Detail.TotalDeductions),
			ObjetoImp:     "01",
		}}},
		Complemento: complemento{Nomina: buildNomina(in)},
	}

	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cfdi: marshal: %w", err)
	}
	return xml.Header + string(payload), nil
}

func buildNomina(in BuildInput) nomina {
	n := nomina{
		Version:           "1.2",
		TipoNomina:        "O", // ordinaria
		FechaPago:         in.Period.PaymentDate.Format("2006-01-02"),
		FechaInicialPago:  in.Period.StartDate.Format("2006-01-02"),
		FechaFinalPago:    in.Period.EndDate.Format("2006-01-02"),
		NumDiasPagados:    in.Detail.WorkedDays.StringFixed(2),
		TotalPercepciones: money(in.Detail.TotalPerceptions),
		TotalDeducciones:  money(in.Detail.TotalDeductions),
		Emisor:            nominaEmisor{RegistroPatronal: in.Emitter.EmployerRegistry},
		Receptor: nominaReceptor{
			CURP:                  in.Employee.CURP,
			NumSeguridadSocial:    in.Employee.NSS,
			FechaInicioRelLaboral: in.Employee.HireDate.Format("2006-01-02"),
			Antiguedad:            Seniority(in.Employee.HireDate, in.Period.EndDate),
			TipoContrato:          ContractTypeCode(in.Employee.ContractType),
			TipoRegimen:           "02", // sueldos
			NumEmpleado:           in.Employee.Code,
			RiesgoPuesto:          RiskClassCode(in.Employee.RiskClass),
			PeriodicidadPago:      PeriodicityCode(string(in.Period.Kind)),
			SalarioDiarioIntegrado: money(in.Employee.DailySalary),
			ClaveEntFed:           "DIF",
		},
	}

	var percepcionItems []percepcion
	var deduccionItems []deduccion
	taxed := decimal.Zero
	exempt := decimal.Zero
	retained := decimal.Zero
	otherDeductions := decimal.Zero

	for _, line := range in.Detail.Lines {
		if line.Kind == conceptdomain.KindPerception {
			taxed = taxed.Add(line.Taxable)
			exempt = exempt.Add(line.Exempt)
			percepcionItems = append(percepcionItems, percepcion{
				TipoPercepcion: line.SATCode,
				Clave:          line.ConceptCode,
				Concepto:       line.ConceptCode,
				ImporteGravado: money(line.Taxable),
				ImporteExento:  money(line.Exempt),
			})
			continue
		}
		if line.SATCode == isrSATCode {
			retained = retained.Add(line.Amount)
		} else {
			otherDeductions = otherDeductions.Add(line.Amount)
		}
		deduccionItems = append(deduccionItems, deduccion{
			TipoDeduccion: line.SATCode,
			Clave:         line.ConceptCode,
			Concepto:      line.ConceptCode,
			Importe:       money(line.Amount),
		})
	}

	if len(percepcionItems) > 0 {
		n.Percepciones = &percepciones{
			TotalSueldos: money(in.Detail.TotalPerceptions),
			TotalGravado: money(rounding.Currency(taxed)),
			TotalExento:  money(rounding.Currency(exempt)),
			Percepcion:   percepcionItems,
		}
	}
	if len(deduccionItems) > 0 {
		n.Deducciones = &deducciones{
			TotalOtrasDeducciones:   money(rounding.Currency(otherDeductions)),
			TotalImpuestosRetenidos: money(rounding.Currency(retained)),
			Deduccion:               deduccionItems,
		}
	}
	return n
}

func money(d decimal.Decimal) string {
	return rounding.Currency(d).StringFixed(2)
}
