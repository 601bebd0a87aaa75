package domain

// Template is a reusable concept blueprint formula authors start from. The
// catalog is fixed in code; instantiation is plain concept creation with
// template defaults plus caller overrides.
type Template struct {
	Name      string
	Label     string
	Kind      Kind
	Formula   string
	SATCode   string
	TaxPolicy TaxPolicy
	Priority  int
}

var Templates = []Template{
	{
		Name:      "salary",
		Label:     "Sueldo",
		Kind:      KindPerception,
		Formula:   "salario_diario * dias_trabajados",
		SATCode:   "001",
		TaxPolicy: TaxPolicyTaxed,
		Priority:  10,
	},
	{
		Name:      "overtime",
		Label:     "Horas extra",
		Kind:      KindPerception,
		Formula:   "salario_diario / 8 * 2 * horas_extra",
		SATCode:   "019",
		TaxPolicy: TaxPolicyExemptUpTo,
		Priority:  20,
	},
	{
		Name:      "sunday_premium",
		Label:     "Prima dominical",
		Kind:      KindPerception,
		Formula:   "porcentaje(25, salario_diario) * domingos_trabajados",
		SATCode:   "020",
		TaxPolicy: TaxPolicyExemptUpTo,
		Priority:  30,
	},
	{
		Name:      "vacation_premium",
		Label:     "Prima vacacional",
		Kind:      KindPerception,
		Formula:   "porcentaje(25, salario_diario * dias_vacaciones)",
		SATCode:   "021",
		TaxPolicy: TaxPolicyExemptUpTo,
		Priority:  40,
	},
	{
		Name:      "isr",
		Label:     "Retención ISR",
		Kind:      KindDeduction,
		Formula:   "porcentaje(tasa_isr, sueldo)",
		SATCode:   "002",
		TaxPolicy: TaxPolicyTaxed,
		Priority:  10,
	},
	{
		Name:      "imss",
		Label:     "Cuota IMSS",
		Kind:      KindDeduction,
		Formula:   "porcentaje(2.375, salario_diario * dias_trabajados)",
		SATCode:   "001",
		TaxPolicy: TaxPolicyTaxed,
		Priority:  20,
	},
}

func FindTemplate(name string) (Template, bool) {
	for _, t := range Templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
