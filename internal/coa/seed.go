package coa

// DefaultAccounts is the association's starting chart, in dependency order
// (every parent precedes its children). It mirrors the SQL seed applied by
// the migrate tool; the in-memory engine and the CLI seed from here.
func DefaultAccounts() []Spec {
	return []Spec{
		{Code: "1", Description: "Activo", Nature: NatureDebit},
		{Code: "11", Description: "Disponible", Nature: NatureDebit},
		{Code: "1105", Description: "Caja general", Nature: NatureDebit, PermitsPosting: true},
		{Code: "1110", Description: "Bancos", Nature: NatureDebit, PermitsPosting: true},
		{Code: "13", Description: "Deudores", Nature: NatureDebit},
		{Code: "1305", Description: "Cartera de afiliados", Nature: NatureDebit},
		{Code: "130505", Description: "Cuotas por cobrar", Nature: NatureDebit, PermitsPosting: true, RequiresCounterparty: true},
		{Code: "14", Description: "Inventarios", Nature: NatureDebit},
		{Code: "1435", Description: "Mercancías para la venta", Nature: NatureDebit, PermitsPosting: true},

		{Code: "2", Description: "Pasivo", Nature: NatureCredit},
		{Code: "23", Description: "Cuentas por pagar", Nature: NatureCredit},
		{Code: "2335", Description: "Costos y gastos por pagar", Nature: NatureCredit, PermitsPosting: true, RequiresCounterparty: true},

		{Code: "3", Description: "Patrimonio", Nature: NatureCredit},
		{Code: "31", Description: "Fondo social", Nature: NatureCredit},
		{Code: "3105", Description: "Aportes sociales", Nature: NatureCredit, PermitsPosting: true},

		{Code: "4", Description: "Ingresos", Nature: NatureCredit},
		{Code: "41", Description: "Operacionales", Nature: NatureCredit},
		{Code: "4105", Description: "Cuotas y afiliaciones", Nature: NatureCredit},
		{Code: "410505", Description: "Cuotas de afiliación", Nature: NatureCredit, PermitsPosting: true, RequiresCounterparty: true},
		{Code: "4135", Description: "Ventas de inventario", Nature: NatureCredit, PermitsPosting: true},
		{Code: "42", Description: "No operacionales", Nature: NatureCredit},
		{Code: "4210", Description: "Donaciones", Nature: NatureCredit, PermitsPosting: true, RequiresCounterparty: true},

		{Code: "5", Description: "Gastos", Nature: NatureDebit},
		{Code: "51", Description: "Operacionales de administración", Nature: NatureDebit},
		{Code: "5195", Description: "Gastos diversos", Nature: NatureDebit, PermitsPosting: true},
	}
}

// Seed loads DefaultAccounts into a chart. It stops at the first failure so a
// partially seeded chart is visible to the caller rather than papered over.
func Seed(chart *Chart) error {
	for _, spec := range DefaultAccounts() {
		if _, err := chart.Add(spec); err != nil {
			return err
		}
	}
	return nil
}
