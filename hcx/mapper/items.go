package mapper

import (
	"math"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// itemRules captures how line items diverge by claim sub-type.
type itemRules struct {
	// forbidBodySite: vision items never carry a body site.
	forbidBodySite bool

	// bodySiteSystem codes the site when one is given (fdi oral region for
	// oral claims, generic body-site otherwise).
	bodySiteSystem string

	// requireInvoice: claims (as opposed to prior authorizations) need a
	// per-item invoice identifier.
	requireInvoice bool
}

// round2 rounds to 2 decimal places. The exchange treats amounts as exact to
// the penny, so all money leaving this package passes through here.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// itemNet computes quantity * unitPrice * factor + tax, rounded to 2 places.
// An absent factor means 1.
func itemNet(in models.ItemInput) float64 {
	factor := in.Factor
	if factor == 0 {
		factor = 1
	}
	return round2(in.Quantity*in.UnitPrice*factor + in.Tax)
}

// buildItems maps the loosely-typed input lines onto wire items and returns
// them with the envelope total. The total is computed by summation of the
// rounded per-item nets, never taken from an independently rounded input
// field: a penny-level mismatch is a hard rejection at the exchange.
func buildItems(items []models.ItemInput, currency string, rules itemRules) ([]fhir.ClaimItem, *fhir.Money, error) {
	if len(items) == 0 {
		return nil, nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "items",
			Msg: "at least one line item is required"}
	}

	var out []fhir.ClaimItem
	var total float64

	for i, in := range items {
		if in.ServiceCode == "" {
			return nil, nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "items.serviceCode",
				Msg: "every line item requires a service code"}
		}
		if rules.requireInvoice && in.InvoiceNumber == "" {
			return nil, nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "items.invoiceNumber",
				Msg: "claims require a per-item invoice identifier"}
		}
		if rules.forbidBodySite && in.BodySiteCode != "" {
			return nil, nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "items.bodySite",
				Msg: "this claim type does not accept a body site"}
		}

		seq := in.Sequence
		if seq == 0 {
			seq = i + 1
		}

		factor := in.Factor
		if factor == 0 {
			factor = 1
		}
		net := itemNet(in)
		total += net

		serviceSystem := in.ServiceSystem
		if serviceSystem == "" {
			serviceSystem = constants.BaseURL + "/terminology/CodeSystem/procedures"
		}

		item := fhir.ClaimItem{
			Sequence:          seq,
			CareTeamSequence:  in.CareTeamSeq,
			DiagnosisSequence: in.DiagnosisSeq,
			ProductOrService: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System:  serviceSystem,
				Code:    in.ServiceCode,
				Display: in.ServiceDisplay,
			}}},
			Quantity:  &fhir.Quantity{Value: in.Quantity},
			UnitPrice: &fhir.Money{Value: in.UnitPrice, Currency: currency},
			Factor:    factor,
			Net:       &fhir.Money{Value: net, Currency: currency},
			Extension: []fhir.Extension{
				{URL: constants.ExtPatientShare, ValueMoney: &fhir.Money{Value: round2(in.PatientShare), Currency: currency}},
				{URL: constants.ExtTax, ValueMoney: &fhir.Money{Value: round2(in.Tax), Currency: currency}},
			},
		}
		if !in.ServicedDate.IsZero() {
			item.ServicedDate = in.ServicedDate.Format("2006-01-02")
		}
		if rules.requireInvoice {
			item.Extension = append(item.Extension, fhir.Extension{
				URL: constants.ExtPatientInvoice,
				ValueIdentifier: &fhir.Identifier{
					System: "http://provider.hayat-his.sa/invoice",
					Value:  in.InvoiceNumber,
				},
			})
		}
		if in.BodySiteCode != "" {
			item.BodySite = &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: rules.bodySiteSystem,
				Code:   in.BodySiteCode,
			}}}
		}

		out = append(out, item)
	}

	return out, &fhir.Money{Value: round2(total), Currency: currency}, nil
}
