package mapper

import (
	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// toothSiteServices lists the dental service-code prefixes whose line items
// the exchange requires to carry an fdi oral region site.
var toothSiteServices = []string{"97"}

type oralMapper struct {
	base
}

func (m *oralMapper) claimTypeCode() string { return "oral" }

func (m *oralMapper) validate(in *models.SubmissionInput) error {
	if in.Encounter == nil {
		return &errors.BuildError{Resource: fhir.ResourceTypeEncounter, Field: "encounter",
			Msg: "oral claims require an encounter"}
	}
	for _, item := range in.Items {
		if requiresToothSite(item.ServiceCode) && item.BodySiteCode == "" {
			return &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "items.bodySite",
				Msg: "dental service " + item.ServiceCode + " requires a tooth site code"}
		}
	}
	return nil
}

func (m *oralMapper) itemRules(use models.ClaimUse) itemRules {
	return itemRules{
		bodySiteSystem: constants.FDIOralRegionSystem,
		requireInvoice: use == models.UseClaim,
	}
}

func (m *oralMapper) auxFragments(in *models.SubmissionInput, sk *skeleton) ([]*Fragment, error) {
	encounter, err := BuildEncounter(*in.Encounter, sk.patient.Reference(), sk.provider.Reference())
	if err != nil {
		return nil, err
	}
	sk.encounterRef = encounter.Reference()
	return []*Fragment{encounter}, nil
}

func (m *oralMapper) decorate(claim *fhir.Claim, in *models.SubmissionInput, sk *skeleton) error {
	return nil
}

func requiresToothSite(serviceCode string) bool {
	for _, prefix := range toothSiteServices {
		if len(serviceCode) >= len(prefix) && serviceCode[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
