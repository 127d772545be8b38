package mapper

import (
	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// mandatoryProfessionalInfo is the fixed set of supporting-information
// categories the exchange validates on professional claims. Each missing
// category is a hard failure upstream, so the builder sources the configured
// default text rather than omitting the entry.
var mandatoryProfessionalInfo = []string{
	constants.InfoChiefComplaint,
	constants.InfoPatientHistory,
	constants.InfoInvestigation,
	constants.InfoTreatmentPlan,
	constants.InfoPhysicalExam,
	constants.InfoHistoryOfPresent,
}

type professionalMapper struct {
	base
}

func (m *professionalMapper) claimTypeCode() string { return "professional" }

func (m *professionalMapper) validate(in *models.SubmissionInput) error {
	if in.Encounter == nil {
		return &errors.BuildError{Resource: fhir.ResourceTypeEncounter, Field: "encounter",
			Msg: "professional claims require an encounter"}
	}
	return nil
}

func (m *professionalMapper) itemRules(use models.ClaimUse) itemRules {
	return itemRules{
		bodySiteSystem: constants.BodySiteSystem,
		requireInvoice: use == models.UseClaim,
	}
}

func (m *professionalMapper) auxFragments(in *models.SubmissionInput, sk *skeleton) ([]*Fragment, error) {
	encounter, err := BuildEncounter(*in.Encounter, sk.patient.Reference(), sk.provider.Reference())
	if err != nil {
		return nil, err
	}
	sk.encounterRef = encounter.Reference()
	return []*Fragment{encounter}, nil
}

func (m *professionalMapper) decorate(claim *fhir.Claim, in *models.SubmissionInput, sk *skeleton) error {
	present := make(map[string]bool, len(claim.SupportingInfo))
	for _, info := range claim.SupportingInfo {
		present[info.Category.Code()] = true
	}

	for _, category := range mandatoryProfessionalInfo {
		if present[category] {
			continue
		}
		claim.SupportingInfo = append(claim.SupportingInfo, supportingInfoEntry(
			len(claim.SupportingInfo)+1, category, m.cfg.Rules.defaultText(category), ""))
	}

	return nil
}
