package mapper

import (
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

type visionMapper struct {
	base
}

func (m *visionMapper) claimTypeCode() string { return "vision" }

// Vision claims invert the auxiliary-resource rules: a prescription is
// mandatory and an encounter (or any per-item body site) is a hard rejection.
func (m *visionMapper) validate(in *models.SubmissionInput) error {
	if in.Prescription == nil {
		return &errors.BuildError{Resource: fhir.ResourceTypeVisionPrescription, Field: "prescription",
			Msg: "vision claims require a vision prescription"}
	}
	if in.Encounter != nil {
		return &errors.BuildError{Resource: fhir.ResourceTypeEncounter, Field: "encounter",
			Msg: "vision claims must not carry an encounter"}
	}
	return nil
}

func (m *visionMapper) itemRules(use models.ClaimUse) itemRules {
	return itemRules{
		forbidBodySite: true,
		requireInvoice: use == models.UseClaim,
	}
}

func (m *visionMapper) auxFragments(in *models.SubmissionInput, sk *skeleton) ([]*Fragment, error) {
	var prescriberRef *fhir.Reference
	if sk.practitioner != nil {
		prescriberRef = sk.practitioner.Reference()
	}

	prescription, err := BuildVisionPrescription(*in.Prescription, sk.patient.Reference(), prescriberRef)
	if err != nil {
		return nil, err
	}
	sk.prescriptionRef = prescription.Reference()
	return []*Fragment{prescription}, nil
}

func (m *visionMapper) decorate(claim *fhir.Claim, in *models.SubmissionInput, sk *skeleton) error {
	claim.Prescription = sk.prescriptionRef
	return nil
}
