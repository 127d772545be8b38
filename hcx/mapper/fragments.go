package mapper

import (
	"fmt"
	"time"

	"github.com/pborman/uuid"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// Fragment is one bundle entry plus the reference URL other entries use to
// point at it. Builders are deterministic given the record and the generated
// id, side-effect free, and never reference each other's output by value.
type Fragment struct {
	FullURL  string
	Resource interface{}
}

// Entry marshals the fragment into a bundle entry.
func (f *Fragment) Entry() (fhir.BundleEntry, error) {
	return fhir.NewEntry(f.FullURL, f.Resource)
}

func (f *Fragment) Reference() *fhir.Reference {
	return &fhir.Reference{Reference: f.FullURL}
}

func newFullURL(resourceType, id string) string {
	return fmt.Sprintf("http://provider.hayat-his.sa/%s/%s", resourceType, id)
}

// BuildPatient maps a patient record onto the wire. The national document id
// is mandatory for the exchange; the birth date degrades to a placeholder.
func BuildPatient(rec models.PatientRecord) (*Fragment, error) {
	if rec.DocumentID == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypePatient, Field: "documentID",
			Msg: "the exchange requires a national document identifier"}
	}

	birthDate := constants.PlaceholderBirthDate
	if rec.BirthDate != nil {
		birthDate = rec.BirthDate.Format("2006-01-02")
	}

	id := uuid.New()
	p := fhir.Patient{
		ResourceType: fhir.ResourceTypePatient,
		ID:           id,
		Identifier: []fhir.Identifier{{
			System: constants.NationalIDSystem,
			Value:  rec.DocumentID,
		}},
		Active: true,
		Name: []fhir.HumanName{{
			Use:    "official",
			Text:   joinName(rec.FirstName, rec.MiddleName, rec.LastName),
			Family: rec.LastName,
			Given:  givenNames(rec.FirstName, rec.MiddleName),
		}},
		Gender:    rec.Gender,
		BirthDate: birthDate,
	}
	if rec.Phone != "" {
		p.Telecom = []fhir.ContactPoint{{System: "phone", Value: rec.Phone}}
	}
	if rec.MaritalStatus != "" {
		p.MaritalStatus = &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus",
			Code:   rec.MaritalStatus,
		}}}
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypePatient, id), Resource: p}, nil
}

// BuildProviderOrganization maps the submitting provider. The license id is
// what the exchange routes and correlates by.
func BuildProviderOrganization(rec models.ProviderRecord) (*Fragment, error) {
	return buildOrganization(rec.LicenseID, constants.ProviderLicenseSystem, rec.Name, rec.TypeCode)
}

// BuildInsurerOrganization maps the receiving payer.
func BuildInsurerOrganization(rec models.InsurerRecord) (*Fragment, error) {
	return buildOrganization(rec.LicenseID, constants.PayerLicenseSystem, rec.Name, "ins")
}

func buildOrganization(licenseID, system, name, typeCode string) (*Fragment, error) {
	if licenseID == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeOrganization, Field: "licenseID",
			Msg: "the exchange requires a license identifier"}
	}

	id := uuid.New()
	org := fhir.Organization{
		ResourceType: fhir.ResourceTypeOrganization,
		ID:           id,
		Identifier: []fhir.Identifier{{
			System: system,
			Value:  licenseID,
		}},
		Active: true,
		Name:   name,
	}
	if typeCode != "" {
		org.Type = []fhir.CodeableConcept{{Coding: []fhir.Coding{{
			System: constants.BaseURL + "/terminology/CodeSystem/organization-type",
			Code:   typeCode,
		}}}}
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypeOrganization, id), Resource: org}, nil
}

// BuildCoverage links the patient to the payer. References are by generated
// URL, so the patient and insurer fragments can be built in any order.
func BuildCoverage(rec models.CoverageRecord, patientRef, insurerRef *fhir.Reference) (*Fragment, error) {
	if rec.MemberCardID == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeCoverage, Field: "memberCardID",
			Msg: "the exchange requires the member card identifier"}
	}

	relationship := rec.Relationship
	if relationship == "" {
		relationship = "self"
	}

	id := uuid.New()
	cov := fhir.Coverage{
		ResourceType: fhir.ResourceTypeCoverage,
		ID:           id,
		Identifier: []fhir.Identifier{{
			System: constants.MemberCardSystem,
			Value:  rec.MemberCardID,
		}},
		Status:       "active",
		Type:         &fhir.CodeableConcept{Coding: []fhir.Coding{{System: "http://terminology.hl7.org/CodeSystem/coverage-type", Code: "EHCPOL"}}},
		Beneficiary:  patientRef,
		Subscriber:   patientRef,
		SubscriberID: rec.SubscriberID,
		Relationship: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/subscriber-relationship",
			Code:   relationship,
		}}},
		Payor:   []fhir.Reference{*insurerRef},
		Network: rec.Network,
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypeCoverage, id), Resource: cov}, nil
}

func BuildPractitioner(rec models.PractitionerRecord) (*Fragment, error) {
	if rec.LicenseID == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypePractitioner, Field: "licenseID",
			Msg: "the exchange requires a practitioner license identifier"}
	}

	id := uuid.New()
	pr := fhir.Practitioner{
		ResourceType: fhir.ResourceTypePractitioner,
		ID:           id,
		Identifier: []fhir.Identifier{{
			Type:   &fhir.CodeableConcept{Coding: []fhir.Coding{{System: "http://terminology.hl7.org/CodeSystem/v2-0203", Code: "MD"}}},
			System: constants.PractitionerLicenseSystem,
			Value:  rec.LicenseID,
		}},
		Active: true,
		Name:   []fhir.HumanName{{Use: "official", Text: rec.Name}},
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypePractitioner, id), Resource: pr}, nil
}

func BuildEncounter(rec models.EncounterRecord, patientRef, providerRef *fhir.Reference) (*Fragment, error) {
	if rec.ClassCode == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeEncounter, Field: "classCode",
			Msg: "the exchange requires the encounter class"}
	}

	id := uuid.New()
	enc := fhir.Encounter{
		ResourceType: fhir.ResourceTypeEncounter,
		ID:           id,
		Status:       "finished",
		Class: &fhir.Coding{
			System: "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			Code:   rec.ClassCode,
		},
		Subject:         patientRef,
		Period:          encounterPeriod(rec),
		ServiceProvider: providerRef,
	}
	if rec.Identifier != "" {
		enc.Identifier = []fhir.Identifier{{
			System: "http://provider.hayat-his.sa/encounter",
			Value:  rec.Identifier,
		}}
	}
	if rec.ServiceType != "" {
		enc.ServiceType = &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: constants.BaseURL + "/terminology/CodeSystem/service-type",
			Code:   rec.ServiceType,
		}}}
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypeEncounter, id), Resource: enc}, nil
}

func BuildVisionPrescription(rec models.VisionPrescriptionRecord, patientRef, prescriberRef *fhir.Reference) (*Fragment, error) {
	if len(rec.Lenses) == 0 {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeVisionPrescription, Field: "lenses",
			Msg: "a vision prescription requires at least one lens specification"}
	}

	id := uuid.New()
	vp := fhir.VisionPrescription{
		ResourceType: fhir.ResourceTypeVisionPrescription,
		ID:           id,
		Status:       "active",
		Created:      rec.DateWritten.Format(time.RFC3339),
		Patient:      patientRef,
		DateWritten:  rec.DateWritten.Format("2006-01-02"),
		Prescriber:   prescriberRef,
	}
	if rec.Identifier != "" {
		vp.Identifier = []fhir.Identifier{{
			System: "http://provider.hayat-his.sa/visionprescription",
			Value:  rec.Identifier,
		}}
	}
	for _, lens := range rec.Lenses {
		spec := fhir.LensSpecification{
			Eye:      lens.Eye,
			Sphere:   lens.Sphere,
			Cylinder: lens.Cylinder,
			Axis:     lens.Axis,
			Add:      lens.Add,
			Power:    lens.Power,
		}
		if lens.ProductCode != "" {
			spec.Product = &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: constants.BaseURL + "/terminology/CodeSystem/lens-type",
				Code:   lens.ProductCode,
			}}}
		}
		vp.LensSpecification = append(vp.LensSpecification, spec)
	}

	return &Fragment{FullURL: newFullURL(fhir.ResourceTypeVisionPrescription, id), Resource: vp}, nil
}

func encounterPeriod(rec models.EncounterRecord) *fhir.Period {
	p := &fhir.Period{Start: rec.Start.Format(time.RFC3339)}
	if rec.End != nil {
		p.End = rec.End.Format(time.RFC3339)
	}
	return p
}

func joinName(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}

func givenNames(first, middle string) []string {
	given := []string{first}
	if middle != "" {
		given = append(given, middle)
	}
	return given
}
