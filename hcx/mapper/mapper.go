// Package mapper assembles outbound message bundles for each claim sub-type
// and parses the matching inbound adjudication envelopes. The sub-types share
// one skeleton (header, claim, patient, provider, insurer, coverage) and
// diverge on auxiliary resources, supporting information, and line-item
// rules; the divergences live behind the variant interface as a small closed
// set, not an open inheritance chain.
package mapper

import (
	"fmt"
	"time"

	"github.com/pborman/uuid"

	"github.com/hayat-his/hcx-app/hcx/adjudication"
	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

type Mapper interface {
	// BuildRequestBundle assembles the outbound envelope. All validation the
	// exchange treats as mandatory happens here, before any network call.
	BuildRequestBundle(in models.SubmissionInput) (*fhir.Bundle, error)

	// ParseResponseBundle normalizes the matching inbound adjudication
	// envelope. Total over structurally valid input.
	ParseResponseBundle(b *fhir.Bundle) (*models.AdjudicationResult, error)
}

// Config carries the identity and endpoints threaded through from the
// session; there is no ambient global state in this package.
type Config struct {
	// SourceEndpoint identifies the submitting system in the header source.
	SourceEndpoint string

	// ExchangeEndpoint is the destination endpoint in the header.
	ExchangeEndpoint string

	Rules *Rules
}

// New returns the mapper for a claim sub-type. The set is closed;
// institutional and pharmacy are not implemented yet.
func New(claimType models.ClaimType, cfg Config) (Mapper, error) {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}

	b := base{cfg: cfg}
	switch claimType {
	case models.ClaimTypeProfessional:
		v := &professionalMapper{base: b}
		v.base.variant = v
		return v, nil
	case models.ClaimTypeOral:
		v := &oralMapper{base: b}
		v.base.variant = v
		return v, nil
	case models.ClaimTypeVision:
		v := &visionMapper{base: b}
		v.base.variant = v
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported claim type %s", claimType)
	}
}

// variant is the per-sub-type rule set composed into the shared base.
type variant interface {
	// claimTypeCode is the wire code carried in Claim.type.
	claimTypeCode() string

	// validate rejects input that violates the sub-type's resource rules.
	validate(in *models.SubmissionInput) error

	// itemRules parameterizes line-item construction.
	itemRules(use models.ClaimUse) itemRules

	// auxFragments builds the sub-type's auxiliary entries (encounter or
	// prescription) and records their references on the skeleton.
	auxFragments(in *models.SubmissionInput, sk *skeleton) ([]*Fragment, error)

	// decorate applies sub-type additions to the assembled claim.
	decorate(claim *fhir.Claim, in *models.SubmissionInput, sk *skeleton) error
}

// skeleton is the shared resource set every sub-type carries.
type skeleton struct {
	patient      *Fragment
	provider     *Fragment
	insurer      *Fragment
	coverage     *Fragment
	practitioner *Fragment

	// set by auxFragments where applicable
	encounterRef    *fhir.Reference
	prescriptionRef *fhir.Reference
}

type base struct {
	cfg     Config
	variant variant
}

func (b *base) BuildRequestBundle(in models.SubmissionInput) (*fhir.Bundle, error) {
	if in.SubmissionValue == "" || in.SubmissionSystem == "" {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "submissionIdentifier",
			Msg: "the local submission identifier (system and value) must be assigned before building"}
	}
	if in.Use != models.UseClaim && in.Use != models.UsePreAuth {
		return nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "use",
			Msg: fmt.Sprintf("unsupported use %q", in.Use)}
	}
	if err := b.variant.validate(&in); err != nil {
		return nil, err
	}

	sk, err := b.buildSkeleton(&in)
	if err != nil {
		return nil, err
	}

	aux, err := b.variant.auxFragments(&in, sk)
	if err != nil {
		return nil, err
	}

	claim, err := b.buildClaim(&in, sk)
	if err != nil {
		return nil, err
	}
	if err := b.variant.decorate(claim, &in, sk); err != nil {
		return nil, err
	}

	items, total, err := buildItems(in.Items, b.cfg.Rules.Currency, b.variant.itemRules(in.Use))
	if err != nil {
		return nil, err
	}
	claim.Item = items
	claim.Total = total

	return b.assemble(&in, claim, sk, aux)
}

func (b *base) ParseResponseBundle(bundle *fhir.Bundle) (*models.AdjudicationResult, error) {
	return adjudication.Parse(bundle)
}

func (b *base) buildSkeleton(in *models.SubmissionInput) (*skeleton, error) {
	patient, err := BuildPatient(in.Patient)
	if err != nil {
		return nil, err
	}
	provider, err := BuildProviderOrganization(in.Provider)
	if err != nil {
		return nil, err
	}
	insurer, err := BuildInsurerOrganization(in.Insurer)
	if err != nil {
		return nil, err
	}
	coverage, err := BuildCoverage(in.Coverage, patient.Reference(), insurer.Reference())
	if err != nil {
		return nil, err
	}

	sk := &skeleton{patient: patient, provider: provider, insurer: insurer, coverage: coverage}

	if in.Practitioner != nil {
		practitioner, err := BuildPractitioner(*in.Practitioner)
		if err != nil {
			return nil, err
		}
		sk.practitioner = practitioner
	}

	return sk, nil
}

func (b *base) buildClaim(in *models.SubmissionInput, sk *skeleton) (*fhir.Claim, error) {
	created := in.Created
	if created.IsZero() {
		created = time.Now()
	}

	claim := &fhir.Claim{
		ResourceType: fhir.ResourceTypeClaim,
		ID:           uuid.New(),
		Identifier: []fhir.Identifier{{
			System: in.SubmissionSystem,
			Value:  in.SubmissionValue,
		}},
		Status: "active",
		Type: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: constants.ClaimTypeSystem,
			Code:   b.variant.claimTypeCode(),
		}}},
		Use:      string(in.Use),
		Patient:  sk.patient.Reference(),
		Created:  created.Format(time.RFC3339),
		Insurer:  sk.insurer.Reference(),
		Provider: sk.provider.Reference(),
		Priority: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/processpriority",
			Code:   "normal",
		}}},
		Payee: &fhir.ClaimPayee{Type: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/payeetype",
			Code:   "provider",
		}}}},
	}

	if sk.practitioner != nil {
		claim.CareTeam = []fhir.ClaimCareTeam{{
			Sequence: 1,
			Provider: sk.practitioner.Reference(),
			Role: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: "http://terminology.hl7.org/CodeSystem/claimcareteamrole",
				Code:   "primary",
			}}},
		}}
	}

	for i, d := range in.Diagnoses {
		seq := d.Sequence
		if seq == 0 {
			seq = i + 1
		}
		system := d.System
		if system == "" {
			system = "http://hl7.org/fhir/sid/icd-10-am"
		}
		diag := fhir.ClaimDiagnosis{
			Sequence: seq,
			Diagnosis: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System:  system,
				Code:    d.Code,
				Display: d.Display,
			}}},
		}
		if d.Type != "" {
			diag.Type = []fhir.CodeableConcept{{Coding: []fhir.Coding{{
				System: constants.BaseURL + "/terminology/CodeSystem/diagnosis-type",
				Code:   d.Type,
			}}}}
		}
		claim.Diagnosis = append(claim.Diagnosis, diag)
	}

	insurance := fhir.ClaimInsurance{Sequence: 1, Focal: true, Coverage: sk.coverage.Reference()}
	if in.PreAuthRef != "" {
		insurance.PreAuthRef = []string{in.PreAuthRef}
	}
	claim.Insurance = []fhir.ClaimInsurance{insurance}

	for _, info := range in.SupportingInfo {
		claim.SupportingInfo = append(claim.SupportingInfo, supportingInfoEntry(
			len(claim.SupportingInfo)+1, info.Category, info.ValueString, info.Code))
	}

	// Earlier submissions are referenced by identifier: the exchange cannot
	// resolve the submitter's database keys.
	if in.Related != nil {
		if in.Related.IdentifierValue == "" || in.Related.IdentifierSystem == "" {
			return nil, &errors.BuildError{Resource: fhir.ResourceTypeClaim, Field: "related",
				Msg: "a related claim must be referenced by identifier system and value"}
		}
		claim.Related = []fhir.ClaimRelated{{
			Claim: &fhir.Reference{Identifier: &fhir.Identifier{
				System: in.Related.IdentifierSystem,
				Value:  in.Related.IdentifierValue,
			}},
			Relationship: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: constants.RelatedClaimRelSystem,
				Code:   in.Related.Relationship,
			}}},
		}}
	}

	return claim, nil
}

// assemble builds the envelope. The header is always the first entry and its
// focus must equal the claim entry's fullUrl exactly; the exchange rejects
// any mismatch outright.
func (b *base) assemble(in *models.SubmissionInput, claim *fhir.Claim, sk *skeleton, aux []*Fragment) (*fhir.Bundle, error) {
	claimFullURL := newFullURL(fhir.ResourceTypeClaim, claim.ID)

	event := constants.EventClaimRequest
	if in.Use == models.UsePreAuth {
		event = constants.EventPriorAuthRequest
	}

	header := fhir.MessageHeader{
		ResourceType: fhir.ResourceTypeMessageHeader,
		ID:           uuid.New(),
		EventCoding: &fhir.Coding{
			System: constants.MessageEventSystem,
			Code:   event,
		},
		Destination: []fhir.MessageDestination{{
			Endpoint: b.cfg.ExchangeEndpoint,
			Receiver: &fhir.Reference{Identifier: &fhir.Identifier{
				System: constants.PayerLicenseSystem,
				Value:  in.Insurer.LicenseID,
			}},
		}},
		Sender: &fhir.Reference{Identifier: &fhir.Identifier{
			System: constants.ProviderLicenseSystem,
			Value:  in.Provider.LicenseID,
		}},
		Source: &fhir.MessageSource{Endpoint: b.cfg.SourceEndpoint},
		Focus:  []fhir.Reference{{Reference: claimFullURL}},
	}

	fragments := []*Fragment{
		{FullURL: newFullURL(fhir.ResourceTypeMessageHeader, header.ID), Resource: header},
		{FullURL: claimFullURL, Resource: *claim},
		sk.patient, sk.provider, sk.insurer, sk.coverage,
	}
	if sk.practitioner != nil {
		fragments = append(fragments, sk.practitioner)
	}
	fragments = append(fragments, aux...)

	bundle := &fhir.Bundle{
		ResourceType: fhir.ResourceTypeBundle,
		ID:           uuid.New(),
		Type:         "message",
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	for _, f := range fragments {
		entry, err := f.Entry()
		if err != nil {
			return nil, err
		}
		bundle.Entries = append(bundle.Entries, entry)
	}

	return bundle, nil
}

func supportingInfoEntry(sequence int, category, valueString, code string) fhir.ClaimSupportingInfo {
	entry := fhir.ClaimSupportingInfo{
		Sequence: sequence,
		Category: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: constants.SupportingInfoSystem,
			Code:   category,
		}}},
		ValueString: valueString,
	}
	if code != "" {
		entry.Code = &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: constants.BaseURL + "/terminology/CodeSystem/" + category,
			Code:   code,
		}}}
	}
	return entry
}
