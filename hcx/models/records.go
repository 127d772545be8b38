package models

import "time"

// Domain records loaded from storage by the collaborating CRUD layer. The
// bundle builders consume them as plain values; persistence of these records
// is outside this app's core.

type PatientRecord struct {
	DocumentID    string // national id / iqama; mandatory on the wire
	FirstName     string
	MiddleName    string
	LastName      string
	Gender        string
	BirthDate     *time.Time
	Phone         string
	MaritalStatus string
}

type ProviderRecord struct {
	LicenseID string // provider license; mandatory on the wire
	Name      string
	TypeCode  string // provider type classification
}

type InsurerRecord struct {
	LicenseID string // payer license; mandatory on the wire
	Name      string
}

type CoverageRecord struct {
	MemberCardID string // mandatory on the wire
	Relationship string // self, spouse, child, ...
	SubscriberID string
	PolicyClass  string
	Network      string
}

type PractitionerRecord struct {
	LicenseID string
	Name      string
	RoleCode  string
	Specialty string
}

type EncounterRecord struct {
	Identifier string
	ClassCode  string // AMB, IMP, EMER, SS
	ServiceType string
	Start      time.Time
	End        *time.Time
}

type VisionPrescriptionRecord struct {
	Identifier  string
	DateWritten time.Time
	Lenses      []LensRecord
}

type LensRecord struct {
	ProductCode string
	Eye         string // right | left
	Sphere      *float64
	Cylinder    *float64
	Axis        *int
	Add         *float64
	Power       *float64
}

type DiagnosisInput struct {
	Sequence int
	Code     string
	System   string
	Display  string
	Type     string // principal | secondary | admitting | discharge
}

// ItemInput is one loosely-typed line item as captured upstream. Net amounts
// are always recomputed by the builder; an upstream-provided net is ignored.
type ItemInput struct {
	Sequence     int
	ServiceCode  string
	ServiceSystem string
	ServiceDisplay string
	ServicedDate time.Time

	Quantity  float64
	UnitPrice float64
	Factor    float64 // 0 means 1
	Tax       float64

	PatientShare  float64
	InvoiceNumber string // required for use=claim

	BodySiteCode string // tooth site for oral; forbidden for vision
	CareTeamSeq  []int
	DiagnosisSeq []int
}

type SupportingInfoInput struct {
	Category    string
	ValueString string
	Code        string
}

type RelatedClaimInput struct {
	Relationship     string // prior | associated | extend | ...
	IdentifierSystem string
	IdentifierValue  string
}

// SubmissionInput is everything a mapper needs to assemble one outbound
// envelope. Identity fields ride along so builders never reach into storage.
type SubmissionInput struct {
	// SubmissionSystem/Value: the local identifier persisted before the
	// first network call and carried on the claim by value+system.
	SubmissionSystem string
	SubmissionValue  string

	Use       ClaimUse
	ClaimType ClaimType

	Patient      PatientRecord
	Provider     ProviderRecord
	Insurer      InsurerRecord
	Coverage     CoverageRecord
	Practitioner *PractitionerRecord
	Encounter    *EncounterRecord
	Prescription *VisionPrescriptionRecord

	Diagnoses      []DiagnosisInput
	Items          []ItemInput
	SupportingInfo []SupportingInfoInput
	Related        *RelatedClaimInput

	// PreAuthRef carries a previously granted authorization onto a claim.
	PreAuthRef string

	// PredecessorID links a resubmission to the superseded submission row.
	PredecessorID *uint

	Created time.Time
}
