package fhir

// Claim covers both claims and prior authorizations; Use distinguishes them
// ("claim" vs "preauthorization").
type Claim struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier     `json:"identifier,omitempty"`
	Status     string           `json:"status,omitempty"`
	Type       *CodeableConcept `json:"type,omitempty"`
	SubType    *CodeableConcept `json:"subType,omitempty"`
	Use        string           `json:"use,omitempty"`

	Patient  *Reference `json:"patient,omitempty"`
	Created  string     `json:"created,omitempty"`
	Insurer  *Reference `json:"insurer,omitempty"`
	Provider *Reference `json:"provider,omitempty"`

	Priority     *CodeableConcept `json:"priority,omitempty"`
	Payee        *ClaimPayee      `json:"payee,omitempty"`
	Related      []ClaimRelated   `json:"related,omitempty"`
	Prescription *Reference       `json:"prescription,omitempty"`

	CareTeam       []ClaimCareTeam       `json:"careTeam,omitempty"`
	SupportingInfo []ClaimSupportingInfo `json:"supportingInfo,omitempty"`
	Diagnosis      []ClaimDiagnosis      `json:"diagnosis,omitempty"`
	Insurance      []ClaimInsurance      `json:"insurance,omitempty"`
	Item           []ClaimItem           `json:"item,omitempty"`
	Total          *Money                `json:"total,omitempty"`
	Extension      []Extension           `json:"extension,omitempty"`
}

type ClaimPayee struct {
	Type *CodeableConcept `json:"type,omitempty"`
}

// ClaimRelated points at an earlier submission by identifier, never by local
// database key; the exchange correlates updates, cancellations, transfers and
// resubmissions through it.
type ClaimRelated struct {
	Claim        *Reference       `json:"claim,omitempty"`
	Relationship *CodeableConcept `json:"relationship,omitempty"`
}

type ClaimCareTeam struct {
	Sequence int              `json:"sequence"`
	Provider *Reference       `json:"provider,omitempty"`
	Role     *CodeableConcept `json:"role,omitempty"`
}

type ClaimSupportingInfo struct {
	Sequence    int              `json:"sequence"`
	Category    *CodeableConcept `json:"category,omitempty"`
	Code        *CodeableConcept `json:"code,omitempty"`
	ValueString string           `json:"valueString,omitempty"`
	ValueQty    *Quantity        `json:"valueQuantity,omitempty"`
}

type ClaimDiagnosis struct {
	Sequence  int              `json:"sequence"`
	Diagnosis *CodeableConcept `json:"diagnosisCodeableConcept,omitempty"`
	Type      []CodeableConcept `json:"type,omitempty"`
}

type ClaimInsurance struct {
	Sequence int        `json:"sequence"`
	Focal    bool       `json:"focal"`
	Coverage *Reference `json:"coverage,omitempty"`
	PreAuthRef []string `json:"preAuthRef,omitempty"`
}

type ClaimItem struct {
	Sequence            int              `json:"sequence"`
	CareTeamSequence    []int            `json:"careTeamSequence,omitempty"`
	DiagnosisSequence   []int            `json:"diagnosisSequence,omitempty"`
	InformationSequence []int            `json:"informationSequence,omitempty"`
	Extension           []Extension      `json:"extension,omitempty"`
	ProductOrService    *CodeableConcept `json:"productOrService,omitempty"`
	ServicedDate        string           `json:"servicedDate,omitempty"`
	Quantity            *Quantity        `json:"quantity,omitempty"`
	UnitPrice           *Money           `json:"unitPrice,omitempty"`
	Factor              float64          `json:"factor,omitempty"`
	Net                 *Money           `json:"net,omitempty"`
	BodySite            *CodeableConcept `json:"bodySite,omitempty"`
}

type ClaimResponse struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier     `json:"identifier,omitempty"`
	Status     string           `json:"status,omitempty"`
	Type       *CodeableConcept `json:"type,omitempty"`
	Use        string           `json:"use,omitempty"`

	Patient   *Reference `json:"patient,omitempty"`
	Created   string     `json:"created,omitempty"`
	Insurer   *Reference `json:"insurer,omitempty"`
	Requestor *Reference `json:"requestor,omitempty"`

	// Request carries the identifier of the claim this response answers. It
	// is the sole correlation key back to the submission.
	Request *Reference `json:"request,omitempty"`

	Outcome     string `json:"outcome,omitempty"`
	Disposition string `json:"disposition,omitempty"`

	PreAuthRef    string  `json:"preAuthRef,omitempty"`
	PreAuthPeriod *Period `json:"preAuthPeriod,omitempty"`

	Item      []ClaimResponseItem  `json:"item,omitempty"`
	Total     []ClaimResponseTotal `json:"total,omitempty"`
	Error     []ClaimResponseError `json:"error,omitempty"`
	Extension []Extension          `json:"extension,omitempty"`
}

type ClaimResponseItem struct {
	ItemSequence int            `json:"itemSequence"`
	Extension    []Extension    `json:"extension,omitempty"`
	Adjudication []Adjudication `json:"adjudication,omitempty"`
}

type Adjudication struct {
	Category *CodeableConcept `json:"category,omitempty"`
	Reason   *CodeableConcept `json:"reason,omitempty"`
	Amount   *Money           `json:"amount,omitempty"`
	Value    *float64         `json:"value,omitempty"`
}

type ClaimResponseTotal struct {
	Category *CodeableConcept `json:"category,omitempty"`
	Amount   *Money           `json:"amount,omitempty"`
}

type ClaimResponseError struct {
	Code *CodeableConcept `json:"code,omitempty"`
}
