package fhir

type Patient struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier    []Identifier     `json:"identifier,omitempty"`
	Active        bool             `json:"active,omitempty"`
	Name          []HumanName      `json:"name,omitempty"`
	Telecom       []ContactPoint   `json:"telecom,omitempty"`
	Gender        string           `json:"gender,omitempty"`
	BirthDate     string           `json:"birthDate,omitempty"`
	MaritalStatus *CodeableConcept `json:"maritalStatus,omitempty"`
}

type Organization struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier      `json:"identifier,omitempty"`
	Active     bool              `json:"active,omitempty"`
	Type       []CodeableConcept `json:"type,omitempty"`
	Name       string            `json:"name,omitempty"`
}

type Coverage struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier   []Identifier     `json:"identifier,omitempty"`
	Status       string           `json:"status,omitempty"`
	Type         *CodeableConcept `json:"type,omitempty"`
	PolicyHolder *Reference       `json:"policyHolder,omitempty"`
	Subscriber   *Reference       `json:"subscriber,omitempty"`
	SubscriberID string           `json:"subscriberId,omitempty"`
	Beneficiary  *Reference       `json:"beneficiary,omitempty"`
	Relationship *CodeableConcept `json:"relationship,omitempty"`
	Period       *Period          `json:"period,omitempty"`
	Payor        []Reference      `json:"payor,omitempty"`
	Network      string           `json:"network,omitempty"`
}

type Practitioner struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier `json:"identifier,omitempty"`
	Active     bool         `json:"active,omitempty"`
	Name       []HumanName  `json:"name,omitempty"`
}

type Encounter struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier      []Identifier     `json:"identifier,omitempty"`
	Status          string           `json:"status,omitempty"`
	Class           *Coding          `json:"class,omitempty"`
	ServiceType     *CodeableConcept `json:"serviceType,omitempty"`
	Subject         *Reference       `json:"subject,omitempty"`
	Period          *Period          `json:"period,omitempty"`
	ServiceProvider *Reference       `json:"serviceProvider,omitempty"`
}

type VisionPrescription struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier        []Identifier        `json:"identifier,omitempty"`
	Status            string              `json:"status,omitempty"`
	Created           string              `json:"created,omitempty"`
	Patient           *Reference          `json:"patient,omitempty"`
	DateWritten       string              `json:"dateWritten,omitempty"`
	Prescriber        *Reference          `json:"prescriber,omitempty"`
	LensSpecification []LensSpecification `json:"lensSpecification,omitempty"`
}

type LensSpecification struct {
	Product  *CodeableConcept `json:"product,omitempty"`
	Eye      string           `json:"eye,omitempty"`
	Sphere   *float64         `json:"sphere,omitempty"`
	Cylinder *float64         `json:"cylinder,omitempty"`
	Axis     *int             `json:"axis,omitempty"`
	Add      *float64         `json:"add,omitempty"`
	Power    *float64         `json:"power,omitempty"`
}

// Task carries a polling request: a single task of code "poll", optionally
// focus-scoped to one submission via an identifier input.
type Task struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier   []Identifier     `json:"identifier,omitempty"`
	Status       string           `json:"status,omitempty"`
	Intent       string           `json:"intent,omitempty"`
	Code         *CodeableConcept `json:"code,omitempty"`
	AuthoredOn   string           `json:"authoredOn,omitempty"`
	LastModified string           `json:"lastModified,omitempty"`
	Requester    *Reference       `json:"requester,omitempty"`
	Owner        *Reference       `json:"owner,omitempty"`
	Input        []TaskInput      `json:"input,omitempty"`
	Output       []TaskOutput     `json:"output,omitempty"`
}

type TaskInput struct {
	Type             *CodeableConcept `json:"type,omitempty"`
	ValueCode        string           `json:"valueCode,omitempty"`
	ValueDate        string           `json:"valueDate,omitempty"`
	ValueIdentifier  *Identifier      `json:"valueIdentifier,omitempty"`
	ValuePositiveInt *int             `json:"valuePositiveInt,omitempty"`
}

type TaskOutput struct {
	Type           *CodeableConcept `json:"type,omitempty"`
	ValueReference *Reference       `json:"valueReference,omitempty"`
}

// CommunicationRequest is the inbound ask for more data about a pending
// submission; About ties it back by identifier.
type CommunicationRequest struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier           `json:"identifier,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Category   []CodeableConcept      `json:"category,omitempty"`
	Priority   string                 `json:"priority,omitempty"`
	About      []Reference            `json:"about,omitempty"`
	Recipient  []Reference            `json:"recipient,omitempty"`
	Sender     *Reference             `json:"sender,omitempty"`
	Payload    []CommunicationPayload `json:"payload,omitempty"`
	ReasonCode []CodeableConcept      `json:"reasonCode,omitempty"`
}

type Communication struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`

	Identifier []Identifier           `json:"identifier,omitempty"`
	BasedOn    []Reference            `json:"basedOn,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Category   []CodeableConcept      `json:"category,omitempty"`
	Priority   string                 `json:"priority,omitempty"`
	Subject    *Reference             `json:"subject,omitempty"`
	About      []Reference            `json:"about,omitempty"`
	Recipient  []Reference            `json:"recipient,omitempty"`
	Sender     *Reference             `json:"sender,omitempty"`
	Payload    []CommunicationPayload `json:"payload,omitempty"`
}

type CommunicationPayload struct {
	ContentString     string      `json:"contentString,omitempty"`
	ContentAttachment *Attachment `json:"contentAttachment,omitempty"`
}
