package constants

// Terminology and identifier systems used on the wire. Every identifier sent
// to or matched against the exchange carries one of these system URIs; the
// exchange has no visibility into local database keys.
const (
	BaseURL = "http://exchange.hcx.sa"

	ProviderLicenseSystem     = BaseURL + "/license/provider-license"
	PayerLicenseSystem        = BaseURL + "/license/payer-license"
	PractitionerLicenseSystem = BaseURL + "/license/practitioner-license"
	NationalIDSystem          = BaseURL + "/identifier/nationalid"
	MemberCardSystem          = BaseURL + "/identifier/memberid"

	ClaimTypeSystem         = "http://terminology.hl7.org/CodeSystem/claim-type"
	ClaimSubTypeSystem      = BaseURL + "/terminology/CodeSystem/claim-subtype"
	SupportingInfoSystem    = BaseURL + "/terminology/CodeSystem/claim-information-category"
	AdjudicationSystem      = "http://terminology.hl7.org/CodeSystem/adjudication"
	AdjudicationErrorSystem = BaseURL + "/terminology/CodeSystem/adjudication-error"
	TaskCodeSystem          = BaseURL + "/terminology/CodeSystem/task-code"
	TaskInputTypeSystem     = BaseURL + "/terminology/CodeSystem/task-input-type"

	TaskCodePoll   = "poll"
	TaskCodeCancel = "cancel"
	TaskInputFocus = "include-message-identifier"
	CommunicationCatSystem  = BaseURL + "/terminology/CodeSystem/communication-category"
	FDIOralRegionSystem     = BaseURL + "/terminology/CodeSystem/fdi-oral-region"
	RelatedClaimRelSystem   = BaseURL + "/terminology/CodeSystem/related-claim-relationship"
	BodySiteSystem          = BaseURL + "/terminology/CodeSystem/body-site"
)

// Extension URLs. Line-item money extensions are mandatory for every sub-type;
// the invoice extension only for use=claim.
const (
	ExtPatientShare         = BaseURL + "/extension-patient-share"
	ExtTax                  = BaseURL + "/extension-tax"
	ExtPatientInvoice       = BaseURL + "/extension-patient-invoice"
	ExtAdjudicationOutcome  = BaseURL + "/extension-adjudication-outcome"
	ExtAuthOfflineDate      = BaseURL + "/extension-authorization-offline-date"
	ExtTransferAuthorizaton = BaseURL + "/extension-transfer"
)

// Message event codes carried by MessageHeader.eventCoding.
const (
	MessageEventSystem = BaseURL + "/terminology/CodeSystem/ksa-message-events"

	EventPriorAuthRequest = "priorauth-request"
	EventClaimRequest     = "claim-request"
	EventPollRequest      = "poll-request"
	EventCancelRequest    = "cancel-request"
	EventCommunication    = "communication"

	EventPriorAuthResponse = "priorauth-response"
	EventClaimResponse     = "claim-response"
	EventPollResponse      = "poll-response"
)

// Supporting information categories the exchange mandates on professional
// claims. Each missing category is a hard validation failure upstream, so the
// builder sources a configured default rather than omitting the entry.
const (
	InfoChiefComplaint   = "chief-complaint"
	InfoPatientHistory   = "patient-history"
	InfoInvestigation    = "investigation-result"
	InfoTreatmentPlan    = "treatment-plan"
	InfoPhysicalExam     = "physical-examination"
	InfoHistoryOfPresent = "history-of-present-illness"
)

// DefaultSupportingInfoText backstops a professional claim submitted without a
// value for a mandatory category.
const DefaultSupportingInfoText = "Not provided"

// PlaceholderBirthDate is emitted when a patient record has no recorded birth
// date; the exchange requires the element to be present.
const PlaceholderBirthDate = "1900-01-01"

const DefaultCurrency = "SAR"

// Queue job types.
const (
	QuePollSubmission = "PollSubmission"
	QuePollCommAck    = "PollCommunicationAck"
)

// This is set during compilation.
var Version = "latest"
