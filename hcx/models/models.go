package models

import (
	"time"
)

type SubmissionStatus string

// Lifecycle statuses for a submission. Draft through sent is driven by the
// user; sent onward is driven by the synchronous reply or the poll loop.
// Cancelled and superseded are side states orthogonal to the main line.
const (
	SubmissionStatusDraft      SubmissionStatus = "draft"
	SubmissionStatusSent       SubmissionStatus = "sent"
	SubmissionStatusQueued     SubmissionStatus = "queued"
	SubmissionStatusPolling    SubmissionStatus = "polling"
	SubmissionStatusApproved   SubmissionStatus = "approved"
	SubmissionStatusDenied     SubmissionStatus = "denied"
	SubmissionStatusPartial    SubmissionStatus = "partial"
	SubmissionStatusError      SubmissionStatus = "error"
	SubmissionStatusCancelled  SubmissionStatus = "cancelled"
	SubmissionStatusSuperseded SubmissionStatus = "superseded"
)

// Terminal reports whether no further adjudication can change the status.
// Error is retriable by the user and therefore not terminal.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionStatusApproved, SubmissionStatusDenied, SubmissionStatusPartial,
		SubmissionStatusCancelled, SubmissionStatusSuperseded:
		return true
	}
	return false
}

type ClaimType string

const (
	ClaimTypeProfessional  ClaimType = "professional"
	ClaimTypeOral          ClaimType = "oral"
	ClaimTypeVision        ClaimType = "vision"
	ClaimTypeInstitutional ClaimType = "institutional"
	ClaimTypePharmacy      ClaimType = "pharmacy"
)

type ClaimUse string

const (
	UseClaim   ClaimUse = "claim"
	UsePreAuth ClaimUse = "preauthorization"
)

// Submission is one outbound request and its lifecycle. It is never deleted
// once sent; update/transfer/resubmission flows create new submissions that
// point back at it through PredecessorID.
type Submission struct {
	ID uint

	// SubmissionSystem/SubmissionValue form the local identifier assigned by
	// the submitter. They are the sole cross-process correlation key: every
	// inbound response is matched against them by value, not by connection or
	// transaction id.
	SubmissionSystem string
	SubmissionValue  string

	ClaimType ClaimType
	Use       ClaimUse
	Status    SubmissionStatus

	// RequestSnapshot holds the outbound envelope exactly as sent.
	RequestSnapshot []byte

	// CorrelationID is the exchange-assigned bundle id of the synchronous
	// reply, when one was given.
	CorrelationID string

	// LastError retains the raw failure for operator inspection after a
	// transport error or remote rejection.
	LastError string

	PredecessorID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type AdjudicationOutcome string

const (
	OutcomeComplete AdjudicationOutcome = "complete"
	OutcomePartial  AdjudicationOutcome = "partial"
	OutcomeQueued   AdjudicationOutcome = "queued"
	OutcomeError    AdjudicationOutcome = "error"
)

type AdjudicationDecision string

const (
	DecisionApproved AdjudicationDecision = "approved"
	DecisionRejected AdjudicationDecision = "rejected"
	DecisionPartial  AdjudicationDecision = "partial"
	DecisionPending  AdjudicationDecision = "pending"
)

// AdjudicationResult is the normalized outcome of processing an inbound
// response envelope.
type AdjudicationResult struct {
	ID           uint
	SubmissionID uint

	Outcome     AdjudicationOutcome
	Disposition string
	Decision    AdjudicationDecision

	// AuthorizationRef and the validity period are present on approvals.
	AuthorizationRef string
	PeriodStart      time.Time
	PeriodEnd        time.Time

	// Aggregate totals by category.
	TotalEligible float64
	TotalBenefit  float64
	TotalCopay    float64
	Currency      string

	Items []LineAdjudication

	CreatedAt time.Time
}

type LineAdjudication struct {
	ID             uint
	AdjudicationID uint

	ItemSequence int
	Status       string
	Amount       float64
	Currency     string
	ReasonCode   string
	ReasonText   string
}

// InformationRequest is an inbound ask for more data tied to a submission.
type InformationRequest struct {
	ID           uint
	SubmissionID uint

	// RequestID is the exchange's identifier for the CommunicationRequest.
	RequestID string

	Payload   string
	Responded bool

	// CommunicationID links to the communication that answered it, once one
	// was sent.
	CommunicationID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CommunicationStatus string

// Delivery micro-states for an outbound communication, independent of the
// parent submission's adjudication state. Queued-for-delivery means the
// counterparty could not hand off within its delivery window and a separate
// acknowledgment poll must be retried later.
const (
	CommunicationSent   CommunicationStatus = "sent"
	CommunicationAcked  CommunicationStatus = "acknowledged"
	CommunicationQueued CommunicationStatus = "queued-for-delivery"
)

// Communication is an outbound free-text/attachment message, solicited
// (answering one information request) or unsolicited.
type Communication struct {
	ID           uint
	SubmissionID uint

	// IdentifierValue is the local identifier carried on the wire, used to
	// match delivery acknowledgments.
	IdentifierValue string

	// SolicitedRequestID is set when this communication answers an
	// information request.
	SolicitedRequestID *uint

	Payloads []CommunicationPayload
	Status   CommunicationStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CommunicationPayload struct {
	Text        string
	ContentType string
	Data        string
	Title       string
}

// UnmatchedResponse records poll traffic that resolved to no open submission.
// Diagnostics only; never applied.
type UnmatchedResponse struct {
	ID uint

	IdentifierSystem string
	IdentifierValue  string
	ResourceType     string
	Raw              []byte

	CreatedAt time.Time
}

// PollEnqueueArgs is the payload for a queued poll job. Not persisted as a
// model; serialized into the queue.
type PollEnqueueArgs struct {
	SubmissionID uint `json:"submission_id"`

	// CommunicationID is set for acknowledgment polls of one communication.
	CommunicationID uint `json:"communication_id,omitempty"`

	// Attempt counts completed poll rounds for this submission; the queue uses
	// it to space out re-polls.
	Attempt int `json:"attempt,omitempty"`
}
