package models

import (
	"context"
	"errors"
)

// Repository contains all of the methods needed to interact with submission
// data. Implementations live in the postgres subpackage; a transaction-scoped
// variant backs the poll-and-apply path.
type Repository interface {
	submissionRepository
	adjudicationRepository
	informationRequestRepository
	communicationRepository
	diagnosticsRepository
}

type submissionRepository interface {
	CreateSubmission(ctx context.Context, s *Submission) (uint, error)

	GetSubmissionByID(ctx context.Context, id uint) (*Submission, error)

	// GetSubmissionByIdentifier looks up by the wire correlation key.
	// System and value are compared exactly as stored.
	GetSubmissionByIdentifier(ctx context.Context, system, value string) (*Submission, error)

	// GetPendingSubmissions returns submissions in queued or polling state,
	// the candidates for the poll worker pool.
	GetPendingSubmissions(ctx context.Context) ([]*Submission, error)

	UpdateSubmissionStatus(ctx context.Context, id uint, new SubmissionStatus) error

	// UpdateSubmissionStatusCheckStatus updates iff the submission's status
	// field matches current. Guards terminal states against flapping.
	UpdateSubmissionStatusCheckStatus(ctx context.Context, id uint, current, new SubmissionStatus) error

	// UpdateSubmissionFailure moves the submission to error and retains the
	// raw failure for operator inspection.
	UpdateSubmissionFailure(ctx context.Context, id uint, rawFailure string) error

	UpdateSubmissionCorrelationID(ctx context.Context, id uint, correlationID string) error
}

type adjudicationRepository interface {
	// CreateAdjudication persists the result and its line items.
	CreateAdjudication(ctx context.Context, result *AdjudicationResult) (uint, error)

	GetLatestAdjudication(ctx context.Context, submissionID uint) (*AdjudicationResult, error)
}

type informationRequestRepository interface {
	CreateInformationRequest(ctx context.Context, req *InformationRequest) (uint, error)

	GetInformationRequestByRequestID(ctx context.Context, submissionID uint, requestID string) (*InformationRequest, error)

	GetInformationRequestByID(ctx context.Context, id uint) (*InformationRequest, error)

	MarkInformationRequestResponded(ctx context.Context, id uint, communicationID uint) error
}

type communicationRepository interface {
	CreateCommunication(ctx context.Context, c *Communication) (uint, error)

	GetCommunicationByID(ctx context.Context, id uint) (*Communication, error)

	// GetCommunicationByIdentifier matches a delivery acknowledgment back to
	// the communication that carried the identifier on the wire.
	GetCommunicationByIdentifier(ctx context.Context, submissionID uint, identifierValue string) (*Communication, error)

	UpdateCommunicationStatus(ctx context.Context, id uint, new CommunicationStatus) error
}

type diagnosticsRepository interface {
	// CreateUnmatchedResponse records poll traffic that resolved to no open
	// submission.
	CreateUnmatchedResponse(ctx context.Context, u *UnmatchedResponse) error
}

var (
	ErrSubmissionNotUpdated = errors.New("submission was not updated, no match found")
	ErrSubmissionNotFound   = errors.New("no submission found for given id")
)
