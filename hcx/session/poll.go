package session

import (
	"context"
	"encoding/json"
	goerrors "errors"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/hcx/adjudication"
	"github.com/hayat-his/hcx-app/hcx/constants"
	hcxerrors "github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// PollOutcome summarizes one poll round.
type PollOutcome struct {
	Status models.SubmissionStatus

	// Applied is true when a matched final adjudication moved the submission
	// to a terminal state this round.
	Applied      bool
	Adjudication *models.AdjudicationResult

	// InformationRequestIDs are the side-channel asks recorded this round.
	InformationRequestIDs []uint

	// AckedCommunicationIDs are communications whose delivery the exchange
	// acknowledged this round.
	AckedCommunicationIDs []uint

	// Unmatched counts responses in the batch that belonged to someone else.
	Unmatched int
}

// Poll asks the exchange for pending traffic scoped to one submission and
// applies what comes back. Re-polling a terminal submission is a no-op. The
// caller provides serialization per submission; within one call the repository
// writes should be transaction-scoped (see WithRepository).
func (s *ExchangeSession) Poll(ctx context.Context, submissionID uint) (*PollOutcome, error) {
	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"submission_id":    submission.ID,
		"submission_value": submission.SubmissionValue,
	})

	if submission.Status.Terminal() {
		logger.Info("submission already terminal, poll skipped")
		return &PollOutcome{Status: submission.Status}, nil
	}

	if submission.Status == models.SubmissionStatusQueued {
		err := s.repo.UpdateSubmissionStatusCheckStatus(ctx, submission.ID,
			models.SubmissionStatusQueued, models.SubmissionStatusPolling)
		if err != nil && !goerrors.Is(err, models.ErrSubmissionNotUpdated) {
			return nil, err
		}
		submission.Status = models.SubmissionStatusPolling
	}

	bundle, err := s.buildTaskBundle(submission, constants.TaskCodePoll)
	if err != nil {
		return nil, err
	}

	// A failed poll leaves the submission in polling; polls are idempotent on
	// the exchange side and safe to retry.
	reply, err := s.client.Send(ctx, bundle)
	if err != nil {
		logger.WithError(err).Error("poll send failed")
		return nil, err
	}

	return s.applyPollReply(ctx, logger, submission, reply)
}

func (s *ExchangeSession) applyPollReply(ctx context.Context, logger logrus.FieldLogger,
	submission *models.Submission, reply *fhir.Bundle) (*PollOutcome, error) {

	inbound := adjudication.Categorize(reply)
	outcome := &PollOutcome{Status: submission.Status}

	// Malformed entries are isolated: logged with the raw payload retained,
	// treated as no match, and the rest of the batch proceeds.
	for _, parseErr := range inbound.Malformed {
		logger.WithError(parseErr).Warn("malformed inbound message isolated")
		diag := &models.UnmatchedResponse{Raw: parseErr.Raw}
		if err := s.repo.CreateUnmatchedResponse(ctx, diag); err != nil {
			logger.WithError(err).Error("failed to record malformed message")
		}
	}

	matched, unmatched := s.matcher.Resolve(inbound.Adjudications,
		submission.SubmissionSystem, submission.SubmissionValue)
	outcome.Unmatched = len(unmatched)
	for _, cr := range unmatched {
		s.recordUnmatched(ctx, logger, cr)
	}

	for _, cr := range matched {
		applied, result, err := s.applyAdjudication(ctx, logger, submission, cr)
		if err != nil {
			return nil, err
		}
		if applied {
			outcome.Applied = true
			outcome.Adjudication = result
			outcome.Status = submission.Status
		}
	}

	for _, req := range inbound.InformationRequests {
		id, err := s.recordInformationRequest(ctx, logger, submission, req)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			outcome.InformationRequestIDs = append(outcome.InformationRequestIDs, id)
		}
	}

	for _, ack := range inbound.CommunicationAcks {
		id, err := s.applyCommunicationAck(ctx, logger, submission, ack)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			outcome.AckedCommunicationIDs = append(outcome.AckedCommunicationIDs, id)
		}
	}

	outcome.Status = submission.Status
	return outcome, nil
}

// applyAdjudication applies one matched ClaimResponse. A queued outcome is a
// poll acknowledgment, not a decision. Applying a final result is idempotent:
// the check-and-set transition fails quietly if another round already
// finalized the submission, and no duplicate rows are written.
func (s *ExchangeSession) applyAdjudication(ctx context.Context, logger logrus.FieldLogger,
	submission *models.Submission, cr *fhir.ClaimResponse) (bool, *models.AdjudicationResult, error) {

	result := adjudication.ParseResponse(cr)
	status := statusForResult(result)
	if status == models.SubmissionStatusQueued {
		logger.Info("poll acknowledged, still queued")
		return false, nil, nil
	}

	if submission.Status.Terminal() {
		logger.Info("submission already terminal, adjudication ignored")
		return false, nil, nil
	}

	// The exchange processed the poll but could not adjudicate. Park in error
	// with the diagnostics retained; retrying is the user's call, not the
	// poll loop's.
	if status == models.SubmissionStatusError {
		if err := s.repo.UpdateSubmissionFailure(ctx, submission.ID, failureText(result)); err != nil {
			return false, nil, errors.Wrap(err, "failed to record adjudication error")
		}
		submission.Status = status
		logger.WithField("disposition", result.Disposition).Error("exchange reported an error outcome")
		return false, nil, nil
	}

	err := s.repo.UpdateSubmissionStatusCheckStatus(ctx, submission.ID, submission.Status, status)
	if goerrors.Is(err, models.ErrSubmissionNotUpdated) {
		logger.Info("submission finalized concurrently, adjudication ignored")
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "failed to finalize submission")
	}

	result.SubmissionID = submission.ID
	if _, err := s.repo.CreateAdjudication(ctx, result); err != nil {
		return false, nil, errors.Wrap(err, "failed to persist adjudication")
	}

	submission.Status = status
	logger.WithField("status", status).Info("adjudication applied")
	return true, result, nil
}

// recordInformationRequest stores an inbound ask once; re-delivery on a later
// poll round is a no-op. It never changes the submission's main status.
func (s *ExchangeSession) recordInformationRequest(ctx context.Context, logger logrus.FieldLogger,
	submission *models.Submission, req *fhir.CommunicationRequest) (uint, error) {

	requestID := req.ID
	if len(req.Identifier) > 0 && req.Identifier[0].Value != "" {
		requestID = req.Identifier[0].Value
	}
	if requestID == "" {
		logger.Warn("information request with no identifier ignored")
		return 0, nil
	}

	existing, err := s.repo.GetInformationRequestByRequestID(ctx, submission.ID, requestID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, nil
	}

	var payload string
	if len(req.Payload) > 0 {
		payload = req.Payload[0].ContentString
	}
	if payload == "" {
		if raw, err := json.Marshal(req.Payload); err == nil {
			payload = string(raw)
		}
	}

	id, err := s.repo.CreateInformationRequest(ctx, &models.InformationRequest{
		SubmissionID: submission.ID,
		RequestID:    requestID,
		Payload:      payload,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to record information request")
	}

	logger.WithField("request_id", requestID).Info("information request recorded")
	return id, nil
}

// applyCommunicationAck resolves a delivery acknowledgment back to the
// communication that carried the identifier and advances its micro-state.
func (s *ExchangeSession) applyCommunicationAck(ctx context.Context, logger logrus.FieldLogger,
	submission *models.Submission, ack *fhir.Communication) (uint, error) {

	var identifierValue string
	if len(ack.Identifier) > 0 {
		identifierValue = ack.Identifier[0].Value
	}
	if identifierValue == "" {
		logger.Warn("communication ack with no identifier ignored")
		return 0, nil
	}

	comm, err := s.repo.GetCommunicationByIdentifier(ctx, submission.ID, identifierValue)
	if err != nil {
		return 0, err
	}
	if comm == nil {
		logger.WithField("identifier", identifierValue).Warn("communication ack matched nothing")
		return 0, nil
	}
	if comm.Status == models.CommunicationAcked {
		return 0, nil
	}

	if err := s.repo.UpdateCommunicationStatus(ctx, comm.ID, models.CommunicationAcked); err != nil {
		return 0, errors.Wrap(err, "failed to acknowledge communication")
	}

	logger.WithField("communication_id", comm.ID).Info("communication acknowledged")
	return comm.ID, nil
}

func (s *ExchangeSession) recordUnmatched(ctx context.Context, logger logrus.FieldLogger, cr *fhir.ClaimResponse) {
	diag := &models.UnmatchedResponse{ResourceType: fhir.ResourceTypeClaimResponse}
	if id := adjudication.AnswersTo(cr); id != nil {
		diag.IdentifierSystem = id.System
		diag.IdentifierValue = id.Value
	}
	if raw, err := json.Marshal(cr); err == nil {
		diag.Raw = raw
	}

	matchErr := &hcxerrors.MatchingAmbiguityError{
		System: diag.IdentifierSystem,
		Value:  diag.IdentifierValue,
	}
	logger.WithError(matchErr).Warn("unmatched adjudication recorded, not applied")

	if err := s.repo.CreateUnmatchedResponse(ctx, diag); err != nil {
		logger.WithError(err).Error("failed to record unmatched response")
	}
}
