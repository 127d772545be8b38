package session

import (
	"context"
	"fmt"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/hcx/adjudication"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// CommunicationHandle is what SendCommunication hands back.
type CommunicationHandle struct {
	ID     uint
	Status models.CommunicationStatus
}

// SendCommunication sends a free-text/attachment message about a pending
// submission, solicited (answering a recorded information request) or
// unsolicited. It carries its own micro-state and never advances the parent
// submission's main status. A "queued" delivery tag in the reply means the
// counterparty could not hand off within its delivery window; a separate
// acknowledgment poll resolves it later.
func (s *ExchangeSession) SendCommunication(ctx context.Context, submissionID uint,
	payloads []models.CommunicationPayload, solicitedRequestID *uint) (*CommunicationHandle, error) {

	if len(payloads) == 0 {
		return nil, fmt.Errorf("a communication needs at least one payload")
	}

	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status == models.SubmissionStatusDraft {
		return nil, fmt.Errorf("submission %d has not been sent yet", submissionID)
	}

	var wireRequestID string
	if solicitedRequestID != nil {
		request, err := s.repo.GetInformationRequestByID(ctx, *solicitedRequestID)
		if err != nil {
			return nil, err
		}
		if request == nil || request.SubmissionID != submissionID {
			return nil, fmt.Errorf("information request %d does not belong to submission %d",
				*solicitedRequestID, submissionID)
		}
		wireRequestID = request.RequestID
	}

	comm := &models.Communication{
		SubmissionID:       submissionID,
		IdentifierValue:    uuid.New(),
		SolicitedRequestID: solicitedRequestID,
		Payloads:           payloads,
		Status:             models.CommunicationSent,
	}

	bundle, err := s.buildCommunicationBundle(submission, comm, wireRequestID)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.CreateCommunication(ctx, comm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist communication")
	}
	comm.ID = id

	logger := s.logger.WithFields(logrus.Fields{
		"submission_id":    submissionID,
		"communication_id": id,
	})
	logger.Info("sending communication")

	reply, err := s.client.Send(ctx, bundle)
	if err != nil {
		logger.WithError(err).Error("communication send failed")
		return &CommunicationHandle{ID: id, Status: models.CommunicationSent}, err
	}

	status := models.CommunicationAcked
	if deliveryQueued(reply) {
		// The counterparty accepted the message but could not deliver it
		// within its window; retry the acknowledgment poll later.
		status = models.CommunicationQueued
	}

	if err := s.repo.UpdateCommunicationStatus(ctx, id, status); err != nil {
		return nil, errors.Wrap(err, "failed to update communication status")
	}

	if solicitedRequestID != nil {
		if err := s.repo.MarkInformationRequestResponded(ctx, *solicitedRequestID, id); err != nil {
			logger.WithError(err).Warn("failed to mark information request responded")
		}
	}

	logger.WithField("status", status).Info("communication delivery status recorded")
	return &CommunicationHandle{ID: id, Status: status}, nil
}

// deliveryQueued reports whether the synchronous reply carries a queued
// delivery tag instead of a firm acknowledgment.
func deliveryQueued(reply *fhir.Bundle) bool {
	inbound := adjudication.Categorize(reply)
	for _, cr := range inbound.Adjudications {
		if adjudication.ParseResponse(cr).Outcome == models.OutcomeQueued {
			return true
		}
	}
	for _, comm := range inbound.CommunicationAcks {
		if comm.Status == "in-progress" || comm.Status == "preparation" {
			return true
		}
	}
	return false
}
