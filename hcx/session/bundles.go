package session

import (
	"encoding/json"
	"time"

	"github.com/pborman/uuid"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// buildTaskBundle assembles a poll or cancel envelope: a message whose payload
// is a single Task, focus-scoped to the submission's own identifier.
func (s *ExchangeSession) buildTaskBundle(submission *models.Submission, taskCode string) (*fhir.Bundle, error) {
	event := constants.EventPollRequest
	if taskCode == constants.TaskCodeCancel {
		event = constants.EventCancelRequest
	}

	task := fhir.Task{
		ResourceType: fhir.ResourceTypeTask,
		ID:           uuid.New(),
		Identifier: []fhir.Identifier{{
			System: submission.SubmissionSystem,
			Value:  uuid.New(),
		}},
		Status:     "requested",
		Intent:     "order",
		AuthoredOn: time.Now().Format(time.RFC3339),
		Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: constants.TaskCodeSystem,
			Code:   taskCode,
		}}},
		Requester: &fhir.Reference{Identifier: &fhir.Identifier{
			System: constants.ProviderLicenseSystem,
			Value:  s.cfg.ProviderLicense,
		}},
		Input: []fhir.TaskInput{{
			Type: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: constants.TaskInputTypeSystem,
				Code:   constants.TaskInputFocus,
			}}},
			ValueIdentifier: &fhir.Identifier{
				System: submission.SubmissionSystem,
				Value:  submission.SubmissionValue,
			},
		}},
	}

	taskFullURL := fullURL(fhir.ResourceTypeTask, task.ID)
	return s.assembleMessage(submission, event, taskFullURL, task)
}

// buildCommunicationBundle assembles an outbound communication envelope. The
// parent claim is referenced by identifier only; the exchange cannot resolve
// local keys.
func (s *ExchangeSession) buildCommunicationBundle(submission *models.Submission,
	comm *models.Communication, solicitedRequestID string) (*fhir.Bundle, error) {

	resource := fhir.Communication{
		ResourceType: fhir.ResourceTypeCommunication,
		ID:           uuid.New(),
		Identifier: []fhir.Identifier{{
			System: submission.SubmissionSystem,
			Value:  comm.IdentifierValue,
		}},
		Status:   "completed",
		Priority: "routine",
		Category: []fhir.CodeableConcept{{Coding: []fhir.Coding{{
			System: constants.CommunicationCatSystem,
			Code:   "instruction",
		}}}},
		About: []fhir.Reference{{
			Type: fhir.ResourceTypeClaim,
			Identifier: &fhir.Identifier{
				System: submission.SubmissionSystem,
				Value:  submission.SubmissionValue,
			},
		}},
		Sender: &fhir.Reference{Identifier: &fhir.Identifier{
			System: constants.ProviderLicenseSystem,
			Value:  s.cfg.ProviderLicense,
		}},
	}

	if solicitedRequestID != "" {
		resource.BasedOn = []fhir.Reference{{
			Type: fhir.ResourceTypeCommunicationRequest,
			Identifier: &fhir.Identifier{
				System: constants.BaseURL,
				Value:  solicitedRequestID,
			},
		}}
	}

	for _, p := range comm.Payloads {
		payload := fhir.CommunicationPayload{ContentString: p.Text}
		if p.Data != "" {
			payload = fhir.CommunicationPayload{ContentAttachment: &fhir.Attachment{
				ContentType: p.ContentType,
				Data:        p.Data,
				Title:       p.Title,
			}}
		}
		resource.Payload = append(resource.Payload, payload)
	}

	commFullURL := fullURL(fhir.ResourceTypeCommunication, resource.ID)
	return s.assembleMessage(submission, constants.EventCommunication, commFullURL, resource)
}

// assembleMessage wraps one primary resource in a message envelope with the
// header first and header.focus pointing at the primary entry's fullUrl.
func (s *ExchangeSession) assembleMessage(submission *models.Submission, event, primaryFullURL string,
	primary interface{}) (*fhir.Bundle, error) {

	header := fhir.MessageHeader{
		ResourceType: fhir.ResourceTypeMessageHeader,
		ID:           uuid.New(),
		EventCoding: &fhir.Coding{
			System: constants.MessageEventSystem,
			Code:   event,
		},
		Sender: &fhir.Reference{Identifier: &fhir.Identifier{
			System: constants.ProviderLicenseSystem,
			Value:  s.cfg.ProviderLicense,
		}},
		Source: &fhir.MessageSource{Endpoint: s.cfg.SourceEndpoint},
		Destination: []fhir.MessageDestination{{
			Endpoint: s.cfg.ExchangeEndpoint,
			Receiver: s.snapshotReceiver(submission),
		}},
		Focus: []fhir.Reference{{Reference: primaryFullURL}},
	}

	headerEntry, err := fhir.NewEntry(fullURL(fhir.ResourceTypeMessageHeader, header.ID), header)
	if err != nil {
		return nil, err
	}
	primaryEntry, err := fhir.NewEntry(primaryFullURL, primary)
	if err != nil {
		return nil, err
	}

	return &fhir.Bundle{
		ResourceType: fhir.ResourceTypeBundle,
		ID:           uuid.New(),
		Type:         "message",
		Timestamp:    time.Now().Format(time.RFC3339),
		Entries:      []fhir.BundleEntry{headerEntry, primaryEntry},
	}, nil
}

// snapshotReceiver recovers the payer identity from the submission's stored
// outbound envelope so follow-up messages address the same counterparty.
func (s *ExchangeSession) snapshotReceiver(submission *models.Submission) *fhir.Reference {
	var snapshot fhir.Bundle
	if err := json.Unmarshal(submission.RequestSnapshot, &snapshot); err != nil {
		return nil
	}
	header := snapshot.Header()
	if header == nil || len(header.Destination) == 0 {
		return nil
	}
	return header.Destination[0].Receiver
}

func fullURL(resourceType, id string) string {
	return "http://provider.hayat-his.sa/" + resourceType + "/" + id
}
