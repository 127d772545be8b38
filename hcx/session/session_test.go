package session

import (
	"context"
	"database/sql"
	goerrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/hayat-his/hcx-app/hcx/client"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

const (
	testSystem = "http://provider.hayat-his.sa/authorization"
	testValue  = "req-1001"
)

type SessionTestSuite struct {
	suite.Suite

	repo     *models.MockRepository
	exchange *client.MockExchangeClient
	session  *ExchangeSession
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	s.repo = &models.MockRepository{}
	s.exchange = &client.MockExchangeClient{}

	var err error
	s.session, err = New(Config{
		SourceEndpoint:   "http://provider.hayat-his.sa",
		ExchangeEndpoint: "http://exchange.hcx.sa",
		ProviderLicense:  "PR-10001",
	}, s.repo, s.exchange)
	assert.NoError(s.T(), err)
}

func validProfessionalInput() models.SubmissionInput {
	return models.SubmissionInput{
		SubmissionSystem: testSystem,
		SubmissionValue:  testValue,
		Use:              models.UsePreAuth,
		Patient:          models.PatientRecord{DocumentID: "1023456789", FirstName: "Salem", LastName: "Alharbi", Gender: "male"},
		Provider:         models.ProviderRecord{LicenseID: "PR-10001", Name: "Hayat Clinic"},
		Insurer:          models.InsurerRecord{LicenseID: "INS-201", Name: "Gulf Insurance"},
		Coverage:         models.CoverageRecord{MemberCardID: "43219876"},
		Encounter:        &models.EncounterRecord{ClassCode: "AMB", Start: time.Now()},
		Diagnoses:        []models.DiagnosisInput{{Code: "J02.9"}},
		Items: []models.ItemInput{{
			ServiceCode: "83620-00-10",
			Quantity:    1,
			UnitPrice:   150,
		}},
	}
}

func claimResponse(outcome, disposition, reqSystem, reqValue string) fhir.ClaimResponse {
	cr := fhir.ClaimResponse{
		ResourceType: fhir.ResourceTypeClaimResponse,
		Status:       "active",
		Outcome:      outcome,
		Disposition:  disposition,
	}
	if reqValue != "" {
		cr.Request = &fhir.Reference{Identifier: &fhir.Identifier{System: reqSystem, Value: reqValue}}
	}
	return cr
}

func replyBundle(t *testing.T, resources ...interface{}) *fhir.Bundle {
	b := &fhir.Bundle{ResourceType: fhir.ResourceTypeBundle, ID: "reply-1", Type: "message"}
	for _, r := range resources {
		entry, err := fhir.NewEntry("", r)
		assert.NoError(t, err)
		b.Entries = append(b.Entries, entry)
	}
	return b
}

func (s *SessionTestSuite) TestSubmitBuildErrorBeforePersistOrSend() {
	in := validProfessionalInput()
	in.Encounter = nil // professional claims require one

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, in)
	assert.Nil(s.T(), handle)

	var buildErr *errors.BuildError
	assert.ErrorAs(s.T(), err, &buildErr)

	s.repo.AssertNotCalled(s.T(), "CreateSubmission", mock.Anything, mock.Anything)
	s.exchange.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestSubmitQueuedBySynchronousReply() {
	s.repo.On("CreateSubmission", mock.Anything, mock.MatchedBy(func(sub *models.Submission) bool {
		return sub.SubmissionValue == testValue && sub.Status == models.SubmissionStatusSent &&
			len(sub.RequestSnapshot) > 0
	})).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	s.repo.On("UpdateSubmissionStatus", mock.Anything, uint(7), models.SubmissionStatusQueued).Return(nil)

	reply := replyBundle(s.T(), claimResponse("queued", "", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusQueued, handle.Status)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestSubmitAcknowledgmentOnlyReplyQueues() {
	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	s.repo.On("UpdateSubmissionStatus", mock.Anything, uint(7), models.SubmissionStatusQueued).Return(nil)

	// No ClaimResponse at all: the exchange accepted and will adjudicate later.
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(replyBundle(s.T()), nil)

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusQueued, handle.Status)
}

func (s *SessionTestSuite) TestSubmitSynchronousApproval() {
	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	s.repo.On("CreateAdjudication", mock.Anything, mock.MatchedBy(func(r *models.AdjudicationResult) bool {
		return r.SubmissionID == 7 && r.Decision == models.DecisionApproved
	})).Return(uint(1), nil)
	s.repo.On("UpdateSubmissionStatus", mock.Anything, uint(7), models.SubmissionStatusApproved).Return(nil)

	reply := replyBundle(s.T(), claimResponse("complete", "Approved by reviewer", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusApproved, handle.Status)
	assert.NotNil(s.T(), handle.Adjudication)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestSubmitTransportErrorParksInError() {
	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionFailure", mock.Anything, uint(7), mock.Anything).Return(nil)

	transportErr := &errors.TransportError{Err: assert.AnError}
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(nil, transportErr)

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.Error(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusError, handle.Status)

	// No automatic retry: exactly one send.
	s.exchange.AssertNumberOfCalls(s.T(), "Send", 1)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestSubmitErrorOutcomeParksInError() {
	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	s.repo.On("UpdateSubmissionFailure", mock.Anything, uint(7), "claim could not be processed").Return(nil)

	reply := replyBundle(s.T(), claimResponse("error", "claim could not be processed", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	handle, err := s.session.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusError, handle.Status)

	// Never queued, never finalized as a decision.
	s.repo.AssertNotCalled(s.T(), "UpdateSubmissionStatus", mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertNotCalled(s.T(), "CreateAdjudication", mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
}

// newTxSession builds a session that owns transaction scoping, with the
// transactional repository swapped for a second mock.
func (s *SessionTestSuite) newTxSession() (*ExchangeSession, *models.MockRepository, sqlmock.Sqlmock, *sql.DB) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(s.T(), err)

	txRepo := &models.MockRepository{}
	sess := s.session.WithDatabase(db)
	sess.txRepo = func(tx *sql.Tx) models.Repository { return txRepo }
	return sess, txRepo, dbMock, db
}

func (s *SessionTestSuite) TestSubmitFinalReplyAppliedInTransaction() {
	sess, txRepo, dbMock, db := s.newTxSession()
	defer db.Close()

	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	txRepo.On("CreateAdjudication", mock.Anything, mock.Anything).Return(uint(1), nil)
	txRepo.On("UpdateSubmissionStatus", mock.Anything, uint(7), models.SubmissionStatusApproved).Return(nil)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectCommit()

	reply := replyBundle(s.T(), claimResponse("complete", "Approved by reviewer", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	handle, err := sess.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusApproved, handle.Status)

	// The apply ran on the transactional repository, not the session's own.
	s.repo.AssertNotCalled(s.T(), "CreateAdjudication", mock.Anything, mock.Anything)
	txRepo.AssertExpectations(s.T())
	assert.NoError(s.T(), dbMock.ExpectationsWereMet())
}

func (s *SessionTestSuite) TestSubmitFinalReplyRollsBackOnApplyFailure() {
	sess, txRepo, dbMock, db := s.newTxSession()
	defer db.Close()

	s.repo.On("CreateSubmission", mock.Anything, mock.Anything).Return(uint(7), nil)
	s.repo.On("UpdateSubmissionCorrelationID", mock.Anything, uint(7), "reply-1").Return(nil)
	txRepo.On("CreateAdjudication", mock.Anything, mock.Anything).Return(uint(0), assert.AnError)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	reply := replyBundle(s.T(), claimResponse("complete", "Approved by reviewer", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	_, err := sess.Submit(context.Background(), models.ClaimTypeProfessional, validProfessionalInput())
	assert.Error(s.T(), err)

	// The status transition never lands outside the failed transaction.
	txRepo.AssertNotCalled(s.T(), "UpdateSubmissionStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(s.T(), dbMock.ExpectationsWereMet())
}

func (s *SessionTestSuite) pendingSubmission(status models.SubmissionStatus) *models.Submission {
	return &models.Submission{
		ID:               7,
		SubmissionSystem: testSystem,
		SubmissionValue:  testValue,
		ClaimType:        models.ClaimTypeProfessional,
		Use:              models.UsePreAuth,
		Status:           status,
		RequestSnapshot:  []byte(`{"resourceType":"Bundle","type":"message"}`),
	}
}

func (s *SessionTestSuite) TestPollTerminalIsNoOp() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusApproved), nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubmissionStatusApproved, outcome.Status)
	assert.False(s.T(), outcome.Applied)
	s.exchange.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestPollAppliesMatchedAdjudication() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusQueued), nil)
	s.repo.On("UpdateSubmissionStatusCheckStatus", mock.Anything, uint(7),
		models.SubmissionStatusQueued, models.SubmissionStatusPolling).Return(nil)
	s.repo.On("UpdateSubmissionStatusCheckStatus", mock.Anything, uint(7),
		models.SubmissionStatusPolling, models.SubmissionStatusApproved).Return(nil)
	s.repo.On("CreateAdjudication", mock.Anything, mock.Anything).Return(uint(1), nil)

	reply := replyBundle(s.T(), claimResponse("complete", "Approved by reviewer", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.MatchedBy(func(b *fhir.Bundle) bool {
		// poll envelope: header first, single Task focus-scoped to us
		return b.Entries[0].ResourceType() == fhir.ResourceTypeMessageHeader &&
			b.Entries[1].ResourceType() == fhir.ResourceTypeTask
	})).Return(reply, nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.True(s.T(), outcome.Applied)
	assert.Equal(s.T(), models.SubmissionStatusApproved, outcome.Status)
	assert.Equal(s.T(), models.DecisionApproved, outcome.Adjudication.Decision)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestPollUnmatchedRecordedNeverApplied() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("CreateUnmatchedResponse", mock.Anything, mock.MatchedBy(func(u *models.UnmatchedResponse) bool {
		return u.IdentifierValue == testValue
	})).Return(nil)

	// identifier differs by system case only: still unmatched
	otherSystem := "http://PROVIDER.hayat-his.sa/authorization"
	reply := replyBundle(s.T(), claimResponse("complete", "Approved", otherSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.False(s.T(), outcome.Applied)
	assert.Equal(s.T(), 1, outcome.Unmatched)
	assert.Equal(s.T(), models.SubmissionStatusPolling, outcome.Status)
	s.repo.AssertNotCalled(s.T(), "CreateAdjudication", mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestPollInformationRequestSideChannel() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("GetInformationRequestByRequestID", mock.Anything, uint(7), "cr-55").Return(nil, nil)
	s.repo.On("CreateInformationRequest", mock.Anything, mock.MatchedBy(func(r *models.InformationRequest) bool {
		return r.SubmissionID == 7 && r.RequestID == "cr-55" && r.Payload == "please attach the radiology report"
	})).Return(uint(3), nil)

	request := fhir.CommunicationRequest{
		ResourceType: fhir.ResourceTypeCommunicationRequest,
		Identifier:   []fhir.Identifier{{Value: "cr-55"}},
		Status:       "active",
		Payload:      []fhir.CommunicationPayload{{ContentString: "please attach the radiology report"}},
	}
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(replyBundle(s.T(), request), nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), []uint{3}, outcome.InformationRequestIDs)

	// the main state machine does not move on an information request
	assert.Equal(s.T(), models.SubmissionStatusPolling, outcome.Status)
	s.repo.AssertNotCalled(s.T(), "UpdateSubmissionStatusCheckStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestPollRedeliveredInformationRequestNotDuplicated() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("GetInformationRequestByRequestID", mock.Anything, uint(7), "cr-55").
		Return(&models.InformationRequest{ID: 3, SubmissionID: 7, RequestID: "cr-55"}, nil)

	request := fhir.CommunicationRequest{
		ResourceType: fhir.ResourceTypeCommunicationRequest,
		Identifier:   []fhir.Identifier{{Value: "cr-55"}},
	}
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(replyBundle(s.T(), request), nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), outcome.InformationRequestIDs)
	s.repo.AssertNotCalled(s.T(), "CreateInformationRequest", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestPollConcurrentFinalizationIsIgnored() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("UpdateSubmissionStatusCheckStatus", mock.Anything, uint(7),
		models.SubmissionStatusPolling, models.SubmissionStatusApproved).
		Return(models.ErrSubmissionNotUpdated)

	reply := replyBundle(s.T(), claimResponse("complete", "Approved", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.False(s.T(), outcome.Applied)
	s.repo.AssertNotCalled(s.T(), "CreateAdjudication", mock.Anything, mock.Anything)
}

func (s *SessionTestSuite) TestPollErrorOutcomeParksInError() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("UpdateSubmissionFailure", mock.Anything, uint(7), "payer adapter unavailable").Return(nil)

	reply := replyBundle(s.T(), claimResponse("error", "payer adapter unavailable", testSystem, testValue))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.False(s.T(), outcome.Applied)
	assert.Equal(s.T(), models.SubmissionStatusError, outcome.Status)

	// Parked, not finalized: no decision row, no state-machine transition.
	s.repo.AssertNotCalled(s.T(), "CreateAdjudication", mock.Anything, mock.Anything)
	s.repo.AssertNotCalled(s.T(), "UpdateSubmissionStatusCheckStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestPollUnmatchedLoggedAsMatchingAmbiguity() {
	logger, hook := logrustest.NewNullLogger()
	s.session.logger = logger

	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("CreateUnmatchedResponse", mock.Anything, mock.Anything).Return(nil)

	reply := replyBundle(s.T(), claimResponse("complete", "Approved", testSystem, "req-9999"))
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	_, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)

	var matchErr *errors.MatchingAmbiguityError
	for _, entry := range hook.AllEntries() {
		if logged, ok := entry.Data[logrus.ErrorKey].(error); ok && goerrors.As(logged, &matchErr) {
			break
		}
	}
	if assert.NotNil(s.T(), matchErr) {
		assert.Equal(s.T(), "req-9999", matchErr.Value)
		assert.Equal(s.T(), testSystem, matchErr.System)
	}
}

func (s *SessionTestSuite) TestPollMalformedMessageDoesNotBlockBatch() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusPolling), nil)
	s.repo.On("CreateUnmatchedResponse", mock.Anything, mock.Anything).Return(nil)
	s.repo.On("UpdateSubmissionStatusCheckStatus", mock.Anything, uint(7),
		models.SubmissionStatusPolling, models.SubmissionStatusApproved).Return(nil)
	s.repo.On("CreateAdjudication", mock.Anything, mock.Anything).Return(uint(1), nil)

	reply := replyBundle(s.T(), claimResponse("complete", "Approved", testSystem, testValue))
	// a mangled entry rides along in the same batch
	reply.Entries = append(reply.Entries, fhir.BundleEntry{Resource: []byte(`{"resourceType":"ClaimResponse","outcome":7}`)})
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(reply, nil)

	outcome, err := s.session.Poll(context.Background(), 7)
	assert.NoError(s.T(), err)
	assert.True(s.T(), outcome.Applied)
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestCancelPendingSubmission() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusQueued), nil)
	s.repo.On("UpdateSubmissionStatus", mock.Anything, uint(7), models.SubmissionStatusCancelled).Return(nil)
	s.exchange.On("Send", mock.Anything, mock.Anything).Return(replyBundle(s.T()), nil)

	assert.NoError(s.T(), s.session.Cancel(context.Background(), 7))
	s.repo.AssertExpectations(s.T())
}

func (s *SessionTestSuite) TestCancelTerminalRefused() {
	s.repo.On("GetSubmissionByID", mock.Anything, uint(7)).
		Return(s.pendingSubmission(models.SubmissionStatusApproved), nil)

	assert.Error(s.T(), s.session.Cancel(context.Background(), 7))
	s.exchange.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
}
