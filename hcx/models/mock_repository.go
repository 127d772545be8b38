package models

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of Repository.
type MockRepository struct {
	mock.Mock
}

var _ Repository = &MockRepository{}

func (m *MockRepository) CreateSubmission(ctx context.Context, s *Submission) (uint, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockRepository) GetSubmissionByID(ctx context.Context, id uint) (*Submission, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*Submission)
	return s, args.Error(1)
}

func (m *MockRepository) GetSubmissionByIdentifier(ctx context.Context, system, value string) (*Submission, error) {
	args := m.Called(ctx, system, value)
	s, _ := args.Get(0).(*Submission)
	return s, args.Error(1)
}

func (m *MockRepository) GetPendingSubmissions(ctx context.Context) ([]*Submission, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]*Submission)
	return s, args.Error(1)
}

func (m *MockRepository) UpdateSubmissionStatus(ctx context.Context, id uint, new SubmissionStatus) error {
	args := m.Called(ctx, id, new)
	return args.Error(0)
}

func (m *MockRepository) UpdateSubmissionStatusCheckStatus(ctx context.Context, id uint, current, new SubmissionStatus) error {
	args := m.Called(ctx, id, current, new)
	return args.Error(0)
}

func (m *MockRepository) UpdateSubmissionFailure(ctx context.Context, id uint, rawFailure string) error {
	args := m.Called(ctx, id, rawFailure)
	return args.Error(0)
}

func (m *MockRepository) UpdateSubmissionCorrelationID(ctx context.Context, id uint, correlationID string) error {
	args := m.Called(ctx, id, correlationID)
	return args.Error(0)
}

func (m *MockRepository) CreateAdjudication(ctx context.Context, result *AdjudicationResult) (uint, error) {
	args := m.Called(ctx, result)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockRepository) GetLatestAdjudication(ctx context.Context, submissionID uint) (*AdjudicationResult, error) {
	args := m.Called(ctx, submissionID)
	r, _ := args.Get(0).(*AdjudicationResult)
	return r, args.Error(1)
}

func (m *MockRepository) CreateInformationRequest(ctx context.Context, req *InformationRequest) (uint, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockRepository) GetInformationRequestByRequestID(ctx context.Context, submissionID uint, requestID string) (*InformationRequest, error) {
	args := m.Called(ctx, submissionID, requestID)
	r, _ := args.Get(0).(*InformationRequest)
	return r, args.Error(1)
}

func (m *MockRepository) GetInformationRequestByID(ctx context.Context, id uint) (*InformationRequest, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*InformationRequest)
	return r, args.Error(1)
}

func (m *MockRepository) MarkInformationRequestResponded(ctx context.Context, id uint, communicationID uint) error {
	args := m.Called(ctx, id, communicationID)
	return args.Error(0)
}

func (m *MockRepository) CreateCommunication(ctx context.Context, c *Communication) (uint, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockRepository) GetCommunicationByID(ctx context.Context, id uint) (*Communication, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*Communication)
	return c, args.Error(1)
}

func (m *MockRepository) GetCommunicationByIdentifier(ctx context.Context, submissionID uint, identifierValue string) (*Communication, error) {
	args := m.Called(ctx, submissionID, identifierValue)
	c, _ := args.Get(0).(*Communication)
	return c, args.Error(1)
}

func (m *MockRepository) UpdateCommunicationStatus(ctx context.Context, id uint, new CommunicationStatus) error {
	args := m.Called(ctx, id, new)
	return args.Error(0)
}

func (m *MockRepository) CreateUnmatchedResponse(ctx context.Context, u *UnmatchedResponse) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}
