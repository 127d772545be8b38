package worker

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/session"
)

type MockWorker struct {
	mock.Mock
}

var _ Worker = &MockWorker{}

func (m *MockWorker) ProcessPoll(ctx context.Context, args models.PollEnqueueArgs) (*session.PollOutcome, error) {
	called := m.Called(ctx, args)
	outcome, _ := called.Get(0).(*session.PollOutcome)
	return outcome, called.Error(1)
}
