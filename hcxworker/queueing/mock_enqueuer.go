package queueing

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hayat-his/hcx-app/hcx/models"
)

type MockEnqueuer struct {
	mock.Mock
}

var _ Enqueuer = &MockEnqueuer{}

func (m *MockEnqueuer) AddPollJob(args models.PollEnqueueArgs, runAt time.Time) error {
	called := m.Called(args, runAt)
	return called.Error(0)
}
