package client

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hayat-his/hcx-app/hcx/fhir"
)

type MockExchangeClient struct {
	mock.Mock
}

var _ ExchangeClient = &MockExchangeClient{}

func (m *MockExchangeClient) Send(ctx context.Context, bundle *fhir.Bundle) (*fhir.Bundle, error) {
	args := m.Called(ctx, bundle)
	reply, _ := args.Get(0).(*fhir.Bundle)
	return reply, args.Error(1)
}
