package mocks

import (
	"context"

	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/stretchr/testify/mock"
)

// MockOracle is a mock implementation of oracle.Client.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Evaluate(ctx context.Context, req oracle.Request) (*oracle.ScoreResult, error) {
	args := m.Called(ctx, req)

	result, _ := args.Get(0).(*oracle.ScoreResult)

	return result, args.Error(1)
}
