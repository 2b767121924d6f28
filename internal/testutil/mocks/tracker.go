package mocks

import (
	"context"

	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/mock"
)

// MockTracker is a mock implementation of watcher.Tracker
type MockTracker struct {
	mock.Mock
}

// NewMockTracker creates a new instance of MockTracker
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// FetchAssignedIssues mocks the FetchAssignedIssues method
func (m *MockTracker) FetchAssignedIssues(ctx context.Context) ([]types.Issue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Issue), args.Error(1)
}

// MarkIssueAsProcessed mocks the MarkIssueAsProcessed method
func (m *MockTracker) MarkIssueAsProcessed(ctx context.Context, issueID string) error {
	args := m.Called(ctx, issueID)
	return args.Error(0)
}

// GetIssue mocks the GetIssue method
func (m *MockTracker) GetIssue(ctx context.Context, issueID string) (types.Issue, error) {
	args := m.Called(ctx, issueID)
	if args.Get(0) == nil {
		return types.Issue{}, args.Error(1)
	}
	return args.Get(0).(types.Issue), args.Error(1)
}
