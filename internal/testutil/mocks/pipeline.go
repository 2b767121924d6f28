package mocks

import (
	"context"

	"github.com/douhashi/kobito/internal/pipeline"
	"github.com/douhashi/kobito/internal/types"
	"github.com/stretchr/testify/mock"
)

// MockBranchManager is a mock implementation of pipeline.BranchManager
type MockBranchManager struct {
	mock.Mock
}

// NewMockBranchManager creates a new instance of MockBranchManager
func NewMockBranchManager() *MockBranchManager {
	return &MockBranchManager{}
}

// WithDefaultBehavior sets up a branch manager whose operations all succeed
func (m *MockBranchManager) WithDefaultBehavior(branch string) *MockBranchManager {
	m.On("GenerateBranchName", mock.Anything).Maybe().Return(branch)
	m.On("SwitchToBranch", mock.Anything, mock.Anything, mock.Anything).Maybe().Return(nil)
	m.On("CheckForChanges", mock.Anything, mock.Anything).Maybe().Return(true, nil)
	m.On("ReturnToBase", mock.Anything, mock.Anything).Maybe().Return(nil)
	m.On("DeleteBranch", mock.Anything, mock.Anything, mock.Anything).Maybe().Return(nil)
	m.On("DiscardChanges", mock.Anything).Maybe().Return(nil)
	return m
}

// GenerateBranchName mocks the GenerateBranchName method
func (m *MockBranchManager) GenerateBranchName(issue types.Issue) string {
	args := m.Called(issue)
	return args.String(0)
}

// SwitchToBranch mocks the SwitchToBranch method
func (m *MockBranchManager) SwitchToBranch(ctx context.Context, name, base string) error {
	args := m.Called(ctx, name, base)
	return args.Error(0)
}

// CheckForChanges mocks the CheckForChanges method
func (m *MockBranchManager) CheckForChanges(ctx context.Context, base string) (bool, error) {
	args := m.Called(ctx, base)
	return args.Bool(0), args.Error(1)
}

// ReturnToBase mocks the ReturnToBase method
func (m *MockBranchManager) ReturnToBase(ctx context.Context, base string) error {
	args := m.Called(ctx, base)
	return args.Error(0)
}

// DeleteBranch mocks the DeleteBranch method
func (m *MockBranchManager) DeleteBranch(ctx context.Context, name, base string) error {
	args := m.Called(ctx, name, base)
	return args.Error(0)
}

// DiscardChanges mocks the DiscardChanges method
func (m *MockBranchManager) DiscardChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAgent is a mock implementation of pipeline.Agent
type MockAgent struct {
	mock.Mock
}

// NewMockAgent creates a new instance of MockAgent
func NewMockAgent() *MockAgent {
	return &MockAgent{}
}

// Execute mocks the Execute method
func (m *MockAgent) Execute(ctx context.Context, prompt string) error {
	args := m.Called(ctx, prompt)
	return args.Error(0)
}

// StubPrompts returns fixed prompts so that tests can tell the agent calls apart
type StubPrompts struct{}

const (
	ImplementationPrompt = "implement"
	CommitPushPrompt     = "commit-push"
	PullRequestPrompt    = "pull-request"
)

// Implementation returns ImplementationPrompt
func (StubPrompts) Implementation(types.Issue, string) string { return ImplementationPrompt }

// CommitPush returns CommitPushPrompt
func (StubPrompts) CommitPush(types.Issue, string) string { return CommitPushPrompt }

// PullRequest returns PullRequestPrompt
func (StubPrompts) PullRequest(types.Issue, string, string) string { return PullRequestPrompt }

var (
	_ pipeline.BranchManager = (*MockBranchManager)(nil)
	_ pipeline.Agent         = (*MockAgent)(nil)
	_ pipeline.PromptBuilder = StubPrompts{}
)
