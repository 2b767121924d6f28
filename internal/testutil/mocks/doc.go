// Package mocks provides testify/mock implementations of the collaborator
// interfaces used by the pipeline, the processing loop and the watcher.
//
// # Available Mocks
//
//   - MockBranchManager: pipeline.BranchManager
//   - MockAgent: pipeline.Agent
//   - StubPrompts: pipeline.PromptBuilder with fixed prompts
//   - MockTracker: watcher.Tracker with GetIssue
//
// # Example
//
//	branches := mocks.NewMockBranchManager().WithDefaultBehavior("issue-100-fix-login")
//	agent := mocks.NewMockAgent()
//	agent.On("Execute", mock.Anything, mocks.ImplementationPrompt).Return(nil)
package mocks
