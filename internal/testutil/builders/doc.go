// Package builders provides test data builders for kobito configuration and issues.
//
//	cfg := builders.NewConfigBuilder().WithStateDir(t.TempDir()).Build()
//	issue := builders.NewIssueBuilder().WithNumber(42).WithTitle("Fix login").Build()
package builders
