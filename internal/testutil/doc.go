// Package testutil groups the test support packages for kobito.
//
//   - mocks: testify/mock implementations of the tracker, branch manager and agent
//   - builders: builders for config.Config and types.Issue
//   - helpers: temporary git repositories and observed loggers
package testutil
