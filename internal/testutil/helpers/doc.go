// Package helpers provides test helpers shared across kobito packages.
//
// InitGitRepo creates a throwaway repository with one commit on main,
// and NewObservedLogger returns a logger.Logger whose entries can be
// inspected from the test.
//
//	dir := helpers.InitGitRepo(t)
//	helpers.SetGitRemote(t, dir, "origin", "git@github.com:douhashi/kobito.git")
package helpers
