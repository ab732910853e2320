// Package filesystem provides traversal helpers over an afero filesystem.
//
// Walk skips build output and tool directories (bin, obj, .git, .vs and
// friends) so discovering projects and templates in a solution stays fast.
//
//	projects, err := filesystem.DiscoverProjects(fs, solutionRoot, filesystem.WalkOptions{})
//
// Pass an empty, non-nil IgnoreDirs slice to walk everything.
package filesystem
