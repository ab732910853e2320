// Package exec runs external commands on behalf of quill.
//
// The source control providers shell out to git, p4 and tf through an
// Executor. Tests swap the executor's command function for a helper
// process, so no real tool is needed to exercise them.
//
// # Basic Usage
//
//	executor := exec.NewExecutor(nil)
//	out, err := executor.Output(ctx, "git", "ls-files", "--error-unmatch", "--", path)
//	if exec.ExitCode(err) == 1 {
//		// not tracked
//	}
//
// Stderr of long running tools reads better with a prefix per line:
//
//	stderr := exec.NewPrefixWriter(os.Stdout, "p4 | ")
//	executor := exec.NewExecutor(&exec.Options{Stderr: stderr}).InDir(root)
//	defer stderr.Flush()
package exec
