//go:build !unix

package invoker

import "os/exec"

// configureProcess keeps exec's default cancellation, which kills only the
// direct child.
func configureProcess(_ *exec.Cmd) {}

// reapGroup has no group to kill without process groups.
func reapGroup(_ *exec.Cmd) {}
