// Package git provides the small amount of git awareness clasp needs:
// whether a directory is inside a work tree (the .gitignore sentinel block
// is only managed there) and whether the resource repository is dirty.
package git

import (
	"os/exec"
	"strings"
)

// Runner executes git commands. Swapped out in tests.
type Runner interface {
	Run(dir string, args ...string) ([]byte, error)
}

// CLIRunner shells out to the git binary.
type CLIRunner struct{}

func (CLIRunner) Run(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Checker answers git questions about directories.
type Checker struct {
	runner Runner
}

// NewChecker creates a Checker using the git CLI.
func NewChecker() *Checker {
	return &Checker{runner: CLIRunner{}}
}

// NewCheckerWithRunner creates a Checker with a custom runner (for testing).
func NewCheckerWithRunner(r Runner) *Checker {
	return &Checker{runner: r}
}

// IsWorkTree reports whether dir is inside a git work tree. Any git failure
// (including git being absent) reports false.
func (c *Checker) IsWorkTree(dir string) bool {
	out, err := c.runner.Run(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// HasUncommitted reports whether dir has uncommitted changes. Used to warn
// before applying from a dirty resource repository.
func (c *Checker) HasUncommitted(dir string) (bool, error) {
	out, err := c.runner.Run(dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}
