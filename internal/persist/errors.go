package persist

import (
	"fmt"
	"strings"
)

// ValidationError aborts the STAGE→COMMIT transition. Staging is discarded
// and every final file is left untouched; the user must retry.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("staged artifact failed validation: %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PartialCommitError reports a failure after some but not all COMMIT
// replacements. Re-running apply is safe: PREPARE always recomputes the
// diff from actual current state.
type PartialCommitError struct {
	Errors []error
}

func (e *PartialCommitError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("commit left the project in an inconsistent state (re-run apply to converge): %s",
		strings.Join(msgs, "; "))
}
