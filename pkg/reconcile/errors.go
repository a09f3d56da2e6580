package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMember is returned by a Directory when the subject is not a
	// member of the queried community.
	ErrNotMember = errors.New("not a member of community")

	// ErrSubjectNotFound marks a reconciliation for a subject absent from the
	// target community. It is terminal and not retried.
	ErrSubjectNotFound = errors.New("subject not found on target community")

	// ErrTargetUnavailable marks a reconciliation that could not read or
	// inspect the target community.
	ErrTargetUnavailable = errors.New("target community unavailable")

	// ErrSourcesUnavailable marks a reconciliation where every source read
	// failed, so absence of roles cannot be told apart from an outage.
	ErrSourcesUnavailable = errors.New("no source community could be read")

	// ErrRoleMutationForbidden is returned by a Mutator when the platform
	// refuses a role change.
	ErrRoleMutationForbidden = errors.New("role mutation forbidden")
)

// SourceFetchError reports a failed read of one source community.
type SourceFetchError struct {
	Community uint64
	Err       error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch roles from community %d: %v", e.Community, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// PartialFailure is returned by a bulk Mutator call when only some roles
// could be changed. Roles lists the ones that failed, when known.
type PartialFailure struct {
	Roles []uint64
	Err   error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%d role(s) rejected: %v", len(e.Roles), e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

// PersistenceError wraps a failure to record an outcome.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Error kinds stored on results.
const (
	KindSubjectNotFound    = "subject_not_found"
	KindTargetUnavailable  = "target_unavailable"
	KindSourcesUnavailable = "sources_unavailable"
	KindSourceFetch        = "source_fetch_error"
	KindPartialFailure     = "partial_failure"
	KindCanceled           = "canceled"
	KindInternal           = "internal"
)

// ErrorKind classifies a terminal reconcile error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubjectNotFound):
		return KindSubjectNotFound
	case errors.Is(err, ErrTargetUnavailable):
		return KindTargetUnavailable
	case errors.Is(err, ErrSourcesUnavailable):
		return KindSourcesUnavailable
	}
	var sf *SourceFetchError
	if errors.As(err, &sf) {
		return KindSourceFetch
	}
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return KindPartialFailure
	}
	return KindInternal
}
