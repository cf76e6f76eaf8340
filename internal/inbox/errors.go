package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/counselhub/inbox-sync/internal/upstream"
)

// ErrorKind is the failure taxonomy for mutation and sync attempts.
type ErrorKind int

const (
	// KindNetwork covers transport failures and upstream 5xx responses.
	// Retryable by user action; the engine never retries on its own.
	KindNetwork ErrorKind = iota
	// KindValidation covers bad input, rejected before any optimistic
	// mutation is applied, and upstream 4xx responses.
	KindValidation
	// KindAuthorization covers expired or rejected sessions, surfaced
	// distinctly so the UI can prompt re-authentication.
	KindAuthorization
)

// String returns the kind name used in logs and metrics labels.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	default:
		return "network"
	}
}

// Error is a classified failure from an engine operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyContent is returned for a send or edit with no content.
var ErrEmptyContent = errors.New("content cannot be empty")

// errNoRecipient is returned when a thread carries no resolvable
// counterpart to address an outbound message to.
var errNoRecipient = errors.New("no resolvable recipient for thread")

// ErrSuperseded is returned when a fetch was replaced by a newer one; its
// result was discarded and the store is untouched.
var ErrSuperseded = errors.New("fetch superseded by a newer fetch")

func validationErr(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// classify maps an upstream failure to the error taxonomy. Cancellation is
// passed through untouched so callers can tell it apart from failure.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return &Error{Kind: KindAuthorization, Op: op, Err: err}
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return &Error{Kind: KindValidation, Op: op, Err: err}
		}
	}

	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// KindOf extracts the taxonomy kind from an error. The second return is
// false when the error carries no kind (e.g. cancellation).
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
