package campaign

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"tranche-node/ledger"
)

// Kind annotates a failure without altering the underlying reason.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindAuthorization   Kind = "AuthorizationError"
	KindLedgerRejection Kind = "LedgerRejection"
	KindTransport       Kind = "TransportError"
	KindReadFailure     Kind = "ReadFailure"
	KindUserRejected    Kind = "UserRejected"
	KindTimeout         Kind = "Timeout"
)

// Retryable reports whether repeating the same action may succeed. Ledger rejections are
// retryable only after a refresh shows the action is legal again.
func (kind Kind) Retryable() bool {
	switch kind {
	case KindTransport, KindTimeout, KindReadFailure, KindLedgerRejection:
		return true
	}
	return false
}

type Error struct {
	Kind      Kind
	Reason    string
	Reference string
	Err       error
}

func (err *Error) Error() string {
	if err.Err != nil && err.Reason != err.Err.Error() {
		return fmt.Sprintf("%s: %s: %v", err.Kind, err.Reason, err.Err)
	}
	return fmt.Sprintf("%s: %s", err.Kind, err.Reason)
}

func (err *Error) Unwrap() error {
	return err.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a core failure, or KindTransport for anything unclassified.
func KindOf(err error) Kind {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}
	return KindTransport
}

// classify maps an error returned by a mutating ledger call onto the failure taxonomy.
func classify(err error, reference string) *Error {
	if rejection, ok := ledger.IsRejection(err); ok {
		if rejection.Reference != "" {
			reference = rejection.Reference
		}
		return &Error{Kind: KindLedgerRejection, Reason: rejection.Reason, Reference: reference, Err: err}
	}
	if errors.Is(err, ledger.ErrSignatureRejected) {
		return &Error{Kind: KindUserRejected, Reason: "signature request rejected", Reference: reference, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Reason: "stopped waiting for confirmation", Reference: reference, Err: err}
	}
	return &Error{Kind: KindTransport, Reason: err.Error(), Reference: reference, Err: err}
}
