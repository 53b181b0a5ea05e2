package metrics

import (
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
)

// TransitionObserver is the narrow surface services depend on.
type TransitionObserver interface {
	ObserveTransition(entity, action, outcome string)
}

// OutcomeFor classifies an operation result: nil is a success, a typed
// client-facing error is a rejection, anything else is an error.
func OutcomeFor(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return OutcomeError
	default:
		return OutcomeRejected
	}
}
