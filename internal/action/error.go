package action

import (
	"fmt"

	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

// Error is the terminal failure of an action.
type Error struct {
	Reason model.FailureReason
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same reason, so callers can test
// errors.Is(err, &action.Error{Reason: model.ReasonTooEarly}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

func failure(reason model.FailureReason, cause error) *Error {
	return &Error{Reason: reason, Cause: cause}
}
