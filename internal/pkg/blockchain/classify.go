package blockchain

import (
	"errors"
	"strings"

	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
)

var reasonMarkers = []struct {
	marker string
	reason model.FailureReason
}{
	{"insufficient funds", model.ReasonInsufficientFunds},
	{"exceeds balance", model.ReasonInsufficientFunds},
	{"allowance", model.ReasonInsufficientAllowance},
	{"user rejected", model.ReasonUserRejected},
	{"user denied", model.ReasonUserRejected},
	{"wait 24 hours", model.ReasonTooEarly},
	{"stake mismatch", model.ReasonStakeMismatch},
	{"incorrect stake", model.ReasonStakeMismatch},
	{"wrong stake", model.ReasonStakeMismatch},
	{"game not active", model.ReasonNotFound},
	{"game not found", model.ReasonNotFound},
}

// Classify maps a gateway or node error to a failure reason. Anything it does
// not recognise is a network error.
func Classify(err error) model.FailureReason {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrGameNotFound) {
		return model.ReasonNotFound
	}
	msg := strings.ToLower(err.Error())
	for _, m := range reasonMarkers {
		if strings.Contains(msg, m.marker) {
			return m.reason
		}
	}
	return model.ReasonNetworkError
}
