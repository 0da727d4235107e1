package reject

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	genericUnexpectedError string = "error.generic.unexpected"
	cannotParseParams      string = "error.generic.cannot-parse-params"
	cannotParseBody        string = "error.generic.cannot-parse-payload"
	genericNotFound        string = "error.generic.not-found"
	serviceUnavailable     string = "error.generic.unavailable"
	chainUnavailable       string = "error.chain.unavailable"
)

func generic(title string, status int, code string) *Problem {
	return NewProblem().WithTitle(title).WithStatus(status).WithCode(code)
}

func RequestParamsProblem() Problem {
	return generic("Invalid request parameters", http.StatusBadRequest, cannotParseParams).Build()
}

func BodyParseProblem() Problem {
	return generic("Cannot read payload", http.StatusBadRequest, cannotParseBody).Build()
}

func NotFoundProblem() Problem {
	return generic("Record not found", http.StatusNotFound, genericNotFound).Build()
}

// UnavailableProblem is returned while a dependency has not produced its
// first result yet, such as the directory before the first refresh.
func UnavailableProblem(detail string) Problem {
	return generic("Service not ready", http.StatusServiceUnavailable, serviceUnavailable).
		WithDetail(detail).
		Build()
}

// ChainProblem wraps a failed node read. The node error stays in the trace.
func ChainProblem(err error) *ProblemWithTrace {
	log.Warn().Err(err).Msg("Chain read failed")
	return &ProblemWithTrace{
		Problem: generic("Cannot read from chain", http.StatusBadGateway, chainUnavailable).Build(),
		Cause:   err,
	}
}

func UnexpectedProblem(err error) Problem {
	log.Warn().Err(err).Msg("Unexpected error while handling request")
	return generic("Unexpected error", http.StatusInternalServerError, genericUnexpectedError).Build()
}
