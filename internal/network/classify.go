package network

import (
	stderrs "errors"
	"net/http"

	"github.com/rs/zerolog"

	"nexusprover/internal/orchestrator"
	perr "nexusprover/internal/platform/errors"
)

// Classify maps a transport or protocol error to the inner retry decision
// and the level its event should be logged at.
//
// Retries cover network I/O, decode failures, 5xx, and 4xx other than 429.
// 429 is never retried inline; the request timer absorbs it through the
// server-directed backoff recorded by the caller
func Classify(err error) (retry bool, level zerolog.Level) {
	if err == nil {
		return false, zerolog.DebugLevel
	}

	var he *orchestrator.HTTPError
	if stderrs.As(err, &he) {
		switch {
		case he.Status == http.StatusTooManyRequests:
			return false, zerolog.DebugLevel
		case he.Status == http.StatusUnauthorized || he.Status == http.StatusForbidden:
			return true, zerolog.ErrorLevel
		case he.Status >= 500 && he.Status <= 599:
			return true, zerolog.WarnLevel
		case he.Status >= 400 && he.Status <= 499:
			return true, zerolog.WarnLevel
		default:
			return false, zerolog.WarnLevel
		}
	}

	// non-HTTP failures: the error code decides
	return perr.Retryable(err), zerolog.WarnLevel
}
