package network

import (
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"nexusprover/internal/orchestrator"
	perr "nexusprover/internal/platform/errors"
)

func httpErr(status int) error {
	return perr.Wrap(
		&orchestrator.HTTPError{Status: status, Message: http.StatusText(status), Headers: http.Header{}},
		perr.ErrorCodeUnknown, "request failed")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
		level zerolog.Level
	}{
		{"rate limited", httpErr(http.StatusTooManyRequests), false, zerolog.DebugLevel},
		{"unauthorized", httpErr(http.StatusUnauthorized), true, zerolog.ErrorLevel},
		{"forbidden", httpErr(http.StatusForbidden), true, zerolog.ErrorLevel},
		{"not found", httpErr(http.StatusNotFound), true, zerolog.WarnLevel},
		{"conflict", httpErr(http.StatusConflict), true, zerolog.WarnLevel},
		{"server error", httpErr(http.StatusInternalServerError), true, zerolog.WarnLevel},
		{"bad gateway", httpErr(http.StatusBadGateway), true, zerolog.WarnLevel},
		{"transport", perr.Wrap(io.ErrUnexpectedEOF, perr.ErrorCodeTransport, "dial failed"), true, zerolog.WarnLevel},
		{"decode", perr.New(perr.ErrorCodeDecode, "truncated message at offset 4"), true, zerolog.WarnLevel},
		{"malformed task", perr.MalformedTaskf("unknown program"), false, zerolog.WarnLevel},
		{"plain error", io.ErrUnexpectedEOF, false, zerolog.WarnLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retry, level := Classify(tc.err)
			if retry != tc.retry {
				t.Errorf("retry = %v, want %v", retry, tc.retry)
			}
			if level != tc.level {
				t.Errorf("level = %v, want %v", level, tc.level)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if retry, _ := Classify(nil); retry {
		t.Fatal("nil error must not ask for a retry")
	}
}

// the non-HTTP branch must stay in lockstep with the error-code retry rules
func TestClassifyFollowsCodeRetrySemantics(t *testing.T) {
	for _, err := range []error{
		perr.New(perr.ErrorCodeTransport, "connection reset"),
		perr.New(perr.ErrorCodeDecode, "short message"),
		perr.New(perr.ErrorCodeProver, "trace mismatch"),
		perr.New(perr.ErrorCodeNotFound, "already enqueued"),
		perr.New(perr.ErrorCodeUnknown, "unclassified"),
	} {
		retry, _ := Classify(err)
		if retry != perr.Retryable(err) {
			t.Errorf("Classify(%v) retry = %v, Retryable = %v", err, retry, perr.Retryable(err))
		}
	}
}
