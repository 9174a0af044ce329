package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"nexusprover/internal/platform/testkit"
)

func TestParseFilter(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"nexus=debug", zerolog.DebugLevel},
		{"nexus=trace,other=info", zerolog.TraceLevel},
		{"bogus,error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"gibberish", zerolog.InfoLevel},
		{" info ", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseFilter(tc.in); got != tc.want {
			t.Errorf("ParseFilter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNamedAddsComponent(t *testing.T) {
	if Named("") != Get() {
		t.Fatal("empty component should return the root logger")
	}
	if Named("prover") == Get() {
		t.Fatal("a named logger must be a distinct child")
	}
}

func TestWithWorkerScopesContextLogger(t *testing.T) {
	ctx := WithWorker(context.Background(), "prover-3")

	var buf bytes.Buffer
	l := C(ctx).Output(&buf)
	l.Info().Msg("cycle done")
	testkit.MustContain(t, buf.String(), `"worker":"prover-3"`)

	buf.Reset()
	bare := C(context.Background()).Output(&buf)
	bare.Info().Msg("no identity")
	if strings.Contains(buf.String(), `"worker"`) {
		t.Fatalf("unannotated context must not carry a worker field: %s", buf.String())
	}

	if WithWorker(context.Background(), "") != context.Background() {
		t.Fatal("an empty worker identity should leave the context untouched")
	}
}
