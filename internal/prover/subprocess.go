package prover

import (
	"bytes"
	"context"
	"encoding/json"
	stderrs "errors"
	"os"
	"os/exec"
	"strings"

	perr "nexusprover/internal/platform/errors"
)

// SubprocessCommand is the hidden CLI command re-invoked for each proof
const SubprocessCommand = "prove-fib-subprocess"

// execProof is the seam the task prover calls; tests swap it for an
// in-process engine so they don't depend on a built binary
var execProof = runSubprocess

// runSubprocess re-executes the client binary to produce one proof. The
// child reads the input tuple as JSON on the argument vector and writes the
// serialized proof to stdout. Exit code ExitCodeInternal marks an internal
// prover error; any other non-zero exit is a guest program failure
func runSubprocess(ctx context.Context, in FibInput) ([]byte, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeGuestProgram, "cannot locate client binary")
	}
	args, err := json.Marshal(in)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeGuestProgram, "cannot encode prover inputs")
	}

	cmd := exec.CommandContext(ctx, exe, SubprocessCommand, "--inputs", string(args))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if stderrs.As(err, &ee) {
			msg := strings.TrimSpace(stderr.String())
			if ee.ExitCode() == ExitCodeInternal {
				return nil, perr.Newf(perr.ErrorCodeGuestProgram, "prover subprocess internal error: %s", msg)
			}
			return nil, perr.Newf(perr.ErrorCodeGuestProgram, "prover subprocess exited %d: %s", ee.ExitCode(), msg)
		}
		return nil, perr.Wrap(err, perr.ErrorCodeGuestProgram, "prover subprocess failed to start")
	}
	return stdout.Bytes(), nil
}

// RunStandalone implements the child side: prove one input and write the
// blob to stdout. It returns the process exit code
func RunStandalone(inputsJSON string, out *os.File) int {
	var in FibInput
	if err := json.Unmarshal([]byte(inputsJSON), &in); err != nil {
		return ExitCodeInternal
	}
	blob, err := NewEngine().Prove(in)
	if err != nil {
		return ExitCodeInternal
	}
	if _, err := out.Write(blob); err != nil {
		return ExitCodeInternal
	}
	return 0
}
