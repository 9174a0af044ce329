// Package prover turns tasks into proof bundles. Proving runs in a child
// process of the client binary so a crash or OOM in the proving backend does
// not take the worker down
package prover

import (
	"encoding/binary"

	perr "nexusprover/internal/platform/errors"
)

// ProgramFibInputInitial is the only program id the client currently honors
const ProgramFibInputInitial = "fib_input_initial"

// ExitCodeInternal is the reserved subprocess exit code for internal prover
// errors, distinct from 0 (success) and 1 (generic failure)
const ExitCodeInternal = 3

// FibInput is one public-input tuple for the fib program
type FibInput struct {
	N     uint32 `json:"n"`
	InitA uint32 `json:"init_a"`
	InitB uint32 `json:"init_b"`
}

// ParseInput reads (n, init_a, init_b) as three little-endian u32s from the
// first 12 bytes of a public-input element
func ParseInput(b []byte) (FibInput, error) {
	if len(b) < 12 {
		return FibInput{}, perr.MalformedTaskf("public input is %d bytes, need at least 12", len(b))
	}
	return FibInput{
		N:     binary.LittleEndian.Uint32(b[0:4]),
		InitA: binary.LittleEndian.Uint32(b[4:8]),
		InitB: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// Encode writes the tuple back to its 12-byte wire form
func (in FibInput) Encode() []byte {
	out := make([]byte, 12)
	binary.LittleEndian.PutUint32(out[0:4], in.N)
	binary.LittleEndian.PutUint32(out[4:8], in.InitA)
	binary.LittleEndian.PutUint32(out[8:12], in.InitB)
	return out
}
