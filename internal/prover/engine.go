package prover

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

// The proving backend. Prove is a pure function from inputs to a proof blob;
// Verify checks a blob against the inputs and the expected exit code. The
// proof commits to the full execution trace of the fib program with a
// running Keccak-256 so memory stays flat for large n

const proofMagic = 0x5a4b5031 // "ZKP1"

// Engine produces proofs for the fib program
type Engine struct{}

// NewEngine returns a proving engine
func NewEngine() *Engine { return &Engine{} }

// run executes the fib program and returns the final register pair plus the
// trace commitment
func run(in FibInput) (a, b uint32, commitment []byte) {
	h := sha3.NewLegacyKeccak256()
	a, b = in.InitA, in.InitB
	var step [8]byte
	for i := uint32(0); i < in.N; i++ {
		binary.LittleEndian.PutUint32(step[0:4], a)
		binary.LittleEndian.PutUint32(step[4:8], b)
		_, _ = h.Write(step[:])
		a, b = b, a+b
	}
	return a, b, h.Sum(nil)
}

// Prove maps one input tuple to an opaque proof blob
func (e *Engine) Prove(in FibInput) ([]byte, error) {
	a, b, commitment := run(in)
	enc := protocol.NewEncoder()
	enc.U32(proofMagic)
	enc.PutBytes(in.Encode())
	enc.U32(a)
	enc.U32(b)
	enc.U32(0) // exit code of the guest program
	enc.PutBytes(commitment)
	return enc.Bytes(), nil
}

// Verifier checks proof blobs. A fresh instance is used per verification
type Verifier struct{}

// NewVerifier returns a verifier
func NewVerifier() *Verifier { return &Verifier{} }

// Verify re-executes the program and checks the blob against the inputs and
// the expected guest exit code
func (v *Verifier) Verify(proof []byte, in FibInput, expectedExit uint32) error {
	d := protocol.NewDecoder(proof)
	if magic := d.U32(); d.Err() == nil && magic != proofMagic {
		return perr.Proverf("proof has wrong magic %#x", magic)
	}
	inputBytes := d.TakeBytes()
	a := d.U32()
	b := d.U32()
	exit := d.U32()
	commitment := d.TakeBytes()
	if err := d.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeProver, "proof blob truncated")
	}

	claimed, err := ParseInput(inputBytes)
	if err != nil || claimed != in {
		return perr.Proverf("proof was produced for different inputs")
	}
	if exit != expectedExit {
		return perr.Proverf("guest exited %d, expected %d", exit, expectedExit)
	}

	wantA, wantB, wantCommit := run(in)
	if a != wantA || b != wantB || string(commitment) != string(wantCommit) {
		return perr.Proverf("trace commitment mismatch")
	}
	return nil
}
