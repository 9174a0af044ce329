package prover

import (
	"context"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/protocol"
)

// ExecFunc produces one proof blob for one input tuple
type ExecFunc func(ctx context.Context, in FibInput) ([]byte, error)

// ExecInProcess proves on the calling goroutine, without subprocess
// isolation. Tests use it; production always goes through the subprocess
func ExecInProcess(ctx context.Context, in FibInput) ([]byte, error) {
	return NewEngine().Prove(in)
}

// TaskProver maps one task to a ProofBundle. Each input is proven in a
// subprocess and checked by a fresh verifier before its hash is taken
type TaskProver struct {
	exec ExecFunc
	log  logger.Logger
}

// NewTaskProver returns a task prover backed by the subprocess
func NewTaskProver() *TaskProver {
	return NewTaskProverWith(nil)
}

// NewTaskProverWith overrides how proofs are executed; nil means subprocess
func NewTaskProverWith(exec ExecFunc) *TaskProver {
	if exec == nil {
		exec = func(ctx context.Context, in FibInput) ([]byte, error) { return execProof(ctx, in) }
	}
	return &TaskProver{exec: exec, log: *logger.Named("prover")}
}

// Prove dispatches by program id and produces the bundle. Unknown programs
// and unparseable inputs are malformed tasks; they are never retried
func (p *TaskProver) Prove(ctx context.Context, t *protocol.Task) (*ProofBundle, error) {
	if t.ProgramID != ProgramFibInputInitial {
		return nil, perr.MalformedTaskf("unknown program id %q", t.ProgramID)
	}
	if len(t.PublicInputs) == 0 {
		return nil, perr.MalformedTaskf("task %s has no public inputs", t.TaskID)
	}

	bundle := &ProofBundle{
		Proofs:                make([][]byte, 0, len(t.PublicInputs)),
		IndividualProofHashes: make([]string, 0, len(t.PublicInputs)),
	}

	for i, raw := range t.PublicInputs {
		in, err := ParseInput(raw)
		if err != nil {
			return nil, perr.WithOp(err, "parse_input")
		}

		blob, err := p.exec(ctx, in)
		if err != nil {
			return nil, err
		}

		if err := NewVerifier().Verify(blob, in, 0); err != nil {
			p.log.Warn().Str("task_id", t.TaskID).Int("input", i).Err(err).Msg("proof failed verification")
			return nil, err
		}

		bundle.Proofs = append(bundle.Proofs, blob)
		bundle.IndividualProofHashes = append(bundle.IndividualProofHashes, HashProof(blob))
	}

	combined, err := CombinedHash(t.Type, bundle.IndividualProofHashes)
	if err != nil {
		return nil, err
	}
	bundle.CombinedHash = combined
	return bundle, nil
}
