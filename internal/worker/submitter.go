package worker

import (
	"context"
	"crypto/ed25519"
	stderrs "errors"
	"fmt"

	"github.com/rs/zerolog"

	"nexusprover/internal/analytics"
	"nexusprover/internal/cache"
	"nexusprover/internal/events"
	"nexusprover/internal/network"
	"nexusprover/internal/orchestrator"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
	"nexusprover/internal/prover"
)

// submittedCacheSize bounds the recently-submitted dedup set
const submittedCacheSize = 128

// ProofSubmitter signs and posts proof bundles. A per-process cache of
// successfully submitted task ids suppresses double submits
type ProofSubmitter struct {
	net       *network.Client
	submitted *cache.TaskCache
	bus       *events.Bus
	track     *analytics.Client
	key       ed25519.PrivateKey
	id        events.Worker
}

// NewProofSubmitter wires the submit path
func NewProofSubmitter(
	net *network.Client,
	bus *events.Bus,
	track *analytics.Client,
	key ed25519.PrivateKey,
) *ProofSubmitter {
	return &ProofSubmitter{
		net:       net,
		submitted: cache.NewTaskCache(submittedCacheSize),
		bus:       bus,
		track:     track,
		key:       key,
		id:        events.Worker{Role: events.RoleSubmitter},
	}
}

// signingPayload is what the submission signature covers
func signingPayload(taskID, combinedHash string) []byte {
	return fmt.Appendf(nil, "0 | %s | %s", taskID, combinedHash)
}

// build assembles the submission for the task type. PROOF_REQUIRED carries
// every blob (list plus the legacy scalar), ALL_PROOF_HASHES carries the
// individual hashes, PROOF_HASH carries neither
func (s *ProofSubmitter) build(t *protocol.Task, b *prover.ProofBundle) (*protocol.ProofSubmission, error) {
	if len(b.Proofs) == 0 || b.CombinedHash == "" {
		return nil, perr.New(perr.ErrorCodeSerialization, "proof bundle is empty")
	}
	sub := &protocol.ProofSubmission{
		TaskID:           t.TaskID,
		CombinedHash:     b.CombinedHash,
		Type:             t.Type,
		Ed25519PublicKey: s.key.Public().(ed25519.PublicKey),
		Signature:        ed25519.Sign(s.key, signingPayload(t.TaskID, b.CombinedHash)),
	}
	switch t.Type {
	case protocol.TaskTypeProofRequired:
		sub.Proofs = b.Proofs
		sub.Proof = b.Proofs[0]
	case protocol.TaskTypeAllProofHashes:
		sub.IndividualProofHashes = b.IndividualProofHashes
	}
	return sub, nil
}

// Submit posts the bundle, emitting events and analytics for the outcome.
// A task already in the submitted cache never reaches the server
func (s *ProofSubmitter) Submit(ctx context.Context, t *protocol.Task, b *prover.ProofBundle) error {
	if s.submitted.Contains(t.TaskID) {
		s.bus.Publish(ctx, events.New(s.id, events.KindError, zerolog.WarnLevel,
			fmt.Sprintf("task %s already submitted, suppressing duplicate", t.TaskID)))
		return perr.Newf(perr.ErrorCodeValidation, "task %s already submitted", t.TaskID)
	}

	sub, err := s.build(t, b)
	if err != nil {
		return err
	}

	if err := s.net.SubmitProof(ctx, sub); err != nil {
		_, lvl := network.Classify(perr.Root(err))
		s.bus.Publish(ctx, events.New(s.id, events.KindError, lvl,
			fmt.Sprintf("submit failed for task %s: %v", t.TaskID, err)))
		params := map[string]any{"task_id": t.TaskID, "error": err.Error()}
		var he *orchestrator.HTTPError
		if stderrs.As(err, &he) {
			params["status"] = he.Status
		}
		s.track.Track("proof_submission_error", params)
		return err
	}

	s.submitted.Insert(t.TaskID)
	s.bus.Publish(ctx, events.New(s.id, events.KindSuccess, zerolog.InfoLevel,
		fmt.Sprintf("proof submitted for task %s", t.TaskID)))

	name := "proof_submission_success"
	if t.Type == protocol.TaskTypeProofHash {
		name = "proof_accepted"
	}
	s.track.Track(name, map[string]any{"task_id": t.TaskID, "task_type": t.Type.String()})
	return nil
}
