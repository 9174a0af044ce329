package worker

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"testing"

	"nexusprover/internal/events"
	"nexusprover/internal/orchestrator"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
	"nexusprover/internal/prover"
)

func proveBundle(t *testing.T, task *protocol.Task) *prover.ProofBundle {
	t.Helper()
	b, err := prover.NewTaskProverWith(prover.ExecInProcess).Prove(context.Background(), task)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	return b
}

func TestSubmitSignsAndPosts(t *testing.T) {
	mock := orchestrator.NewMock()
	pub, priv := testKeys(t)
	bus := events.NewBus()
	s := NewProofSubmitter(fastNet(mock), bus, nil, priv)

	task := fetchTask("sub-1", protocol.DifficultySmall)
	bundle := proveBundle(t, &task)
	if err := s.Submit(context.Background(), &task, bundle); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(mock.Submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(mock.Submissions))
	}
	sub := mock.Submissions[0]
	if sub.TaskID != "sub-1" || sub.CombinedHash != bundle.CombinedHash {
		t.Fatalf("submission fields wrong: %+v", sub)
	}
	payload := signingPayload(sub.TaskID, sub.CombinedHash)
	if !ed25519.Verify(pub, payload, sub.Signature) {
		t.Fatal("signature should verify over \"0 | task_id | combined_hash\"")
	}
	if string(sub.Ed25519PublicKey) != string(pub) {
		t.Fatal("submission should carry the signing public key")
	}
}

func TestSubmitProofRequiredCarriesBlobs(t *testing.T) {
	mock := orchestrator.NewMock()
	_, priv := testKeys(t)
	s := NewProofSubmitter(fastNet(mock), events.NewBus(), nil, priv)

	task := fetchTask("pr-1", protocol.DifficultySmall)
	task.Type = protocol.TaskTypeProofRequired
	bundle := proveBundle(t, &task)
	if err := s.Submit(context.Background(), &task, bundle); err != nil {
		t.Fatal(err)
	}

	sub := mock.Submissions[0]
	if len(sub.Proofs) != len(bundle.Proofs) {
		t.Fatalf("Proofs = %d blobs, want %d", len(sub.Proofs), len(bundle.Proofs))
	}
	if string(sub.Proof) != string(bundle.Proofs[0]) {
		t.Fatal("legacy scalar Proof should mirror the first blob")
	}
	if len(sub.IndividualProofHashes) != 0 {
		t.Fatal("proof-required submissions do not carry individual hashes")
	}
}

func TestSubmitAllProofHashesCarriesHashes(t *testing.T) {
	mock := orchestrator.NewMock()
	_, priv := testKeys(t)
	s := NewProofSubmitter(fastNet(mock), events.NewBus(), nil, priv)

	task := fetchTask("aph-1", protocol.DifficultySmall)
	task.Type = protocol.TaskTypeAllProofHashes
	bundle := proveBundle(t, &task)
	if err := s.Submit(context.Background(), &task, bundle); err != nil {
		t.Fatal(err)
	}

	sub := mock.Submissions[0]
	if len(sub.Proofs) != 0 || len(sub.Proof) != 0 {
		t.Fatal("hash-type submissions do not carry proof blobs")
	}
	if len(sub.IndividualProofHashes) != len(bundle.IndividualProofHashes) {
		t.Fatalf("hashes = %d, want %d", len(sub.IndividualProofHashes), len(bundle.IndividualProofHashes))
	}
}

func TestSubmitSuppressesDuplicate(t *testing.T) {
	mock := orchestrator.NewMock()
	_, priv := testKeys(t)
	bus := events.NewBus()
	s := NewProofSubmitter(fastNet(mock), bus, nil, priv)

	task := fetchTask("dup-sub", protocol.DifficultySmall)
	bundle := proveBundle(t, &task)
	ctx := context.Background()
	if err := s.Submit(ctx, &task, bundle); err != nil {
		t.Fatal(err)
	}

	err := s.Submit(ctx, &task, bundle)
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("duplicate submit err = %v, want validation", err)
	}
	if len(mock.Submissions) != 1 {
		t.Fatalf("submissions = %d, the duplicate must never reach the server", len(mock.Submissions))
	}

	var sawWarn bool
	for _, ev := range drainBus(bus) {
		if ev.Kind == events.KindError && ev.Worker.Role == events.RoleSubmitter {
			sawWarn = true
		}
	}
	if !sawWarn {
		t.Fatal("duplicate suppression should emit a submitter error event")
	}
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	mock := orchestrator.NewMock()
	mock.SubmitErrs = []error{perr.Wrap(
		&orchestrator.HTTPError{Status: http.StatusConflict, Message: "stale", Headers: http.Header{}},
		perr.ErrorCodeUnknown, "conflict")}
	_, priv := testKeys(t)
	s := NewProofSubmitter(fastNet(mock), events.NewBus(), nil, priv)

	task := fetchTask("retry-sub", protocol.DifficultySmall)
	bundle := proveBundle(t, &task)
	ctx := context.Background()
	if err := s.Submit(ctx, &task, bundle); err != nil {
		t.Fatalf("Submit should recover once the scripted failure drains: %v", err)
	}
	if len(mock.Submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(mock.Submissions))
	}
}

func TestSubmitEmptyBundle(t *testing.T) {
	mock := orchestrator.NewMock()
	_, priv := testKeys(t)
	s := NewProofSubmitter(fastNet(mock), events.NewBus(), nil, priv)

	task := fetchTask("empty-1", protocol.DifficultySmall)
	err := s.Submit(context.Background(), &task, &prover.ProofBundle{})
	if !perr.IsCode(err, perr.ErrorCodeSerialization) {
		t.Fatalf("err = %v, want serialization", err)
	}
	if len(mock.Submissions) != 0 {
		t.Fatal("an empty bundle must not be posted")
	}
}
