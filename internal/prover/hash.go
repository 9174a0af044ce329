package prover

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

// ProofBundle is the output of proving one task: the proof blobs, their
// lowercase-hex Keccak-256 digests, and the task-level combined hash
type ProofBundle struct {
	Proofs                [][]byte
	IndividualProofHashes []string
	CombinedHash          string
}

// HashProof returns the lowercase-hex Keccak-256 digest of a proof blob
func HashProof(blob []byte) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(blob)
	return hex.EncodeToString(h.Sum(nil))
}

// CombinedHash derives the task-level digest. Hash-type tasks commit to the
// ordered concatenation of the raw digest bytes; everything else reuses the
// first individual hash
func CombinedHash(taskType protocol.TaskType, individual []string) (string, error) {
	if len(individual) == 0 {
		return "", perr.Proverf("no proof hashes to combine")
	}
	switch taskType {
	case protocol.TaskTypeProofHash, protocol.TaskTypeAllProofHashes:
		h := sha3.NewLegacyKeccak256()
		for _, hexDigest := range individual {
			raw, err := hex.DecodeString(hexDigest)
			if err != nil {
				return "", perr.Wrapf(err, perr.ErrorCodeProver, "bad proof hash %q", hexDigest)
			}
			_, _ = h.Write(raw)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return individual[0], nil
	}
}
