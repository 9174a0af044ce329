package protocol

import (
	"strings"

	perr "nexusprover/internal/platform/errors"
)

// TaskType selects what the submission must carry back to the server
type TaskType uint8

const (
	// TaskTypeProofRequired submissions include every proof blob
	TaskTypeProofRequired TaskType = 0

	// TaskTypeProofHash submissions include only the combined hash
	TaskTypeProofHash TaskType = 1

	// TaskTypeAllProofHashes submissions include every individual proof hash
	TaskTypeAllProofHashes TaskType = 2
)

// String implements fmt.Stringer
func (t TaskType) String() string {
	switch t {
	case TaskTypeProofRequired:
		return "PROOF_REQUIRED"
	case TaskTypeProofHash:
		return "PROOF_HASH"
	case TaskTypeAllProofHashes:
		return "ALL_PROOF_HASHES"
	default:
		return "UNKNOWN"
	}
}

// Difficulty is the ordinal task cost scale. Comparison is by ordinal
type Difficulty uint8

const (
	DifficultySmall Difficulty = iota
	DifficultySmallMedium
	DifficultyMedium
	DifficultyLarge
	DifficultyExtraLarge
	DifficultyExtraLarge2
	DifficultyExtraLarge3
	DifficultyExtraLarge4
	DifficultyExtraLarge5
)

// DifficultyMax is the highest level the enum defines
const DifficultyMax = DifficultyExtraLarge5

var difficultyNames = [...]string{
	"SMALL",
	"SMALL_MEDIUM",
	"MEDIUM",
	"LARGE",
	"EXTRA_LARGE",
	"EXTRA_LARGE_2",
	"EXTRA_LARGE_3",
	"EXTRA_LARGE_4",
	"EXTRA_LARGE_5",
}

// String implements fmt.Stringer
func (d Difficulty) String() string {
	if int(d) < len(difficultyNames) {
		return difficultyNames[d]
	}
	return "UNKNOWN"
}

// DifficultyNames returns every valid level name in ascending order
func DifficultyNames() []string {
	out := make([]string, len(difficultyNames))
	copy(out, difficultyNames[:])
	return out
}

// ParseDifficulty resolves a case-insensitive level name
func ParseDifficulty(s string) (Difficulty, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range difficultyNames {
		if name == want {
			return Difficulty(i), nil
		}
	}
	return 0, perr.InvalidArgf("unknown difficulty %q (valid: %s)", s, strings.Join(difficultyNames[:], ", "))
}

// Task is an immutable work unit obtained from the orchestrator.
// Every element of PublicInputs is one proving input; for the fib program each
// is at least 12 bytes holding three little-endian u32s (n, init_a, init_b)
type Task struct {
	TaskID       string
	ProgramID    string
	PublicInputs [][]byte
	Type         TaskType
	Difficulty   Difficulty
}

// NodeType identifies what kind of node registers with the orchestrator
type NodeType uint8

// NodeTypeCLIProver is the only node type this client registers
const NodeTypeCLIProver NodeType = 0
