package worker

import (
	"sync"
	"time"

	"nexusprover/internal/protocol"
)

// promotionThreshold is how fast a task at the current target must finish
// for the fetcher to opt one level upward
const promotionThreshold = 7 * time.Minute

// promotion tracks the requested difficulty. State is per-process on
// purpose: a restart drops back to the starting level and the server keeps
// the real ceiling
type promotion struct {
	mu      sync.Mutex
	ceiling protocol.Difficulty
	target  protocol.Difficulty
}

// newPromotion starts at SMALL and never climbs past ceiling
func newPromotion(ceiling protocol.Difficulty) *promotion {
	if ceiling > protocol.DifficultyMax {
		ceiling = protocol.DifficultyMax
	}
	target := protocol.DifficultySmall
	if target > ceiling {
		target = ceiling
	}
	return &promotion{ceiling: ceiling, target: target}
}

// Request returns the difficulty to ask the server for
func (p *promotion) Request() protocol.Difficulty {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// RecordSuccess advances the target by at most one level when the completed
// task was at the current target and finished under the threshold
func (p *promotion) RecordSuccess(d protocol.Difficulty, took time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d != p.target {
		return
	}
	if took >= promotionThreshold {
		return
	}
	if p.target < p.ceiling {
		p.target++
	}
}
