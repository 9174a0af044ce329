package worker

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"nexusprover/internal/analytics"
	"nexusprover/internal/cache"
	"nexusprover/internal/events"
	"nexusprover/internal/network"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

// enqueuedCacheSize bounds the recently-enqueued dedup set
const enqueuedCacheSize = 128

// countdownTick paces Waiting events while the timer holds the fetcher back
const countdownTick = 1 * time.Second

// TaskFetcher acquires the next task. It drains the batched assignment queue
// first, then polls for a single task, reporting waiting countdowns while
// the shared timer holds it back
type TaskFetcher struct {
	net       *network.Client
	seen      *cache.TaskCache
	bus       *events.Bus
	track     *analytics.Client
	promo     *promotion
	nodeID    string
	publicKey ed25519.PublicKey
	location  string
	queue     []protocol.Task
	id        events.Worker
}

// NewTaskFetcher wires the fetch path. ceiling caps difficulty promotion
func NewTaskFetcher(
	net *network.Client,
	bus *events.Bus,
	track *analytics.Client,
	nodeID string,
	publicKey ed25519.PublicKey,
	location string,
	ceiling protocol.Difficulty,
) *TaskFetcher {
	return &TaskFetcher{
		net:       net,
		seen:      cache.NewTaskCache(enqueuedCacheSize),
		bus:       bus,
		track:     track,
		promo:     newPromotion(ceiling),
		nodeID:    nodeID,
		publicKey: publicKey,
		location:  location,
		id:        events.Worker{Role: events.RoleFetcher},
	}
}

// RecordCompletion feeds the promotion policy after a successful submission
func (f *TaskFetcher) RecordCompletion(d protocol.Difficulty, took time.Duration) {
	f.promo.RecordSuccess(d, took)
}

// popQueued returns the next queued task not seen recently
func (f *TaskFetcher) popQueued() *protocol.Task {
	for len(f.queue) > 0 {
		t := f.queue[0]
		f.queue = f.queue[1:]
		if f.seen.Insert(t.TaskID) {
			return &t
		}
	}
	return nil
}

// Fetch returns the next task to prove. Errors are surfaced to the worker,
// which absorbs them and retries after a short pause
func (f *TaskFetcher) Fetch(ctx context.Context) (*protocol.Task, error) {
	f.bus.Publish(ctx, events.New(f.id, events.KindRefresh, zerolog.InfoLevel, "fetching next task"))

	// drain the batch first, then poll for one
	if t := f.popQueued(); t != nil {
		f.emitFetched(ctx, t)
		return t, nil
	}
	if tasks, err := f.net.GetTasks(ctx, f.nodeID); err != nil {
		// a failing batch poll does not block the single-task path
		_, lvl := network.Classify(perr.Root(err))
		f.bus.Publish(ctx, events.New(f.id, events.KindError, lvl,
			fmt.Sprintf("batch fetch failed: %v", err)))
	} else if len(tasks) > 0 {
		f.queue = tasks
		if t := f.popQueued(); t != nil {
			f.emitFetched(ctx, t)
			return t, nil
		}
	}

	if err := f.waitForTimer(ctx); err != nil {
		return nil, err
	}

	req := &protocol.ProofTaskRequest{
		NodeID:           f.nodeID,
		NodeType:         protocol.NodeTypeCLIProver,
		Ed25519PublicKey: f.publicKey,
		MaxDifficulty:    f.promo.Request(),
		Location:         f.location,
	}
	t, err := f.net.GetProofTask(ctx, req)
	if err != nil {
		_, lvl := network.Classify(perr.Root(err))
		f.bus.Publish(ctx, events.New(f.id, events.KindError, lvl, fmt.Sprintf("fetch failed: %v", err)))
		return nil, err
	}
	if !f.seen.Insert(t.TaskID) {
		f.bus.Publish(ctx, events.New(f.id, events.KindError, zerolog.DebugLevel,
			fmt.Sprintf("dropping duplicate task %s", t.TaskID)))
		return nil, perr.Newf(perr.ErrorCodeNotFound, "task %s already enqueued", t.TaskID)
	}
	f.emitFetched(ctx, t)
	return t, nil
}

func (f *TaskFetcher) emitFetched(ctx context.Context, t *protocol.Task) {
	f.bus.Publish(ctx, events.New(f.id, events.KindSuccess, zerolog.InfoLevel,
		fmt.Sprintf("fetched task %s (difficulty %s)", t.TaskID, t.Difficulty)))
	f.track.Track("task_fetched", map[string]any{
		"task_id":    t.TaskID,
		"task_type":  t.Type.String(),
		"difficulty": t.Difficulty.String(),
	})
}

// waitForTimer emits one Waiting event per countdown tick with the integer
// seconds remaining; the UI parses the number back out of the message
func (f *TaskFetcher) waitForTimer(ctx context.Context) error {
	for {
		wait := f.net.Timer().TimeUntilNext()
		if wait <= 0 {
			return nil
		}
		secs := int(math.Ceil(wait.Seconds()))
		f.bus.Publish(ctx, events.New(f.id, events.KindWaiting, zerolog.InfoLevel,
			fmt.Sprintf("waiting %d seconds before next fetch", secs)))
		step := wait
		if step > countdownTick {
			step = countdownTick
		}
		if err := sleepCtx(ctx, step); err != nil {
			return err
		}
	}
}

// sleepCtx sleeps for d or returns early with ctx's error
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
