package worker

import (
	"context"
	stderrs "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nexusprover/internal/analytics"
	"nexusprover/internal/events"
	"nexusprover/internal/network"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/protocol"
	"nexusprover/internal/prover"
)

// fetchErrorPause keeps a failing fetch from hot-looping
const fetchErrorPause = 1 * time.Second

// shutdownGrace lets buffered events flush before the broadcast fires
const shutdownGrace = 100 * time.Millisecond

// AuthenticatedWorker owns one fetch→prove→submit loop. Errors local to a
// cycle never terminate it; only the shutdown broadcast or the max-tasks cap
// ends the loop
type AuthenticatedWorker struct {
	index     int
	fetcher   *TaskFetcher
	prover    *prover.TaskProver
	submitter *ProofSubmitter
	bus       *events.Bus
	track     *analytics.Client
	shutdown  *Shutdown
	maxTasks  int
	completed *atomic.Int64 // shared across workers
	id        events.Worker
}

// NewAuthenticatedWorker assembles one worker. completed is shared so the
// max-tasks cap counts submissions across the whole pool
func NewAuthenticatedWorker(
	index int,
	fetcher *TaskFetcher,
	taskProver *prover.TaskProver,
	submitter *ProofSubmitter,
	bus *events.Bus,
	track *analytics.Client,
	shutdown *Shutdown,
	maxTasks int,
	completed *atomic.Int64,
) *AuthenticatedWorker {
	return &AuthenticatedWorker{
		index:     index,
		fetcher:   fetcher,
		prover:    taskProver,
		submitter: submitter,
		bus:       bus,
		track:     track,
		shutdown:  shutdown,
		maxTasks:  maxTasks,
		completed: completed,
		id:        events.Worker{Role: events.RoleProver, Index: index},
	}
}

// Run drives cycles until shutdown. One cycle: fetch, mark start time, prove,
// submit, then return to waiting
func (w *AuthenticatedWorker) Run(ctx context.Context) error {
	ctx = logger.WithWorker(ctx, w.id.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.shutdown.Done():
			return nil
		default:
		}

		task, err := w.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := sleepCtx(ctx, fetchErrorPause); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		w.bus.Publish(ctx, events.NewState(w.id, events.StateProving,
			fmt.Sprintf("proving task %s", task.TaskID)))

		bundle, err := w.prover.Prove(ctx, task)
		if err != nil {
			w.reportProveFailure(ctx, task, err)
			w.bus.Publish(ctx, events.NewState(w.id, events.StateWaiting, "returning to waiting"))
			continue
		}

		if err := w.submitter.Submit(ctx, task, bundle); err != nil {
			// already retried and reported by the submit path
			w.bus.Publish(ctx, events.NewState(w.id, events.StateWaiting, "returning to waiting"))
			continue
		}

		n := w.completed.Add(1)
		took := time.Since(start)
		w.fetcher.RecordCompletion(task.Difficulty, took)
		w.bus.Publish(ctx, events.NewState(w.id, events.StateWaiting, fmt.Sprintf(
			"task %s completed, size=%d, duration=%ds, difficulty=%s",
			task.TaskID, len(task.PublicInputs), int(took.Seconds()), task.Difficulty)))

		if w.maxTasks > 0 && int(n) >= w.maxTasks {
			_ = sleepCtx(ctx, shutdownGrace)
			w.bus.Publish(ctx, events.NewState(w.id, events.StateWaiting,
				fmt.Sprintf("completed %d task(s), shutting down", n)))
			w.shutdown.Broadcast()
			return nil
		}
	}
}

func (w *AuthenticatedWorker) reportProveFailure(ctx context.Context, task *protocol.Task, err error) {
	lvl := zerolog.WarnLevel
	if perr.IsCode(err, perr.ErrorCodeMalformedTask) {
		lvl = zerolog.ErrorLevel
	}
	w.bus.Publish(ctx, events.New(w.id, events.KindError, lvl,
		fmt.Sprintf("proving task %s failed: %v", task.TaskID, err)))
	if perr.IsCode(err, perr.ErrorCodeProver) || perr.IsCode(err, perr.ErrorCodeGuestProgram) {
		w.track.Track("proof_verification_failed", map[string]any{
			"task_id": task.TaskID,
			"error":   err.Error(),
		})
	}
	logger.C(ctx).Debug().Str("task_id", task.TaskID).Err(err).Msg("cycle abandoned")
}

// Pool runs count workers over one shared network client and bus
type Pool struct {
	workers   []*AuthenticatedWorker
	completed *atomic.Int64
}

// Completed returns the pool-wide count of successfully submitted tasks
func (p *Pool) Completed() int64 { return p.completed.Load() }

// NewPool builds count workers sharing the timer-backed network client, the
// bus, and the completed counter
func NewPool(
	count int,
	net *network.Client,
	bus *events.Bus,
	track *analytics.Client,
	shutdown *Shutdown,
	maxTasks int,
	newFetcher func() *TaskFetcher,
	newProver func() *prover.TaskProver,
	newSubmitter func() *ProofSubmitter,
) *Pool {
	if count < 1 {
		count = 1
	}
	completed := &atomic.Int64{}
	p := &Pool{completed: completed}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, NewAuthenticatedWorker(
			i, newFetcher(), newProver(), newSubmitter(),
			bus, track, shutdown, maxTasks, completed,
		))
	}
	return p
}

// Run blocks until every worker exits
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error { return w.Run(ctx) })
	}
	err := g.Wait()
	if stderrs.Is(err, context.Canceled) {
		return nil
	}
	return err
}
