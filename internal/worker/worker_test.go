package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"nexusprover/internal/events"
	"nexusprover/internal/orchestrator"
	"nexusprover/internal/protocol"
	"nexusprover/internal/prover"
)

// testWorker assembles a worker over mock with in-process proving
func testWorker(t *testing.T, mock *orchestrator.Mock, maxTasks int) (*AuthenticatedWorker, *events.Bus, *Shutdown, *atomic.Int64) {
	t.Helper()
	pub, priv := testKeys(t)
	net := fastNet(mock)
	bus := events.NewBus()
	shutdown := NewShutdown()
	completed := &atomic.Int64{}

	w := NewAuthenticatedWorker(
		0,
		NewTaskFetcher(net, bus, nil, "node-1", pub, "US", protocol.DifficultyLarge),
		prover.NewTaskProverWith(prover.ExecInProcess),
		NewProofSubmitter(net, bus, nil, priv),
		bus, nil, shutdown, maxTasks, completed,
	)
	return w, bus, shutdown, completed
}

// runWorker runs w until it exits, collecting every event published meanwhile
func runWorker(t *testing.T, w *AuthenticatedWorker, bus *events.Bus, timeout time.Duration) []events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var evs []events.Event
	collectDone := make(chan struct{})
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()
	go func() {
		defer close(collectDone)
		for {
			select {
			case ev := <-bus.Events():
				evs = append(evs, ev)
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("worker exited with %v", err)
		}
	case <-ctx.Done():
		t.Fatal("worker did not finish in time")
	}
	cancel()
	<-collectDone
	return append(evs, drainBus(bus)...)
}

func TestWorkerCompletesMaxTasksAndShutsDown(t *testing.T) {
	mock := orchestrator.NewMock()
	mock.Assigned = []protocol.Task{
		fetchTask("w-1", protocol.DifficultySmall),
		fetchTask("w-2", protocol.DifficultySmall),
	}
	w, bus, shutdown, completed := testWorker(t, mock, 2)

	runWorker(t, w, bus, 10*time.Second)

	if !shutdown.Fired() {
		t.Fatal("reaching max-tasks should broadcast shutdown")
	}
	if n := completed.Load(); n != 2 {
		t.Fatalf("completed = %d, want 2", n)
	}
	ids := mock.SubmittedIDs()
	if len(ids) != 2 || ids[0] != "w-1" || ids[1] != "w-2" {
		t.Fatalf("submitted = %v, want [w-1 w-2]", ids)
	}
}

func TestWorkerSkipsMalformedTaskAndContinues(t *testing.T) {
	bad := fetchTask("bad-1", protocol.DifficultySmall)
	bad.ProgramID = "unknown_program"
	mock := orchestrator.NewMock()
	mock.Assigned = []protocol.Task{bad, fetchTask("good-1", protocol.DifficultySmall)}
	w, bus, _, completed := testWorker(t, mock, 1)

	evs := runWorker(t, w, bus, 10*time.Second)

	if n := completed.Load(); n != 1 {
		t.Fatalf("completed = %d, want 1 (malformed tasks do not count)", n)
	}
	ids := mock.SubmittedIDs()
	if len(ids) != 1 || ids[0] != "good-1" {
		t.Fatalf("submitted = %v, want [good-1]", ids)
	}

	var sawError bool
	for _, ev := range evs {
		if ev.Kind == events.KindError && ev.Worker.Role == events.RoleProver {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("the malformed task should produce a prover error event")
	}
}

func TestWorkerEventOrdering(t *testing.T) {
	mock := orchestrator.NewMock()
	mock.Assigned = []protocol.Task{fetchTask("ord-1", protocol.DifficultySmall)}
	w, bus, _, _ := testWorker(t, mock, 1)

	evs := runWorker(t, w, bus, 10*time.Second)

	fetchedAt, provingAt, submittedAt := -1, -1, -1
	for i, ev := range evs {
		switch {
		case ev.Kind == events.KindSuccess && ev.Worker.Role == events.RoleFetcher && fetchedAt < 0:
			fetchedAt = i
		case ev.Kind == events.KindStateChange && ev.State == events.StateProving && provingAt < 0:
			provingAt = i
		case ev.Kind == events.KindSuccess && ev.Worker.Role == events.RoleSubmitter && submittedAt < 0:
			submittedAt = i
		}
	}
	if fetchedAt < 0 || provingAt < 0 || submittedAt < 0 {
		t.Fatalf("missing pipeline events: fetched=%d proving=%d submitted=%d", fetchedAt, provingAt, submittedAt)
	}
	if !(fetchedAt < provingAt && provingAt < submittedAt) {
		t.Fatalf("order fetched=%d proving=%d submitted=%d, want strictly increasing", fetchedAt, provingAt, submittedAt)
	}
}

func TestWorkerStopsOnShutdownBroadcast(t *testing.T) {
	mock := orchestrator.NewMock() // no tasks; the worker would poll forever
	w, bus, shutdown, _ := testWorker(t, mock, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	go func() {
		for {
			select {
			case <-bus.Events():
			case <-ctx.Done():
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	shutdown.Broadcast()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("worker exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not honor the shutdown broadcast")
	}
}

func TestPoolSharesCompletedCount(t *testing.T) {
	mock := orchestrator.NewMock()
	mock.Assigned = []protocol.Task{
		fetchTask("p-1", protocol.DifficultySmall),
		fetchTask("p-2", protocol.DifficultySmall),
		fetchTask("p-3", protocol.DifficultySmall),
	}
	pub, priv := testKeys(t)
	net := fastNet(mock)
	bus := events.NewBus()
	shutdown := NewShutdown()

	pool := NewPool(2, net, bus, nil, shutdown, 3,
		func() *TaskFetcher {
			return NewTaskFetcher(net, bus, nil, "node-1", pub, "US", protocol.DifficultyLarge)
		},
		func() *prover.TaskProver {
			return prover.NewTaskProverWith(prover.ExecInProcess)
		},
		func() *ProofSubmitter {
			return NewProofSubmitter(net, bus, nil, priv)
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go func() {
		for {
			select {
			case <-bus.Events():
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := pool.Run(ctx); err != nil {
		t.Fatalf("pool.Run: %v", err)
	}
	if n := pool.Completed(); n != 3 {
		t.Fatalf("completed = %d, want 3", n)
	}
}
