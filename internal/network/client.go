package network

import (
	"context"
	stderrs "errors"
	"strconv"
	"time"

	"nexusprover/internal/orchestrator"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/protocol"
)

const (
	// attempts per operation; a completed proof is costly to discard, so the
	// submit path tries harder than the fetch path
	fetchAttempts    = 3
	submitAttempts   = 6
	registryAttempts = 3

	// padding added on top of a server Retry-After before clamping
	retryAfterPad = 2 * time.Second
	retryAfterCap = 10 * time.Minute

	// floor for the parking poll so an imminent deadline does not hot-loop
	minParkSleep = 10 * time.Millisecond
)

// Client wraps an orchestrator.Client with parking on the shared request
// timer and attempt-capped retries
type Client struct {
	orc   orchestrator.Client
	timer *RequestTimer
	log   logger.Logger
}

// NewClient builds the retry layer over orc. The timer must be the single
// shared instance for the process
func NewClient(orc orchestrator.Client, timer *RequestTimer) *Client {
	return &Client{orc: orc, timer: timer, log: *logger.Named("network")}
}

// Timer exposes the shared request timer for countdown reporting
func (c *Client) Timer() *RequestTimer { return c.timer }

// park blocks until the timer admits a request or ctx is done
func (c *Client) park(ctx context.Context) error {
	for !c.timer.CanProceed() {
		wait := c.timer.TimeUntilNext()
		if wait < minParkSleep {
			wait = minParkSleep
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// retryAfter extracts the server's Retry-After (seconds) from err, padded
// and clamped to the cap
func retryAfter(err error) (time.Duration, bool) {
	var he *orchestrator.HTTPError
	if !stderrs.As(err, &he) {
		return 0, false
	}
	s := he.Headers.Get("Retry-After")
	if s == "" {
		return 0, false
	}
	secs, convErr := strconv.Atoi(s)
	if convErr != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs)*time.Second + retryAfterPad
	if d > retryAfterCap {
		d = retryAfterCap
	}
	return d, true
}

// withRetry parks, attempts, and classifies until success, a non-retryable
// failure, or the attempt cap. Every outcome feeds the shared timer
func (c *Client) withRetry(ctx context.Context, op string, attempts int, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.park(ctx); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			c.timer.RecordSuccess()
			return nil
		}
		last = err

		delay, hasDelay := retryAfter(err)
		c.timer.RecordFailure(delay, hasDelay)

		retry, lvl := Classify(err)
		c.log.WithLevel(lvl).
			Str("op", op).
			Int("attempt", attempt).
			Err(err).
			Msg("orchestrator call failed")

		if !retry || attempt == attempts {
			return perr.Wrapf(last, perr.CodeOf(last), "%s failed after %d attempt(s)", op, attempt)
		}
	}
	return last
}

// GetProofTask requests one new task, honoring the shared timer
func (c *Client) GetProofTask(ctx context.Context, req *protocol.ProofTaskRequest) (*protocol.Task, error) {
	var task *protocol.Task
	err := c.withRetry(ctx, "get_proof_task", fetchAttempts, func(ctx context.Context) error {
		t, err := c.orc.GetProofTask(ctx, req)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

// GetTasks polls for already-assigned tasks
func (c *Client) GetTasks(ctx context.Context, nodeID string) ([]protocol.Task, error) {
	var tasks []protocol.Task
	err := c.withRetry(ctx, "get_tasks", fetchAttempts, func(ctx context.Context) error {
		ts, err := c.orc.GetTasks(ctx, nodeID)
		if err != nil {
			return err
		}
		tasks = ts
		return nil
	})
	return tasks, err
}

// SubmitProof posts a signed submission, retrying harder than the fetch path
func (c *Client) SubmitProof(ctx context.Context, sub *protocol.ProofSubmission) error {
	return c.withRetry(ctx, "submit_proof", submitAttempts, func(ctx context.Context) error {
		return c.orc.SubmitProof(ctx, sub)
	})
}

// GetUser resolves a wallet to a user id
func (c *Client) GetUser(ctx context.Context, walletAddress string) (string, error) {
	var id string
	err := c.withRetry(ctx, "get_user", registryAttempts, func(ctx context.Context) error {
		v, err := c.orc.GetUser(ctx, walletAddress)
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	return id, err
}

// RegisterUser creates a user for the wallet
func (c *Client) RegisterUser(ctx context.Context, uuid, walletAddress string) error {
	return c.withRetry(ctx, "register_user", registryAttempts, func(ctx context.Context) error {
		return c.orc.RegisterUser(ctx, uuid, walletAddress)
	})
}

// RegisterNode creates a prover node for the user
func (c *Client) RegisterNode(ctx context.Context, userID string) (string, error) {
	var id string
	err := c.withRetry(ctx, "register_node", registryAttempts, func(ctx context.Context) error {
		v, err := c.orc.RegisterNode(ctx, userID)
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	return id, err
}

// GetNode resolves a node id to its wallet
func (c *Client) GetNode(ctx context.Context, nodeID string) (string, error) {
	var wallet string
	err := c.withRetry(ctx, "get_node", registryAttempts, func(ctx context.Context) error {
		v, err := c.orc.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		wallet = v
		return nil
	})
	return wallet, err
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
