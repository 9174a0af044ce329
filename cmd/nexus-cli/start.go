package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"nexusprover/internal/analytics"
	"nexusprover/internal/buildinfo"
	"nexusprover/internal/events"
	"nexusprover/internal/network"
	"nexusprover/internal/orchestrator"
	"nexusprover/internal/platform/config/raw"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/protocol"
	"nexusprover/internal/prover"
	"nexusprover/internal/session"
	"nexusprover/internal/status"
	"nexusprover/internal/system"
	"nexusprover/internal/versiongate"
	"nexusprover/internal/worker"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "run the prover pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "node-id", Usage: "override the registered node id"},
			&cli.BoolFlag{Name: "headless", Usage: "print events instead of rendering a UI"},
			&cli.StringFlag{Name: "orchestrator-url", Usage: "custom orchestrator endpoint"},
			&cli.IntFlag{Name: "max-tasks", Usage: "shut down after this many completed tasks"},
			&cli.StringFlag{Name: "max-difficulty", Usage: "difficulty ceiling (case-insensitive)"},
			&cli.IntFlag{Name: "workers", Value: 1, Usage: "number of worker loops"},
			&cli.BoolFlag{Name: "with-background", Usage: "serve a loopback status endpoint"},
			&cli.StringFlag{Name: "status-addr", Value: "127.0.0.1:9099", Usage: "status endpoint address"},
			&cli.BoolFlag{Name: "check-memory", Usage: "probe host memory before starting"},
		},
		Action: runStart,
	}
}

func runStart(c *cli.Context) error {
	log := logger.Get()

	env, err := session.ResolveEnvironment(c.String("orchestrator-url"), raw.New().Get("NEXUS_ENVIRONMENT", ""))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ceiling := protocol.DifficultyLarge
	if s := c.String("max-difficulty"); s != "" {
		d, err := protocol.ParseDifficulty(s)
		if err != nil {
			return cli.Exit(fmt.Sprintf("%v\nvalid difficulties: %s",
				err, strings.Join(protocol.DifficultyNames(), ", ")), 1)
		}
		ceiling = d
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// startup gates: OFAC country block and remote version constraints
	country := orchestrator.Country(ctx)
	decision := versiongate.Check(ctx, versiongate.DefaultManifestURL, buildinfo.Get().Version, country)
	if decision.Block {
		return cli.Exit(decision.Message, 1)
	}

	if c.Bool("check-memory") {
		system.CheckMemory()
	}

	nodeID, clientID, err := resolveIdentity(ctx, c, env)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	orc, err := orchestrator.New(orchestrator.Options{
		BaseURL:        env.URL,
		UserAgent:      buildinfo.UserAgent(),
		BuildTimestamp: buildinfo.Timestamp(),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return cli.Exit(fmt.Sprintf("generate signing key: %v", err), 1)
	}

	timer := network.NewRequestTimer(network.TimerConfigFromEnv())
	net := network.NewClient(orc, timer)
	bus := events.NewBus()
	track := analytics.New(clientID)
	shutdown := worker.NewShutdown()
	workers := c.Int("workers")
	if workers < 1 {
		workers = 1
	}

	pool := worker.NewPool(
		workers, net, bus, track, shutdown, c.Int("max-tasks"),
		func() *worker.TaskFetcher {
			return worker.NewTaskFetcher(net, bus, track, nodeID, pub, country, ceiling)
		},
		prover.NewTaskProver,
		func() *worker.ProofSubmitter {
			return worker.NewProofSubmitter(net, bus, track, priv)
		},
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-shutdown.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	log.Info().
		Str("node_id", nodeID).
		Str("orchestrator", env.URL).
		Str("country", country).
		Int("workers", workers).
		Str("max_difficulty", ceiling.String()).
		Msg("starting prover pipeline")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		err := bus.RunPrinter(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if c.Bool("with-background") {
		srv := status.NewServer(c.String("status-addr"), func() status.Snapshot {
			return status.Snapshot{
				Version:        buildinfo.Get().Version,
				NodeID:         nodeID,
				CompletedTasks: pool.Completed(),
				Workers:        workers,
			}
		})
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel() // workers done -> stop printer and status server
		return pool.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(err.Error(), 1)
	}
	log.Info().Int64("completed_tasks", pool.Completed()).Msg("prover pipeline stopped")
	return nil
}

// resolveIdentity finds the node id to prove under: the flag wins, then the
// config file, then interactive setup (unless NONINTERACTIVE)
func resolveIdentity(ctx context.Context, c *cli.Context, env session.Environment) (nodeID, clientID string, err error) {
	if id := c.String("node-id"); id != "" {
		return id, id, nil
	}

	path, err := session.DefaultPath()
	if err != nil {
		return "", "", err
	}
	cfg, err := session.Load(path)
	if err == nil && cfg.NodeID != "" {
		return cfg.NodeID, cfg.UserID, nil
	}

	if raw.New().GetBool("NONINTERACTIVE", false) {
		return "", "", fmt.Errorf("no node registered; run register-user and register-node first")
	}
	cfg, err = interactiveSetup(ctx, env, path)
	if err != nil {
		return "", "", err
	}
	return cfg.NodeID, cfg.UserID, nil
}
