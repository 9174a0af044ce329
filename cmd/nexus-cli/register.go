package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"nexusprover/internal/buildinfo"
	"nexusprover/internal/network"
	"nexusprover/internal/orchestrator"
	"nexusprover/internal/platform/config/raw"
	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/session"
)

func registerUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "register-user",
		Usage: "register a wallet with the orchestrator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "wallet-address", Required: true, Usage: "0x-prefixed Ethereum address"},
			&cli.StringFlag{Name: "orchestrator-url", Usage: "custom orchestrator endpoint"},
		},
		Action: func(c *cli.Context) error {
			env, err := session.ResolveEnvironment(c.String("orchestrator-url"), raw.New().Get("NEXUS_ENVIRONMENT", ""))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			path, err := session.DefaultPath()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := registerUser(c.Context, env, path, c.String("wallet-address")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func registerNodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "register-node",
		Usage: "register or link a prover node (requires a registered user)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "node-id", Usage: "link an existing node instead of creating one"},
			&cli.StringFlag{Name: "orchestrator-url", Usage: "custom orchestrator endpoint"},
		},
		Action: func(c *cli.Context) error {
			env, err := session.ResolveEnvironment(c.String("orchestrator-url"), raw.New().Get("NEXUS_ENVIRONMENT", ""))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			path, err := session.DefaultPath()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := registerNode(c.Context, env, path, c.String("node-id")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// netClient builds a timer-backed client for registration traffic
func netClient(env session.Environment) (*network.Client, error) {
	orc, err := orchestrator.New(orchestrator.Options{
		BaseURL:        env.URL,
		UserAgent:      buildinfo.UserAgent(),
		BuildTimestamp: buildinfo.Timestamp(),
	})
	if err != nil {
		return nil, err
	}
	return network.NewClient(orc, network.NewRequestTimer(network.TimerConfigFromEnv())), nil
}

// registerUser is idempotent against server state: an already-registered
// wallet just refreshes the local config
func registerUser(ctx context.Context, env session.Environment, path, wallet string) error {
	if err := session.ValidateWallet(wallet); err != nil {
		return err
	}
	net, err := netClient(env)
	if err != nil {
		return err
	}

	userID, err := net.GetUser(ctx, wallet)
	if err != nil {
		if err := net.RegisterUser(ctx, uuid.NewString(), wallet); err != nil {
			return err
		}
		userID, err = net.GetUser(ctx, wallet)
		if err != nil {
			return err
		}
	}

	cfg := loadOrEmpty(path)
	cfg.UserID = userID
	cfg.WalletAddress = wallet
	cfg.Environment = env.Name
	if err := cfg.Save(path); err != nil {
		return err
	}
	logger.Get().Info().Str("user_id", userID).Msg("user registered")
	return nil
}

// registerNode creates a node for the configured user, or links an existing
// one after verifying it with the server
func registerNode(ctx context.Context, env session.Environment, path, nodeID string) error {
	cfg := loadOrEmpty(path)
	if cfg.UserID == "" {
		return perr.New(perr.ErrorCodeNotFound, "no registered user; run register-user first")
	}
	net, err := netClient(env)
	if err != nil {
		return err
	}

	if nodeID != "" {
		if _, err := net.GetNode(ctx, nodeID); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeNotFound, "node %s not known to the server", nodeID)
		}
	} else {
		nodeID, err = net.RegisterNode(ctx, cfg.UserID)
		if err != nil {
			return err
		}
	}

	cfg.NodeID = nodeID
	cfg.Environment = env.Name
	if err := cfg.Save(path); err != nil {
		return err
	}
	logger.Get().Info().Str("node_id", nodeID).Msg("node registered")
	return nil
}

func loadOrEmpty(path string) *session.Config {
	cfg, err := session.Load(path)
	if err != nil {
		return &session.Config{}
	}
	return cfg
}

// interactiveSetup walks a first run through registration on the terminal
func interactiveSetup(ctx context.Context, env session.Environment, path string) (*session.Config, error) {
	fmt.Println("No node is registered on this machine yet.")
	fmt.Print("Enter your wallet address (0x...): ")
	rd := bufio.NewReader(os.Stdin)
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "read wallet address failed")
	}
	wallet := strings.TrimSpace(line)
	if err := registerUser(ctx, env, path, wallet); err != nil {
		return nil, err
	}
	if err := registerNode(ctx, env, path, ""); err != nil {
		return nil, err
	}
	return session.Load(path)
}
