package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"nexusprover/internal/buildinfo"
	"nexusprover/internal/platform/logger"
	"nexusprover/internal/prover"
	"nexusprover/internal/session"
)

func main() {
	// stderr is reserved for fatal startup errors and panics; everything
	// else flows through the event stream
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			os.Exit(1)
		}
	}()

	logger.Init(logger.FromEnv())

	app := &cli.App{
		Name:    "nexus-cli",
		Usage:   "Nexus network prover client",
		Version: buildinfo.Get().Version,
		Commands: []*cli.Command{
			startCommand(),
			registerUserCommand(),
			registerNodeCommand(),
			logoutCommand(),
			proveSubprocessCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "delete the local config file",
		Action: func(c *cli.Context) error {
			path, err := session.DefaultPath()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := session.Delete(path); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			logger.Get().Info().Str("path", path).Msg("logged out")
			return nil
		},
	}
}

func proveSubprocessCommand() *cli.Command {
	return &cli.Command{
		Name:   prover.SubprocessCommand,
		Hidden: true,
		Usage:  "prove a single input tuple and write the proof to stdout",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "inputs", Required: true, Usage: "JSON {n, init_a, init_b}"},
		},
		Action: func(c *cli.Context) error {
			code := prover.RunStandalone(c.String("inputs"), os.Stdout)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}
