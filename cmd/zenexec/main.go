package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pbinitiative/zenexec/internal/log"
	"github.com/pbinitiative/zenexec/internal/profile"
	"github.com/urfave/cli/v3"
)

func main() {
	profile.InitProfile()
	log.Init()
	defer log.Sync()

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration, the environment is read when the file is missing",
		Value:   "conf.yaml",
		Sources: cli.EnvVars("CONFIG_FILE"),
	}
	cmd := &cli.Command{
		Name:                  "zenexec",
		Usage:                 "Process execution engine",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start an engine node: workers, operator API and metrics",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Number of workers, overrides engine.workers",
						Sources: cli.EnvVars("WORKERS"),
					},
				},
				Action: runNode,
			},
			{
				Name:      "start",
				Usage:     "Start an instance of a deployed process, needs shared persistence and queue",
				ArgsUsage: "<processId>",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "variables",
						Usage: "Initial variables as a JSON object",
						Value: "{}",
					},
				},
				Action: startInstance,
			},
			{
				Name:      "validate",
				Usage:     "Parse and check process definition files",
				ArgsUsage: "<file.yaml>...",
				Action:    validateDefinitions,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
