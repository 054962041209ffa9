package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "askbar-state.db"
	}
	return filepath.Join(dir, "askbar", "state.db")
}

func newRootCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "askbar",
		Usage:     "Sign in to AskBar and manage your profile from the terminal",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "identity backend base URL",
				Sources: cli.EnvVars("ASKBAR_SERVER"),
			},
			&cli.StringFlag{
				Name:    "state",
				Value:   defaultStatePath(),
				Usage:   "local state database holding the session",
				Sources: cli.EnvVars("ASKBAR_STATE_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "json or text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.DurationFlag{
				Name:    "redirect-delay",
				Value:   time.Second,
				Usage:   "how long sign-out notices stay up before returning home",
				Sources: cli.EnvVars("ASKBAR_REDIRECT_DELAY"),
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "write client metrics in text format to this file on exit",
				Sources: cli.EnvVars("ASKBAR_METRICS_FILE"),
			},
		},
		Commands: []*cli.Command{
			signUpCommand(),
			signInCommand(),
			signOutCommand(),
			whoamiCommand(),
			profileCommand(),
			oauthCommand(),
			healthCommand(),
		},
	}
}
