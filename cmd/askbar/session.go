package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/askbar/internal/identity"
	"github.com/aussiebroadwan/askbar/internal/kvstore"
	"github.com/aussiebroadwan/askbar/internal/notify"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// session is everything one command needs: the backend client, the local
// state it persists to and a started identity manager.
type session struct {
	out     io.Writer
	logger  *slog.Logger
	state   *kvstore.Store
	client  *identitysdk.Client
	manager *identity.Manager
	nav     *notify.Navigator

	registry    *prometheus.Registry
	metricsFile string
}

func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	root := cmd.Root()
	out := &lockedWriter{w: root.Writer}

	logger := slogx.New(slogx.Config{
		Service: "askbar",
		Env:     "cli",
		Level:   root.String("log-level"),
		Format:  root.String("log-format"),
		Output:  root.ErrWriter,
	})

	state, err := kvstore.Open(root.String("state"))
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	client := identitysdk.NewClient(root.String("server"), state)
	registry := prometheus.NewRegistry()
	nav := notify.NewNavigator(out)

	cfg := identity.DefaultConfig()
	cfg.SignOutRedirectDelay = root.Duration("redirect-delay")
	cfg.SignOutFailureDelay = 2 * cfg.SignOutRedirectDelay
	cfg.StorageKeyPrefix = client.StorageKeyPrefix

	m := identity.New(cfg, identity.Deps{
		Provider:  client,
		Profiles:  client,
		Storage:   state,
		Notifier:  notify.NewWriter(out, logger),
		Navigator: nav,
		Logger:    logger,
		Metrics:   identity.NewMetrics(registry),
	})
	if err := m.Start(ctx); err != nil {
		m.Close()
		_ = state.Close()
		return nil, err
	}

	return &session{
		out:         out,
		logger:      logger,
		state:       state,
		client:      client,
		manager:     m,
		nav:         nav,
		registry:    registry,
		metricsFile: root.String("metrics-file"),
	}, nil
}

func (s *session) Close() {
	s.manager.Close()
	if s.metricsFile != "" {
		if err := prometheus.WriteToTextfile(s.metricsFile, s.registry); err != nil {
			s.logger.Warn("write metrics failed", "path", s.metricsFile, "err", err)
		}
	}
	if err := s.state.Close(); err != nil {
		s.logger.Warn("close local state failed", "err", err)
	}
}

// withSession opens a session around action.
func withSession(action func(ctx context.Context, cmd *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return action(ctx, cmd, s)
	}
}

// lockedWriter serializes writes from the event loop and the command.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
