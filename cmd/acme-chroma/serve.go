package main

import (
	"context"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/acmewin"
	"github.com/cptaffe/acme-chroma/internal/config"
	"github.com/cptaffe/acme-chroma/internal/logger"
	"github.com/cptaffe/acme-chroma/internal/publish"
)

// shutdownTimeout bounds how long serve waits for window goroutines.
const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Highlight every acme window until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), service)
		},
	}
	cmd.Flags().StringVar(&service, "service", "acme-styles", "compositor 9P service name")
	return cmd
}

func (a *app) serve(ctx context.Context, service string) error {
	l := logger.L(ctx)
	m, err := a.mapper(a.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	s := acmewin.NewServer(ctx, acmewin.Config{
		Mapper:         m,
		Font:           a.cfg.BaseFont(),
		LayerName:      a.cfg.Layer,
		CoalesceDelay:  a.cfg.CoalesceDelay,
		LexerOverrides: a.cfg.LexerOverrides(),
	}, acmewin.WithPublisher(publish.New(service, publish.WithLogger(l))))
	l.Info("serving",
		zap.String("theme", m.Name()),
		zap.String("layer", a.cfg.Layer),
		zap.String("service", service))

	if a.v.ConfigFileUsed() != "" {
		config.Watch(a.v, func(c config.Config, e fsnotify.Event, err error) {
			if err != nil {
				l.Error("reload config", zap.String("path", e.Name), zap.Error(err))
				return
			}
			m, err := a.mapper(c)
			if err != nil {
				l.Error("reload theme", zap.String("path", e.Name), zap.Error(err))
				return
			}
			l.Info("reloaded theme", zap.String("theme", m.Name()))
			s.SetTheme(m, c.BaseFont())
		})
	}

	err = acmewin.Watch(ctx, s)
	stop()

	l.Info("shutting down; waiting for window goroutines")
	done := make(chan struct{})
	go func() { s.Wait(); close(done) }()
	select {
	case <-done:
		l.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		l.Warn("shutdown timed out; exiting anyway")
	}
	return err
}
