package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mappingforchange/geokey-airquality/internal/api"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
)

var (
	servePort      int
	serveReminders bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Air Quality API server",
	Long:  "Serves the public, admin and hook endpoints. With --reminders the measurement reminder job also runs on its schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL())
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := api.NewServer(fmt.Sprintf(":%d", port), api.Deps{
			Service:        env.Service(),
			Tokens:         tokens,
			Metrics:        env.Metrics,
			Gatherer:       env.Registry,
			Health:         env.Store,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		if serveReminders || cfg.Reminder.Enabled {
			sched, err := scheduleReminders(cfg.Reminder.Schedule, env.Location, env.Checker().Run)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
			zap.L().Info("reminders scheduled", zap.String("schedule", cfg.Reminder.Schedule))
		}

		timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		return runServer(ctx, srv, timeout)
	},
}

// runServer serves until ctx is done, then drains connections within
// timeout.
func runServer(ctx context.Context, srv *api.Server, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// scheduleReminders registers run on a six-field cron spec (seconds first)
// evaluated in loc. The returned scheduler is not started.
func scheduleReminders(spec string, loc *time.Location, run func(ctx context.Context) (int, error)) (*cron.Cron, error) {
	c := cron.NewWithLocation(loc)
	err := c.AddFunc(spec, func() {
		sent, err := run(context.Background())
		if err != nil {
			zap.L().Error("reminder run failed", zap.Error(err))
			return
		}
		zap.L().Info("reminder run complete", zap.Int("sent", sent))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "parse reminder schedule %q", spec)
	}
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveReminders, "reminders", false, "run the reminder job on its schedule")
	rootCmd.AddCommand(serveCmd)
}
