package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/metrics"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/reminder"
	"github.com/mappingforchange/geokey-airquality/internal/resilience"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// appEnv holds the store, host client, mailer and metrics shared by the
// serve, check-measurements and export commands.
type appEnv struct {
	Store    store.Store
	Host     geokey.Client
	Mailer   notify.Mailer
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Breaker  *resilience.Breaker
	Location *time.Location
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Service builds the Air Quality service on the environment.
func (e *appEnv) Service() *airquality.Service {
	return airquality.New(e.Store, e.Host, e.Mailer,
		airquality.WithTimezone(e.Location),
		airquality.WithMetrics(e.Metrics),
	)
}

// Checker builds the reminder job on the environment.
func (e *appEnv) Checker() *reminder.Checker {
	return reminder.NewChecker(e.Store, e.Host, e.Mailer,
		reminder.WithTimezone(e.Location),
		reminder.WithMetrics(e.Metrics),
	)
}

// initEnv validates the configuration for mode and wires everything up.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	loc, err := cfg.Display.Location()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	mailer, err := initMailer()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	host, breaker := initHost(m)

	return &appEnv{
		Store:    st,
		Host:     host,
		Mailer:   mailer,
		Metrics:  m,
		Registry: reg,
		Breaker:  breaker,
		Location: loc,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initHost builds the host client with retries and a breaker whose state is
// exported as a gauge.
func initHost(m *metrics.Metrics) (geokey.Client, *resilience.Breaker) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Threshold: cfg.Host.Breaker.Threshold,
		Cooldown:  time.Duration(cfg.Host.Breaker.CooldownSecs) * time.Second,
		OnStateChange: func(from, to resilience.State) {
			m.HostCircuitState.Set(float64(to))
			zap.L().Warn("host circuit changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	retry := resilience.NewRetryConfig(
		cfg.Host.Retry.Attempts,
		time.Duration(cfg.Host.Retry.BackoffMS)*time.Millisecond,
		time.Duration(cfg.Host.Retry.MaxBackoffMS)*time.Millisecond,
	)

	opts := []geokey.Option{
		geokey.WithBaseURL(cfg.Host.BaseURL),
		geokey.WithPolicy(resilience.Policy{Retry: retry, Breaker: breaker}),
	}
	if cfg.Host.TimeoutSecs > 0 {
		opts = append(opts, geokey.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Host.TimeoutSecs) * time.Second}))
	}
	if cfg.Host.RateLimit > 0 {
		opts = append(opts, geokey.WithRateLimit(cfg.Host.RateLimit))
	}
	return geokey.NewClient(cfg.Host.Token, opts...), breaker
}

func initMailer() (notify.Mailer, error) {
	if cfg.Mail.Driver == "log" {
		zap.L().Warn("mail driver is log, emails will not be delivered")
		return notify.NewOutbox(), nil
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
}
