// Package airquality implements the Air Quality operations: the public
// location and measurement API, promotion of finished measurements into
// host contributions, superuser administration and reactions to host
// lifecycle changes.
package airquality

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mappingforchange/geokey-airquality/internal/metrics"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/serialize"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// Service ties the store, the host and the mailer together.
type Service struct {
	store   store.Store
	host    geokey.Client
	mailer  notify.Mailer
	clock   clockwork.Clock
	device  *serialize.DeviceClock
	tz      *time.Location
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTimezone sets the zone dates and times are displayed in.
func WithTimezone(loc *time.Location) Option {
	return func(s *Service) {
		s.tz = loc
	}
}

// WithMetrics sets the metrics to record into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a Service.
func New(st store.Store, host geokey.Client, mailer notify.Mailer, opts ...Option) *Service {
	s := &Service{
		store:  st,
		host:   host,
		mailer: mailer,
		clock:  clockwork.NewRealClock(),
		tz:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics(nil)
	}
	s.device = serialize.NewDeviceClock(s.clock)
	return s
}
