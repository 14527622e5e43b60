// Package reminder emails creators about unfinished measurements that are
// about to expire or have just expired.
package reminder

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/metrics"
	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

const (
	// Subject of every reminder.
	Subject = "Measurements to be finished"

	// Window is how long a tube may stay out before a reminder is due.
	Window = 28 * 24 * time.Hour

	day = 24 * time.Hour

	startedLayout = "02/01/2006 15:04"
)

// Checker finds measurements to remind about and sends the emails.
type Checker struct {
	store   store.Store
	host    geokey.Client
	mailer  notify.Mailer
	clock   clockwork.Clock
	tz      *time.Location
	metrics *metrics.Metrics
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock sets the clock used to compute the reminder window.
func WithClock(c clockwork.Clock) Option {
	return func(ch *Checker) { ch.clock = c }
}

// WithTimezone sets the zone start times are shown in.
func WithTimezone(loc *time.Location) Option {
	return func(ch *Checker) { ch.tz = loc }
}

// WithMetrics sets the metrics the checker records to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ch *Checker) { ch.metrics = m }
}

// NewChecker creates a Checker.
func NewChecker(st store.Store, host geokey.Client, mailer notify.Mailer, opts ...Option) *Checker {
	ch := &Checker{
		store:  st,
		host:   host,
		mailer: mailer,
		clock:  clockwork.NewRealClock(),
		tz:     time.UTC,
	}
	for _, o := range opts {
		o(ch)
	}
	if ch.metrics == nil {
		ch.metrics = metrics.NewMetrics(nil)
	}
	return ch
}

// Boundary returns the start of the day after the one 28 days before now,
// in UTC. Measurements started the day before it are due in 3 days.
func Boundary(now time.Time) time.Time {
	t := now.UTC().Add(-Window)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(day)
}

// bucket groups the unfinished measurements of one creator.
type bucket struct {
	dueIn3Days []model.Measurement
	dueIn1Day  []model.Measurement
	expired    []model.Measurement
}

func (b *bucket) empty() bool {
	return len(b.dueIn3Days) == 0 && len(b.dueIn1Day) == 0 && len(b.expired) == 0
}

// Run sends one reminder per creator with anything to finish and returns
// how many were sent.
func (c *Checker) Run(ctx context.Context) (int, error) {
	c.metrics.RemindersRun.Inc()

	b := Boundary(c.clock.Now())
	from, before := b.Add(-4*day), b
	unfinished := false
	ms, err := c.store.ListMeasurements(ctx, store.MeasurementFilter{
		Finished:      &unfinished,
		StartedFrom:   &from,
		StartedBefore: &before,
	})
	if err != nil {
		return 0, err
	}

	buckets := make(map[int64]*bucket)
	for _, m := range ms {
		if m.CreatorID == model.Anonymous.ID {
			continue
		}
		bk := buckets[m.CreatorID]
		if bk == nil {
			bk = &bucket{}
			buckets[m.CreatorID] = bk
		}
		switch {
		case !m.Started.Before(b.Add(-day)):
			bk.dueIn3Days = append(bk.dueIn3Days, m)
		case !m.Started.Before(b.Add(-3*day)) && m.Started.Before(b.Add(-2*day)):
			bk.dueIn1Day = append(bk.dueIn1Day, m)
		case m.Started.Before(b.Add(-3 * day)):
			bk.expired = append(bk.expired, m)
		}
	}

	creators := make([]int64, 0, len(buckets))
	for id, bk := range buckets {
		if !bk.empty() {
			creators = append(creators, id)
		}
	}
	sort.Slice(creators, func(i, j int) bool { return creators[i] < creators[j] })

	locations := make(map[int64]string)
	var msgs []notify.Message
	for _, id := range creators {
		u, err := c.host.GetUser(ctx, id)
		if errors.Is(err, geokey.ErrNotFound) {
			continue
		}
		if err != nil {
			zap.L().Warn("reminder: get user failed, skipping",
				zap.Int64("user_id", id),
				zap.Error(err),
			)
			continue
		}
		if u.Email == "" {
			continue
		}

		bk := buckets[id]
		data := notify.ReminderData{Receiver: u.DisplayName}
		if data.DueIn3Days, err = c.items(ctx, bk.dueIn3Days, locations); err != nil {
			return 0, err
		}
		if data.DueIn1Day, err = c.items(ctx, bk.dueIn1Day, locations); err != nil {
			return 0, err
		}
		if data.Expired, err = c.items(ctx, bk.expired, locations); err != nil {
			return 0, err
		}

		body, err := notify.Render(notify.TemplateReminder, data)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, notify.NewMessage(u.Email, Subject, body))
	}

	if len(msgs) > 0 {
		if err := c.mailer.Send(ctx, msgs...); err != nil {
			return 0, eris.Wrap(err, "reminder: send")
		}
		c.metrics.EmailsSent.WithLabelValues("reminder").Add(float64(len(msgs)))
	}

	zap.L().Info("reminder: check finished",
		zap.Time("boundary", b),
		zap.Int("measurements", len(ms)),
		zap.Int("sent", len(msgs)),
	)
	return len(msgs), nil
}

func (c *Checker) items(ctx context.Context, ms []model.Measurement, locations map[int64]string) ([]notify.ReminderItem, error) {
	var out []notify.ReminderItem
	for _, m := range ms {
		name, ok := locations[m.LocationID]
		if !ok {
			l, err := c.store.GetLocation(ctx, m.LocationID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, eris.Wrapf(err, "reminder: location of measurement %d", m.ID)
			}
			if l != nil {
				name = l.Name
			}
			locations[m.LocationID] = name
		}
		out = append(out, notify.ReminderItem{
			Barcode:  m.Barcode,
			Location: name,
			Started:  m.Started.In(c.tz).Format(startedLayout),
		})
	}
	return out, nil
}
