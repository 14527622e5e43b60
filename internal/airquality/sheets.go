package airquality

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/sheet"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

const (
	sheetSubject  = "Sheet of finished measurements"
	sheetBody     = "Please find the attached CSV in this email."
	sheetFilename = "sheet.csv"

	// userLookups bounds concurrent host user requests during an export.
	userLookups = 4
)

// SendSheet emails the user a CSV of their finished measurements.
func (s *Service) SendSheet(ctx context.Context, user model.User) error {
	if user.IsAnonymous() {
		return forbidden(msgNoSheet)
	}

	finished := true
	ms, err := s.store.ListMeasurements(ctx, store.MeasurementFilter{CreatorID: user.ID, Finished: &finished})
	if err != nil {
		return err
	}
	entries, err := s.entries(ctx, ms, nil)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := sheet.Build(entries, s.tz, false).WriteCSV(&buf); err != nil {
		return err
	}

	msg := notify.NewMessage(user.Email, sheetSubject, sheetBody)
	msg.Attach(sheetFilename, sheet.FormatCSV.ContentType(), buf.Bytes())
	if err := s.mailer.Send(ctx, msg); err != nil {
		return eris.Wrap(err, "airquality: send sheet")
	}
	s.metrics.EmailsSent.WithLabelValues("sheet").Inc()
	zap.L().Info("airquality: sheet sent", zap.Int64("user_id", user.ID), zap.Int("measurements", len(ms)))
	return nil
}

// Export is a rendered export file.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export renders every measurement with the name of the user who added it.
func (s *Service) Export(ctx context.Context, user model.User, format sheet.Format) (*Export, error) {
	if !user.IsSuperuser {
		return nil, forbidden(MsgSuperusersOnly)
	}

	ms, err := s.store.ListMeasurements(ctx, store.MeasurementFilter{})
	if err != nil {
		return nil, err
	}
	names, err := s.displayNames(ctx, ms)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries(ctx, ms, names)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sheet.Build(entries, s.tz, true).Write(&buf, format); err != nil {
		return nil, err
	}
	return &Export{
		Filename:    sheet.ExportFilename(s.clock.Now().In(s.tz), format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// entries pairs measurements with their locations and, when names is set,
// their creators' display names.
func (s *Service) entries(ctx context.Context, ms []model.Measurement, names map[int64]string) ([]sheet.Entry, error) {
	locs := make(map[int64]*model.Location)
	out := make([]sheet.Entry, 0, len(ms))
	for _, m := range ms {
		l, ok := locs[m.LocationID]
		if !ok {
			var err error
			l, err = s.store.GetLocation(ctx, m.LocationID)
			if err != nil {
				return nil, eris.Wrapf(err, "airquality: location of measurement %d", m.ID)
			}
			locs[m.LocationID] = l
		}
		out = append(out, sheet.Entry{Measurement: m, Location: *l, AddedBy: names[m.CreatorID]})
	}
	return out, nil
}

// displayNames fetches the host display name of every creator. Users the
// host no longer knows are left without a name.
func (s *Service) displayNames(ctx context.Context, ms []model.Measurement) (map[int64]string, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, m := range ms {
		if !seen[m.CreatorID] {
			seen[m.CreatorID] = true
			ids = append(ids, m.CreatorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var mu sync.Mutex
	names := make(map[int64]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(userLookups)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			u, err := s.host.GetUser(gctx, id)
			if errors.Is(err, geokey.ErrNotFound) {
				return nil
			}
			if err != nil {
				return eris.Wrapf(err, "airquality: get user %d", id)
			}
			mu.Lock()
			names[id] = u.DisplayName
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}
