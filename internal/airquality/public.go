package airquality

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/serialize"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// ProjectSummary is a host project a user can submit measurements to.
type ProjectSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListProjects returns the host projects of active Air Quality projects the
// user may contribute to.
func (s *Service) ListProjects(ctx context.Context, user model.User) ([]ProjectSummary, error) {
	if user.IsAnonymous() {
		return nil, forbidden(msgNoProjects)
	}

	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{Status: model.ProjectStatusActive})
	if err != nil {
		return nil, err
	}

	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		hp, err := s.host.GetProject(ctx, p.HostProjectID)
		if errors.Is(err, geokey.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "airquality: get host project %d", p.HostProjectID)
		}
		ok, err := s.host.CanContribute(ctx, hp.ID, user.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "airquality: check contribution to %d", hp.ID)
		}
		if ok {
			out = append(out, ProjectSummary{ID: hp.ID, Name: hp.Name})
		}
	}
	return out, nil
}

// ListLocations returns the user's locations with their measurements.
func (s *Service) ListLocations(ctx context.Context, user model.User) ([]*serialize.Feature, error) {
	if user.IsAnonymous() {
		return nil, forbidden(msgNoLocations)
	}
	locs, err := s.store.ListLocations(ctx, store.LocationFilter{CreatorID: user.ID})
	if err != nil {
		return nil, err
	}
	return serialize.LocationFeatures(locs)
}

// CreateLocation adds a location owned by the user.
func (s *Service) CreateLocation(ctx context.Context, user model.User, data map[string]any) (*serialize.Feature, error) {
	if user.IsAnonymous() {
		return nil, forbidden(msgNoAddLocation)
	}

	v, err := serialize.ValidateLocation(data)
	if err != nil {
		return nil, err
	}
	created, _, err := s.device.Resolve(data, "created")
	if err != nil {
		return nil, err
	}

	l := &model.Location{
		Name:       v.Name,
		Geometry:   v.Geometry,
		CreatorID:  user.ID,
		Created:    created,
		Properties: v.Properties,
	}
	if err := s.store.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	s.metrics.LocationsCreated.Inc()
	zap.L().Info("airquality: location created", zap.Int64("location_id", l.ID), zap.Int64("user_id", user.ID))
	return serialize.LocationFeature(l)
}

// UpdateLocation replaces the name, geometry and properties of a location.
// The creation time is kept.
func (s *Service) UpdateLocation(ctx context.Context, user model.User, id int64, data map[string]any) (*serialize.Feature, error) {
	l, err := s.ownedLocation(ctx, user, id, msgNoEditLocation)
	if err != nil {
		return nil, err
	}

	v, err := serialize.ValidateLocation(data)
	if err != nil {
		return nil, err
	}
	l.Name = v.Name
	l.Geometry = v.Geometry
	l.Properties = v.Properties

	if err := s.store.UpdateLocation(ctx, l); err != nil {
		return nil, s.mapNotFound(err, MsgLocationNotFound)
	}
	return serialize.LocationFeature(l)
}

// DeleteLocation removes a location and its measurements.
func (s *Service) DeleteLocation(ctx context.Context, user model.User, id int64) error {
	if _, err := s.ownedLocation(ctx, user, id, msgNoDeleteLocation); err != nil {
		return err
	}
	return s.mapNotFound(s.store.DeleteLocation(ctx, id), MsgLocationNotFound)
}

// MeasurementResult is the outcome of saving a measurement. Promoted
// measurements no longer exist and carry no View.
type MeasurementResult struct {
	View     *serialize.MeasurementView
	Promoted bool
}

// CreateMeasurement adds a measurement to one of the user's locations and
// promotes it when the payload names a project and it is finished.
func (s *Service) CreateMeasurement(ctx context.Context, user model.User, locationID int64, data map[string]any) (*MeasurementResult, error) {
	l, err := s.ownedLocation(ctx, user, locationID, msgNoAddMeasurement)
	if err != nil {
		return nil, err
	}

	v, err := serialize.ValidateMeasurement(data)
	if err != nil {
		return nil, err
	}
	started, _, err := s.device.Resolve(data, "started")
	if err != nil {
		return nil, err
	}
	finished, hasFinished, err := s.device.Resolve(data, "finished")
	if err != nil {
		return nil, err
	}

	m := &model.Measurement{
		LocationID: l.ID,
		Barcode:    v.Barcode,
		CreatorID:  user.ID,
		Started:    started,
		Properties: v.Properties,
	}
	if hasFinished {
		m.Finished = &finished
	}
	if err := s.store.CreateMeasurement(ctx, m); err != nil {
		return nil, err
	}
	s.metrics.MeasurementsCreated.Inc()

	return s.afterSave(ctx, user, data, m, l)
}

// UpdateMeasurement changes the barcode and properties of a measurement and
// sets its finish time when the payload has one. The start time is kept.
func (s *Service) UpdateMeasurement(ctx context.Context, user model.User, locationID, id int64, data map[string]any) (*MeasurementResult, error) {
	m, err := s.ownedMeasurement(ctx, user, locationID, id, msgNoUpdateMeasurement)
	if err != nil {
		return nil, err
	}

	v, err := serialize.ValidateMeasurement(data)
	if err != nil {
		return nil, err
	}
	finished, hasFinished, err := s.device.Resolve(data, "finished")
	if err != nil {
		return nil, err
	}

	m.Barcode = v.Barcode
	m.Properties = v.Properties
	if hasFinished {
		m.Finished = &finished
	}
	if err := s.store.UpdateMeasurement(ctx, m); err != nil {
		return nil, s.mapNotFound(err, MsgMeasurementNotFound)
	}

	l, err := s.store.GetLocation(ctx, m.LocationID)
	if err != nil {
		return nil, s.mapNotFound(err, MsgLocationNotFound)
	}
	return s.afterSave(ctx, user, data, m, l)
}

// DeleteMeasurement removes a measurement.
func (s *Service) DeleteMeasurement(ctx context.Context, user model.User, locationID, id int64) error {
	if _, err := s.ownedMeasurement(ctx, user, locationID, id, msgNoDeleteMeasurement); err != nil {
		return err
	}
	return s.mapNotFound(s.store.DeleteMeasurement(ctx, id), MsgMeasurementNotFound)
}

func (s *Service) afterSave(ctx context.Context, user model.User, data map[string]any, m *model.Measurement, l *model.Location) (*MeasurementResult, error) {
	promoted, err := s.promote(ctx, user, data, m, l)
	if err != nil {
		return nil, err
	}
	if promoted {
		return &MeasurementResult{Promoted: true}, nil
	}
	view := serialize.Measurement(m)
	return &MeasurementResult{View: &view}, nil
}

func (s *Service) ownedLocation(ctx context.Context, user model.User, id int64, denied string) (*model.Location, error) {
	l, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, MsgLocationNotFound)
	}
	if user.IsAnonymous() || l.CreatorID != user.ID {
		return nil, forbidden(denied)
	}
	return l, nil
}

// ownedMeasurement loads a measurement of the given location. A measurement
// of another location is reported as not found.
func (s *Service) ownedMeasurement(ctx context.Context, user model.User, locationID, id int64, denied string) (*model.Measurement, error) {
	m, err := s.store.GetMeasurement(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, MsgMeasurementNotFound)
	}
	if m.LocationID != locationID {
		return nil, notFound(MsgMeasurementNotFound)
	}
	if user.IsAnonymous() || m.CreatorID != user.ID {
		return nil, forbidden(denied)
	}
	return m, nil
}

func (s *Service) mapNotFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msg)
	}
	return err
}
