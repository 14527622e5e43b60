package airquality

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/classify"
	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// promote copies a finished measurement into a contribution of the host
// project named in the payload and deletes it. It reports false without an
// error whenever the project, its band category or any of the band's fields
// cannot be resolved; the measurement is then kept as it is. Host failures
// are returned and also leave the measurement in place.
func (s *Service) promote(ctx context.Context, user model.User, data map[string]any, m *model.Measurement, l *model.Location) (bool, error) {
	hostProjectID, ok := hostID(data["project"])
	if !ok || m.Finished == nil || !m.Properties.Has("results") {
		return false, nil
	}

	log := zap.L().With(zap.Int64("measurement_id", m.ID), zap.Int64("host_project_id", hostProjectID))
	skip := func(reason string, err error) (bool, error) {
		log.Debug("airquality: promotion skipped", zap.String("reason", reason), zap.Error(err))
		s.metrics.Promotions.WithLabelValues("skipped").Inc()
		return false, nil
	}

	hp, err := s.host.GetProject(ctx, hostProjectID)
	if errors.Is(err, geokey.ErrNotFound) {
		return skip("host project missing", err)
	}
	if err != nil {
		s.metrics.Promotions.WithLabelValues("failed").Inc()
		return false, eris.Wrapf(err, "airquality: get host project %d", hostProjectID)
	}
	if !hp.Active() {
		return skip("host project inactive", nil)
	}

	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{
		Status:        model.ProjectStatusActive,
		HostProjectID: hostProjectID,
	})
	if err != nil {
		return false, err
	}
	if len(projects) == 0 {
		return skip("no active project", nil)
	}

	result, ok := classify.ParseResult(m.Properties["results"])
	if !ok {
		return skip("results not numeric", nil)
	}
	category := projects[0].Category(classify.Band(result))
	if category == nil {
		return skip("band category missing", nil)
	}

	values := classify.FieldValues(m, l, result, s.tz)
	props := make(map[string]string, len(values))
	for _, ft := range model.FieldTypes() {
		f := category.Field(ft)
		if f == nil {
			return skip("field missing: "+string(ft), nil)
		}
		if v, ok := values[ft]; ok {
			props[f.HostFieldKey] = v
		}
	}

	allowed, err := s.host.CanContribute(ctx, hostProjectID, user.ID)
	if err != nil {
		s.metrics.Promotions.WithLabelValues("failed").Inc()
		return false, eris.Wrapf(err, "airquality: check contribution to %d", hostProjectID)
	}
	if !allowed {
		return skip("user cannot contribute", nil)
	}

	geo, err := geometry.MarshalGeoJSON(l.Geometry)
	if err != nil {
		return false, err
	}
	created, err := s.host.CreateContribution(ctx, hostProjectID, user.ID, geokey.Contribution{
		Type: "Feature",
		Meta: geokey.ContributionMeta{
			Status:   geokey.StatusActive,
			Category: category.HostCategoryID,
		},
		Location:   geokey.ContributionPlace{Geometry: json.RawMessage(geo)},
		Properties: props,
	})
	if err != nil {
		s.metrics.Promotions.WithLabelValues("failed").Inc()
		return false, eris.Wrapf(err, "airquality: create contribution for measurement %d", m.ID)
	}

	if err := s.store.DeleteMeasurement(ctx, m.ID); err != nil {
		return false, err
	}
	s.metrics.Promotions.WithLabelValues("promoted").Inc()
	log.Info("airquality: measurement promoted",
		zap.Int64("contribution_id", created.ID),
		zap.String("band", category.Type.Label()),
	)
	return true, nil
}

// hostID reads a host identifier from a JSON value.
func hostID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		id, err := t.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return id, err == nil
	}
	return 0, false
}
