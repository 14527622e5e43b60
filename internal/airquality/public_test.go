package airquality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/resilience"
	"github.com/mappingforchange/geokey-airquality/internal/serialize"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

var anyCtx = mock.Anything

func TestPublic_AnonymousForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListProjects(ctx, model.Anonymous)
	assert.True(t, IsCode(err, CodeForbidden))
	assert.EqualError(t, err, "airquality: You have no rights to retrieve all projects.")

	_, err = f.svc.ListLocations(ctx, model.Anonymous)
	assert.True(t, IsCode(err, CodeForbidden))

	_, err = f.svc.CreateLocation(ctx, model.Anonymous, map[string]any{})
	assert.True(t, IsCode(err, CodeForbidden))

	assert.True(t, IsCode(f.svc.SendSheet(ctx, model.Anonymous), CodeForbidden))
}

func TestListProjects(t *testing.T) {
	f := newFixture(t)
	seedProject(t, f, 7, model.ProjectStatusActive)
	seedProject(t, f, 8, model.ProjectStatusActive)
	seedProject(t, f, 9, model.ProjectStatusInactive)

	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
	f.host.On("GetProject", anyCtx, int64(8)).Return(activeHostProject(8, "Hackney"), nil)
	f.host.On("CanContribute", anyCtx, int64(7), ann.ID).Return(true, nil)
	f.host.On("CanContribute", anyCtx, int64(8), ann.ID).Return(false, nil)

	got, err := f.svc.ListProjects(context.Background(), ann)
	require.NoError(t, err)
	assert.Equal(t, []ProjectSummary{{ID: 7, Name: "Camden"}}, got)
}

func TestListProjects_SkipsMissingHostProject(t *testing.T) {
	f := newFixture(t)
	seedProject(t, f, 7, model.ProjectStatusActive)
	f.host.On("GetProject", anyCtx, int64(7)).Return(nil, geokey.ErrNotFound)

	got, err := f.svc.ListProjects(context.Background(), ann)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	feat, err := f.svc.CreateLocation(ctx, ann, payload(t, `{
		"name": "Euston Road",
		"geometry": {"type": "Point", "coordinates": [-0.13, 51.52]},
		"created": "2026-10-19T09:00:00Z",
		"called": "2026-10-19T09:10:00Z",
		"properties": {"height": 2.5, "colour": "red"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T09:20:00Z", feat.Created)
	assert.Equal(t, model.Properties{"height": 2.5}, feat.Properties)
	assert.Empty(t, feat.Measurements)

	_, err = f.svc.UpdateLocation(ctx, bob, feat.ID, payload(t, `{"name": "x", "geometry": {"type": "Point", "coordinates": [0, 0]}}`))
	assert.True(t, IsCode(err, CodeForbidden))
	assert.EqualError(t, err, "airquality: You have no rights to edit this location.")

	f.clock.Advance(time.Hour)
	updated, err := f.svc.UpdateLocation(ctx, ann, feat.ID, payload(t, `{
		"name": "Euston Road North",
		"geometry": {"type": "Point", "coordinates": [-0.14, 51.53]},
		"created": "2020-01-01T00:00:00Z",
		"properties": {"distance": 3}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Euston Road North", updated.Name)
	assert.Equal(t, feat.Created, updated.Created)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-0.14,51.53]}`, string(updated.Geometry))

	list, err := f.svc.ListLocations(ctx, ann)
	require.NoError(t, err)
	require.Len(t, list, 1)

	others, err := f.svc.ListLocations(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, others)

	assert.True(t, IsCode(f.svc.DeleteLocation(ctx, bob, feat.ID), CodeForbidden))
	require.NoError(t, f.svc.DeleteLocation(ctx, ann, feat.ID))
	err = f.svc.DeleteLocation(ctx, ann, feat.ID)
	assert.True(t, IsCode(err, CodeNotFound))
	assert.EqualError(t, err, "airquality: Location not found.")
}

func TestCreateLocation_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLocation(context.Background(), ann, payload(t, `{"geometry": {"type": "LineString"}}`))
	var verrs serialize.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Name must be specified.", verrs["name"])
	assert.Equal(t, "Only points can be used.", verrs["geometry"])
}

func TestCreateMeasurement_Unfinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locID := seedLocation(t, f, ann)

	res, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, `{"barcode": 145627, "project": 7}`))
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	require.NotNil(t, res.View)
	assert.Equal(t, "145627", res.View.Barcode)
	assert.Equal(t, "2026-10-19T09:30:00Z", res.View.Started)
	assert.Nil(t, res.View.Finished)

	_, err = f.svc.CreateMeasurement(ctx, bob, locID, payload(t, `{"barcode": "1"}`))
	assert.EqualError(t, err, "airquality: You have no rights to add a new measurement.")

	_, err = f.svc.CreateMeasurement(ctx, ann, 999, payload(t, `{"barcode": "1"}`))
	assert.True(t, IsCode(err, CodeNotFound))

	_, err = f.svc.CreateMeasurement(ctx, ann, locID, payload(t, `{}`))
	var verrs serialize.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Barcode must be specified.", verrs["barcode"])
}

const finishedPayload = `{
	"barcode": "145627",
	"project": 7,
	"started": "2026-09-21T08:00:00Z",
	"finished": "2026-10-19T09:00:00Z",
	"called": "2026-10-19T09:30:00Z",
	"properties": {"results": 45, "additional_details": "Rain"}
}`

func TestCreateMeasurement_Promotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedProject(t, f, 7, model.ProjectStatusActive)
	locID := seedLocation(t, f, ann)

	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
	f.host.On("CanContribute", anyCtx, int64(7), ann.ID).Return(true, nil)
	f.host.On("CreateContribution", anyCtx, int64(7), ann.ID, mock.MatchedBy(func(c geokey.Contribution) bool {
		return c.Type == "Feature" &&
			c.Meta.Status == geokey.StatusActive &&
			c.Meta.Category == hostCategoryID(7, model.Category40To60)
	})).Run(func(args mock.Arguments) {
		c := args.Get(3).(geokey.Contribution)
		assert.Equal(t, map[string]string{
			"key_results":              "45.0",
			"key_date_out":             "21/09/2026",
			"key_time_out":             "08:00",
			"key_date_collected":       "19/10/2026",
			"key_time_collected":       "09:00",
			"key_exposure_min":         "40380",
			"key_distance_from_road":   "10m",
			"key_height":               "2.5m",
			"key_site_characteristics": "Bus stop",
			"key_additional_details":   "Rain",
		}, c.Properties)
		assert.JSONEq(t, `{"type":"Point","coordinates":[-0.13,51.52]}`, string(c.Location.Geometry))
	}).Return(&geokey.Created{ID: 501}, nil)

	res, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, finishedPayload))
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Nil(t, res.View)

	n, err := f.store.CountMeasurements(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateMeasurement_PromotionSkipped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "host project inactive",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).
					Return(&geokey.Project{ID: 7, Status: geokey.StatusInactive}, nil)
			},
		},
		{
			name: "host project missing",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(nil, geokey.ErrNotFound)
			},
		},
		{
			name: "user cannot contribute",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
				f.host.On("CanContribute", anyCtx, int64(7), ann.ID).Return(false, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seedProject(t, f, 7, model.ProjectStatusActive)
			locID := seedLocation(t, f, ann)
			tt.setup(f)

			res, err := f.svc.CreateMeasurement(context.Background(), ann, locID, payload(t, finishedPayload))
			require.NoError(t, err)
			assert.False(t, res.Promoted)
			require.NotNil(t, res.View)
			require.NotNil(t, res.View.Finished)
			assert.Equal(t, "2026-10-19T09:00:00Z", *res.View.Finished)
		})
	}
}

func TestCreateMeasurement_HostFailureKeepsMeasurement(t *testing.T) {
	hostDown := resilience.NewTransientError(&geokey.APIError{StatusCode: 502, Body: "bad gateway"}, 502)

	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "get project fails",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(nil, hostDown)
			},
		},
		{
			name: "circuit open",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(nil, resilience.ErrOpen)
			},
		},
		{
			name: "permission check fails",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
				f.host.On("CanContribute", anyCtx, int64(7), ann.ID).Return(false, hostDown)
			},
		},
		{
			name: "create contribution fails",
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
				f.host.On("CanContribute", anyCtx, int64(7), ann.ID).Return(true, nil)
				f.host.On("CreateContribution", anyCtx, int64(7), ann.ID, mock.Anything).Return(nil, hostDown)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			seedProject(t, f, 7, model.ProjectStatusActive)
			locID := seedLocation(t, f, ann)
			tt.setup(f)

			_, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, finishedPayload))
			require.Error(t, err)
			var code *Error
			assert.False(t, errors.As(err, &code))

			n, err := f.store.CountMeasurements(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestCreateMeasurement_NoActiveProject(t *testing.T) {
	f := newFixture(t)
	seedProject(t, f, 7, model.ProjectStatusInactive)
	locID := seedLocation(t, f, ann)
	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)

	res, err := f.svc.CreateMeasurement(context.Background(), ann, locID, payload(t, finishedPayload))
	require.NoError(t, err)
	assert.False(t, res.Promoted)
}

func TestCreateMeasurement_MissingField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProject(t, f, 7, model.ProjectStatusActive)
	locID := seedLocation(t, f, ann)
	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)

	band := p.Category(model.Category40To60)
	require.NoError(t, f.store.DeleteField(ctx, band.Field(model.FieldHeight).ID))

	res, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, finishedPayload))
	require.NoError(t, err)
	assert.False(t, res.Promoted)
}

func TestUpdateMeasurement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locID := seedLocation(t, f, ann)

	created, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, `{"barcode": "A1"}`))
	require.NoError(t, err)
	id := created.View.ID

	f.clock.Advance(24 * time.Hour)
	res, err := f.svc.UpdateMeasurement(ctx, ann, locID, id, payload(t, `{"barcode": "A2", "properties": {"results": "12.5"}}`))
	require.NoError(t, err)
	assert.Equal(t, "A2", res.View.Barcode)
	assert.Equal(t, created.View.Started, res.View.Started)
	assert.Nil(t, res.View.Finished)

	res, err = f.svc.UpdateMeasurement(ctx, ann, locID, id, payload(t, `{"barcode": "A2", "finished": "2026-10-20T09:30:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, res.View.Finished)
	assert.Equal(t, "2026-10-20T09:30:00Z", *res.View.Finished)

	_, err = f.svc.UpdateMeasurement(ctx, bob, locID, id, payload(t, `{"barcode": "B"}`))
	assert.EqualError(t, err, "airquality: You have no rights to update this measurement.")

	_, err = f.svc.UpdateMeasurement(ctx, ann, locID+1, id, payload(t, `{"barcode": "B"}`))
	assert.EqualError(t, err, "airquality: Measurement not found.")
}

func TestDeleteMeasurement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locID := seedLocation(t, f, ann)

	created, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, `{"barcode": "A1"}`))
	require.NoError(t, err)

	err = f.svc.DeleteMeasurement(ctx, bob, locID, created.View.ID)
	assert.EqualError(t, err, "airquality: You have no rights to delete this measurement.")

	require.NoError(t, f.svc.DeleteMeasurement(ctx, ann, locID, created.View.ID))
	assert.True(t, IsCode(f.svc.DeleteMeasurement(ctx, ann, locID, created.View.ID), CodeNotFound))
}

func TestHostID(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(7), 7, true},
		{7.5, 0, false},
		{"12", 12, true},
		{" 3 ", 3, true},
		{"x", 0, false},
		{nil, 0, false},
		{int64(9), 9, true},
	}
	for _, tt := range tests {
		got, ok := hostID(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
