package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newProjectTree(hostProjectID int64) *model.Project {
	p := &model.Project{CreatorID: 7, HostProjectID: hostProjectID}
	for i, ct := range model.CategoryTypes() {
		c := model.Category{Type: ct, HostCategoryID: hostProjectID*100 + int64(i)}
		for j, ft := range model.FieldTypes() {
			c.Fields = append(c.Fields, model.Field{
				Type:         ft,
				HostFieldID:  c.HostCategoryID*100 + int64(j),
				HostFieldKey: string(ft),
			})
		}
		p.Categories = append(p.Categories, c)
	}
	return p
}

// --- Projects ---

func TestSQLite_CreateAndGetProject(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := newProjectTree(1)
	require.NoError(t, st.CreateProject(ctx, p))
	assert.NotZero(t, p.ID)
	assert.Equal(t, model.ProjectStatusActive, p.Status)
	for _, c := range p.Categories {
		assert.NotZero(t, c.ID)
		assert.Equal(t, p.ID, c.ProjectID)
		for _, f := range c.Fields {
			assert.NotZero(t, f.ID)
			assert.Equal(t, c.ID, f.CategoryID)
		}
	}

	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.HostProjectID)
	assert.Equal(t, int64(7), got.CreatorID)
	assert.True(t, got.Complete())
	assert.Equal(t, model.CategoryBelow40, got.Categories[0].Type)
	assert.Equal(t, model.FieldResults, got.Categories[0].Fields[0].Type)
	assert.Equal(t, model.FieldAdditionalDetails, got.Categories[0].Fields[9].Type)
}

func TestSQLite_GetProject_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetProject(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveProject_UpsertsByType(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := newProjectTree(1)
	require.NoError(t, st.CreateProject(ctx, p))
	firstCategoryID := p.Categories[0].ID

	// Drop a category, then save a fresh tree pointing at new host ids.
	require.NoError(t, st.DeleteCategory(ctx, p.Categories[4].ID))
	require.NoError(t, st.SetProjectStatus(ctx, p.ID, model.ProjectStatusInactive))

	updated := newProjectTree(2)
	updated.ID = p.ID
	updated.Status = model.ProjectStatusActive
	require.NoError(t, st.SaveProject(ctx, updated))

	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, got.Status)
	assert.Equal(t, int64(2), got.HostProjectID)
	assert.True(t, got.Complete())
	assert.Equal(t, firstCategoryID, got.Categories[0].ID)
	assert.Equal(t, int64(200), got.Categories[0].HostCategoryID)
}

func TestSQLite_SaveProject_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	p := newProjectTree(1)
	p.ID = 42
	p.Status = model.ProjectStatusActive
	assert.ErrorIs(t, st.SaveProject(context.Background(), p), ErrNotFound)
}

func TestSQLite_ListProjects_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := newProjectTree(1)
	b := newProjectTree(2)
	require.NoError(t, st.CreateProject(ctx, a))
	require.NoError(t, st.CreateProject(ctx, b))
	require.NoError(t, st.SetProjectStatus(ctx, b.ID, model.ProjectStatusInactive))

	all, err := st.ListProjects(ctx, ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := st.ListProjects(ctx, ProjectFilter{Status: model.ProjectStatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Len(t, active[0].Categories, 5)

	byHost, err := st.ListProjects(ctx, ProjectFilter{HostProjectID: 2})
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, b.ID, byHost[0].ID)
}

func TestSQLite_DeleteProject_Cascades(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := newProjectTree(1)
	require.NoError(t, st.CreateProject(ctx, p))
	hostField := p.Categories[0].Fields[0].HostFieldID

	require.NoError(t, st.DeleteProject(ctx, p.ID))

	cats, err := st.ListCategoriesByHost(ctx, p.Categories[0].HostCategoryID)
	require.NoError(t, err)
	assert.Empty(t, cats)
	fields, err := st.ListFieldsByHost(ctx, hostField)
	require.NoError(t, err)
	assert.Empty(t, fields)

	assert.ErrorIs(t, st.DeleteProject(ctx, p.ID), ErrNotFound)
}

func TestSQLite_CategoriesAndFieldsByHost(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := newProjectTree(3)
	require.NoError(t, st.CreateProject(ctx, p))

	cats, err := st.ListCategoriesByHost(ctx, 302)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, model.Category60To80, cats[0].Type)

	got, err := st.GetCategory(ctx, cats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ProjectID)

	fields, err := st.ListFieldsByHost(ctx, 30207)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, cats[0].ID, fields[0].CategoryID)

	require.NoError(t, st.DeleteField(ctx, fields[0].ID))
	project, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, project.Complete())

	_, err = st.GetCategory(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Locations and measurements ---

func newLocation(creator int64) *model.Location {
	return &model.Location{
		Name:       "Euston Road",
		Geometry:   geometry.NewPoint(-0.134, 51.524),
		CreatorID:  creator,
		Created:    time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		Properties: model.Properties{"height": 2.5, "characteristics": "Bus stop"},
	}
}

func TestSQLite_LocationLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := newLocation(5)
	require.NoError(t, st.CreateLocation(ctx, l))
	require.NotZero(t, l.ID)

	got, err := st.GetLocation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Euston Road", got.Name)
	assert.InDelta(t, -0.134, got.Geometry.X(), 1e-9)
	assert.InDelta(t, 51.524, got.Geometry.Y(), 1e-9)
	assert.True(t, l.Created.Equal(got.Created))
	assert.Equal(t, 2.5, got.Properties["height"])
	assert.Empty(t, got.Measurements)

	got.Name = "Euston Square"
	got.Geometry = geometry.NewPoint(-0.135, 51.525)
	got.Properties = model.Properties{}
	require.NoError(t, st.UpdateLocation(ctx, got))

	got, err = st.GetLocation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Euston Square", got.Name)
	assert.InDelta(t, -0.135, got.Geometry.X(), 1e-9)
	assert.Empty(t, got.Properties)

	n, err := st.CountLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_ListLocations_WithMeasurements(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	mine := newLocation(5)
	theirs := newLocation(6)
	require.NoError(t, st.CreateLocation(ctx, mine))
	require.NoError(t, st.CreateLocation(ctx, theirs))

	started := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateMeasurement(ctx, &model.Measurement{
		LocationID: mine.ID, Barcode: "111", CreatorID: 5, Started: started.Add(time.Hour),
	}))
	require.NoError(t, st.CreateMeasurement(ctx, &model.Measurement{
		LocationID: mine.ID, Barcode: "110", CreatorID: 5, Started: started,
	}))

	locs, err := st.ListLocations(ctx, LocationFilter{CreatorID: 5})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Len(t, locs[0].Measurements, 2)
	assert.Equal(t, "110", locs[0].Measurements[0].Barcode)

	all, err := st.ListLocations(ctx, LocationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotNil(t, all[1].Measurements)
}

func TestSQLite_DeleteLocation_Cascades(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := newLocation(5)
	require.NoError(t, st.CreateLocation(ctx, l))
	m := &model.Measurement{LocationID: l.ID, Barcode: "123", CreatorID: 5, Started: time.Now()}
	require.NoError(t, st.CreateMeasurement(ctx, m))

	require.NoError(t, st.DeleteLocation(ctx, l.ID))

	_, err := st.GetMeasurement(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.DeleteLocation(ctx, l.ID), ErrNotFound)
}

func TestSQLite_MeasurementLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := newLocation(5)
	require.NoError(t, st.CreateLocation(ctx, l))

	started := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	m := &model.Measurement{
		LocationID: l.ID,
		Barcode:    "145627",
		CreatorID:  5,
		Started:    started,
		Properties: model.Properties{"additional_details": "Near the lights"},
	}
	require.NoError(t, st.CreateMeasurement(ctx, m))

	got, err := st.GetMeasurement(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Finished)
	assert.True(t, started.Equal(got.Started))
	assert.Equal(t, "Near the lights", got.Properties.String("additional_details"))

	finished := started.Add(28 * 24 * time.Hour)
	got.Finished = &finished
	got.Barcode = "145628"
	got.Properties["results"] = 45.5
	require.NoError(t, st.UpdateMeasurement(ctx, got))

	got, err = st.GetMeasurement(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Finished)
	assert.True(t, finished.Equal(*got.Finished))
	assert.Equal(t, "145628", got.Barcode)
	assert.Equal(t, 45.5, got.Properties["results"])

	n, err := st.CountMeasurements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, st.DeleteMeasurement(ctx, m.ID))
	assert.ErrorIs(t, st.DeleteMeasurement(ctx, m.ID), ErrNotFound)
}

func TestSQLite_ListMeasurements_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := newLocation(5)
	require.NoError(t, st.CreateLocation(ctx, l))

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	finished := base.Add(time.Hour)
	for i, m := range []*model.Measurement{
		{Barcode: "a", CreatorID: 5, Started: base.Add(-time.Nanosecond)},
		{Barcode: "b", CreatorID: 5, Started: base},
		{Barcode: "c", CreatorID: 5, Started: base.Add(12 * time.Hour)},
		{Barcode: "d", CreatorID: 6, Started: base.Add(13 * time.Hour)},
		{Barcode: "e", CreatorID: 5, Started: base.Add(14 * time.Hour), Finished: &finished},
		{Barcode: "f", CreatorID: 5, Started: base.Add(24 * time.Hour)},
	} {
		m.LocationID = l.ID
		require.NoError(t, st.CreateMeasurement(ctx, m), "measurement %d", i)
	}

	from := base
	before := base.Add(24 * time.Hour)
	unfinished := false
	got, err := st.ListMeasurements(ctx, MeasurementFilter{
		Finished:      &unfinished,
		StartedFrom:   &from,
		StartedBefore: &before,
	})
	require.NoError(t, err)
	var barcodes []string
	for _, m := range got {
		barcodes = append(barcodes, m.Barcode)
	}
	assert.Equal(t, []string{"b", "c", "d"}, barcodes)

	done := true
	got, err = st.ListMeasurements(ctx, MeasurementFilter{CreatorID: 5, Finished: &done})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e", got[0].Barcode)

	got, err = st.ListMeasurements(ctx, MeasurementFilter{LocationIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
