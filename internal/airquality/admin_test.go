package airquality

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

func TestAdmin_SuperusersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Overview(ctx, ann)
	assert.EqualError(t, err, "airquality: "+MsgSuperusersOnly)
	_, err = f.svc.Choices(ctx, ann)
	assert.True(t, IsCode(err, CodeForbidden))
	_, err = f.svc.AddProject(ctx, ann, formFor(7))
	assert.True(t, IsCode(err, CodeForbidden))
	_, err = f.svc.UpdateProject(ctx, ann, 1, formFor(7))
	assert.True(t, IsCode(err, CodeForbidden))
	assert.True(t, IsCode(f.svc.RemoveProject(ctx, ann, 1), CodeForbidden))
	_, err = f.svc.HostProject(ctx, ann, 7)
	assert.True(t, IsCode(err, CodeForbidden))
}

func TestParseProjectForm(t *testing.T) {
	values := url.Values{
		"project": {"7"},
		"1":       {"71"},
		"2":       {"72"},
		"3":       {"bad"},
		"results": {"1", "2", "3", "4", "5"},
		"height":  {"9"},
	}

	form := ParseProjectForm(values)
	assert.Equal(t, int64(7), form.Project)
	assert.Equal(t, int64(71), form.Categories[model.CategoryBelow40])
	assert.Equal(t, int64(72), form.Categories[model.Category40To60])
	assert.NotContains(t, form.Categories, model.Category60To80)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, form.Fields[model.FieldResults])
	assert.Equal(t, []int64{9}, form.Fields[model.FieldHeight])
}

func TestAddProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expectHostTree(f, 7)
	f.host.On("LockProject", anyCtx, int64(7)).Return(nil)

	p, err := f.svc.AddProject(ctx, admin, formFor(7))
	require.NoError(t, err)
	assert.NotZero(t, p.ID)

	stored, err := f.store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, stored.Status)
	assert.Equal(t, admin.ID, stored.CreatorID)
	assert.True(t, stored.Complete())

	c := stored.Category(model.Category80To100)
	require.NotNil(t, c)
	assert.Equal(t, hostCategoryID(7, model.Category80To100), c.HostCategoryID)
	assert.Equal(t, fieldKey(model.FieldHeight), c.Field(model.FieldHeight).HostFieldKey)
}

func TestAddProject_NothingWrittenOnMiss(t *testing.T) {
	tests := []struct {
		name  string
		form    func() *ProjectForm
		setup   func(f *fixture)
		msg     string
		errText string
	}{
		{
			name:  "no project",
			form:  func() *ProjectForm { return &ProjectForm{} },
			setup: func(*fixture) {},
			msg:   MsgProjectNotFound,
		},
		{
			name: "host project inactive",
			form: func() *ProjectForm { return formFor(7) },
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(&geokey.Project{ID: 7, Status: geokey.StatusInactive}, nil)
			},
			msg: MsgProjectNotFound,
		},
		{
			name: "category missing",
			form: func() *ProjectForm { return formFor(7) },
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
				f.host.On("GetCategory", anyCtx, int64(7), hostCategoryID(7, model.CategoryBelow40)).Return(nil, geokey.ErrNotFound)
			},
			msg: MsgCategoryNotFound,
		},
		{
			name: "field list too short",
			form: func() *ProjectForm {
				form := formFor(7)
				form.Fields[model.FieldResults] = form.Fields[model.FieldResults][:0]
				return form
			},
			setup: func(f *fixture) {
				f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
				cid := hostCategoryID(7, model.CategoryBelow40)
				f.host.On("GetCategory", anyCtx, int64(7), cid).
					Return(&geokey.Category{ID: cid, Status: geokey.StatusActive}, nil)
			},
			msg: MsgFieldNotFound,
		},
		{
			name: "host lock fails",
			form: func() *ProjectForm { return formFor(7) },
			setup: func(f *fixture) {
				expectHostTree(f, 7)
				f.host.On("LockProject", anyCtx, int64(7)).Return(errors.New("host down"))
			},
			errText: "airquality: lock host project 7: host down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.svc.AddProject(context.Background(), admin, tt.form())
			if tt.msg != "" {
				assert.True(t, IsCode(err, CodeInvalid))
				assert.EqualError(t, err, "airquality: "+tt.msg)
			} else {
				assert.False(t, IsCode(err, CodeInvalid))
				assert.ErrorContains(t, err, tt.errText)
			}

			projects, err := f.store.ListProjects(context.Background(), store.ProjectFilter{})
			require.NoError(t, err)
			assert.Empty(t, projects)
		})
	}
}

func TestUpdateProject_Reactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProject(t, f, 7, model.ProjectStatusInactive)
	expectHostTree(f, 7)

	updated, err := f.svc.UpdateProject(ctx, admin, p.ID, formFor(7))
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, updated.Status)
	assert.Equal(t, p.ID, updated.ID)
	assert.True(t, updated.Complete())
	assert.Equal(t, p.Category(model.CategoryBelow40).ID, updated.Category(model.CategoryBelow40).ID)

	_, err = f.svc.UpdateProject(ctx, admin, 999, formFor(7))
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestRemoveProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProject(t, f, 7, model.ProjectStatusActive)

	require.NoError(t, f.svc.RemoveProject(ctx, admin, p.ID))
	err := f.svc.RemoveProject(ctx, admin, p.ID)
	assert.EqualError(t, err, "airquality: "+MsgProjectNotFound)
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedProject(t, f, 7, model.ProjectStatusActive)
	seedProject(t, f, 8, model.ProjectStatusInactive)
	locID := seedLocation(t, f, ann)
	_, err := f.svc.CreateMeasurement(ctx, ann, locID, payload(t, `{"barcode": "A"}`))
	require.NoError(t, err)

	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
	f.host.On("GetProject", anyCtx, int64(8)).Return(nil, geokey.ErrNotFound)

	o, err := f.svc.Overview(ctx, admin)
	require.NoError(t, err)
	require.Len(t, o.Projects, 2)
	assert.Equal(t, "Camden", o.Projects[0].Name)
	assert.Equal(t, "", o.Projects[1].Name)
	assert.Equal(t, 1, o.TotalLocations)
	assert.Equal(t, 1, o.TotalMeasurements)
}

func TestChoices(t *testing.T) {
	f := newFixture(t)
	f.host.On("ListProjects", anyCtx, true).Return([]geokey.Project{*activeHostProject(7, "Camden")}, nil)

	c, err := f.svc.Choices(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, c.Projects, 1)
	require.Len(t, c.CategoryTypes, 5)
	assert.Equal(t, TypeChoice{Value: "1", Label: "<40"}, c.CategoryTypes[0])
	require.Len(t, c.FieldTypes, 10)
	assert.Equal(t, TypeChoice{Value: "results", Label: "01. Results"}, c.FieldTypes[0])
}

func TestGetProjectPage(t *testing.T) {
	f := newFixture(t)
	p := seedProject(t, f, 7, model.ProjectStatusActive)
	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
	f.host.On("ListProjects", anyCtx, true).Return([]geokey.Project{}, nil)

	page, err := f.svc.GetProject(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Camden", page.Project.Name)
	assert.Len(t, page.CategoryTypes, 5)

	_, err = f.svc.GetProject(context.Background(), admin, 999)
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestHostProxies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.host.On("GetProject", anyCtx, int64(7)).Return(activeHostProject(7, "Camden"), nil)
	f.host.On("GetProject", anyCtx, int64(8)).Return(&geokey.Project{ID: 8, Status: geokey.StatusInactive}, nil)
	f.host.On("GetCategory", anyCtx, int64(7), int64(71)).Return(&geokey.Category{ID: 71, Status: geokey.StatusActive}, nil)
	f.host.On("GetCategory", anyCtx, int64(7), int64(72)).Return(&geokey.Category{ID: 72, Status: geokey.StatusDeleted}, nil)

	hp, err := f.svc.HostProject(ctx, admin, 7)
	require.NoError(t, err)
	assert.Equal(t, "Camden", hp.Name)

	_, err = f.svc.HostProject(ctx, admin, 8)
	assert.EqualError(t, err, "airquality: "+MsgProjectNotFound)

	hc, err := f.svc.HostCategory(ctx, admin, 7, 71)
	require.NoError(t, err)
	assert.Equal(t, int64(71), hc.ID)

	_, err = f.svc.HostCategory(ctx, admin, 7, 72)
	assert.EqualError(t, err, "airquality: "+MsgCategoryNotFound)
}
