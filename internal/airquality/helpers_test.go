package airquality

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey/mocks"
)

var (
	admin = model.User{ID: 1, DisplayName: "Admin", Email: "admin@example.com", IsSuperuser: true}
	ann   = model.User{ID: 4, DisplayName: "Ann", Email: "ann@example.com"}
	bob   = model.User{ID: 5, DisplayName: "Bob", Email: "bob@example.com"}
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *store.SQLiteStore
	host   *mocks.MockClient
	outbox *notify.Outbox
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "airquality.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{
		store:  st,
		host:   mocks.NewMockClient(t),
		outbox: notify.NewOutbox(),
		clock:  clockwork.NewFakeClockAt(testNow),
	}
	f.svc = New(st, f.host, f.outbox, WithClock(f.clock))
	return f
}

func payload(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

// Host ids used by seeded projects: categories are hostProjectID*10+band,
// fields are category*100+role position.
func hostCategoryID(hostProjectID int64, ct model.CategoryType) int64 {
	return hostProjectID*10 + int64(ct.Index()+1)
}

func hostFieldID(hostCategory int64, j int) int64 {
	return hostCategory*100 + int64(j)
}

func fieldKey(ft model.FieldType) string {
	return "key_" + string(ft)
}

func seedProject(t *testing.T, f *fixture, hostProjectID int64, status model.ProjectStatus) *model.Project {
	t.Helper()

	p := &model.Project{Status: status, CreatorID: admin.ID, HostProjectID: hostProjectID}
	for _, ct := range model.CategoryTypes() {
		c := model.Category{Type: ct, HostCategoryID: hostCategoryID(hostProjectID, ct)}
		for j, ft := range model.FieldTypes() {
			c.Fields = append(c.Fields, model.Field{
				Type:         ft,
				HostFieldID:  hostFieldID(c.HostCategoryID, j),
				HostFieldKey: fieldKey(ft),
			})
		}
		p.Categories = append(p.Categories, c)
	}
	require.NoError(t, f.store.CreateProject(context.Background(), p))
	return p
}

func seedLocation(t *testing.T, f *fixture, owner model.User) int64 {
	t.Helper()

	feat, err := f.svc.CreateLocation(context.Background(), owner, payload(t, `{
		"name": "Euston Road",
		"geometry": {"type": "Point", "coordinates": [-0.13, 51.52]},
		"properties": {"height": 2.5, "distance": 10, "characteristics": "Bus stop"}
	}`))
	require.NoError(t, err)
	return feat.ID
}

func activeHostProject(id int64, name string) *geokey.Project {
	return &geokey.Project{ID: id, Name: name, Status: geokey.StatusActive}
}

func hostUser(u model.User) *geokey.User {
	return &geokey.User{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, IsSuperuser: u.IsSuperuser}
}

func formFor(hostProjectID int64) *ProjectForm {
	form := &ProjectForm{
		Project:    hostProjectID,
		Categories: make(map[model.CategoryType]int64),
		Fields:     make(map[model.FieldType][]int64),
	}
	for _, ct := range model.CategoryTypes() {
		form.Categories[ct] = hostCategoryID(hostProjectID, ct)
	}
	for j, ft := range model.FieldTypes() {
		for _, ct := range model.CategoryTypes() {
			form.Fields[ft] = append(form.Fields[ft], hostFieldID(hostCategoryID(hostProjectID, ct), j))
		}
	}
	return form
}

// expectHostTree registers the host lookups made when resolving formFor.
func expectHostTree(f *fixture, hostProjectID int64) {
	f.host.On("GetProject", anyCtx, hostProjectID).Return(activeHostProject(hostProjectID, "Camden"), nil)
	for _, ct := range model.CategoryTypes() {
		cid := hostCategoryID(hostProjectID, ct)
		f.host.On("GetCategory", anyCtx, hostProjectID, cid).
			Return(&geokey.Category{ID: cid, Name: ct.Label(), Status: geokey.StatusActive, ProjectID: hostProjectID}, nil)
		for j, ft := range model.FieldTypes() {
			fid := hostFieldID(cid, j)
			f.host.On("GetField", anyCtx, fid).
				Return(&geokey.Field{ID: fid, Key: fieldKey(ft), Name: fmt.Sprintf("Field %d", fid), Status: geokey.StatusActive}, nil)
		}
	}
}
