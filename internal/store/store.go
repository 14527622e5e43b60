package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ProjectFilter specifies criteria for listing projects.
type ProjectFilter struct {
	Status        model.ProjectStatus `json:"status,omitempty"`
	HostProjectID int64               `json:"host_project_id,omitempty"`
}

// LocationFilter specifies criteria for listing locations.
type LocationFilter struct {
	CreatorID int64 `json:"creator_id,omitempty"`
}

// MeasurementFilter specifies criteria for listing measurements. Zero values
// are ignored.
type MeasurementFilter struct {
	CreatorID     int64      `json:"creator_id,omitempty"`
	LocationIDs   []int64    `json:"location_ids,omitempty"`
	Finished      *bool      `json:"finished,omitempty"`
	StartedFrom   *time.Time `json:"started_from,omitempty"`
	StartedBefore *time.Time `json:"started_before,omitempty"`
}

// Store defines the persistence interface for Air Quality records.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	SaveProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	SetProjectStatus(ctx context.Context, id int64, status model.ProjectStatus) error
	DeleteProject(ctx context.Context, id int64) error

	// Categories and fields
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategoriesByHost(ctx context.Context, hostCategoryID int64) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ListFieldsByHost(ctx context.Context, hostFieldID int64) ([]model.Field, error)
	DeleteField(ctx context.Context, id int64) error

	// Locations
	CreateLocation(ctx context.Context, l *model.Location) error
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	ListLocations(ctx context.Context, filter LocationFilter) ([]model.Location, error)
	UpdateLocation(ctx context.Context, l *model.Location) error
	DeleteLocation(ctx context.Context, id int64) error
	CountLocations(ctx context.Context) (int, error)

	// Measurements
	CreateMeasurement(ctx context.Context, m *model.Measurement) error
	GetMeasurement(ctx context.Context, id int64) (*model.Measurement, error)
	ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, error)
	UpdateMeasurement(ctx context.Context, m *model.Measurement) error
	DeleteMeasurement(ctx context.Context, id int64) error
	CountMeasurements(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// attachMeasurements loads the measurements of every location with one
// query and assigns them in started order.
func attachMeasurements(ctx context.Context, s Store, locs []model.Location) error {
	if len(locs) == 0 {
		return nil
	}
	ids := make([]int64, len(locs))
	for i := range locs {
		ids[i] = locs[i].ID
	}
	ms, err := s.ListMeasurements(ctx, MeasurementFilter{LocationIDs: ids})
	if err != nil {
		return err
	}
	byLocation := make(map[int64][]model.Measurement, len(locs))
	for _, m := range ms {
		byLocation[m.LocationID] = append(byLocation[m.LocationID], m)
	}
	for i := range locs {
		locs[i].Measurements = byLocation[locs[i].ID]
		if locs[i].Measurements == nil {
			locs[i].Measurements = []model.Measurement{}
		}
	}
	return nil
}

// attachCategories groups categories and fields into their projects.
func attachCategories(projects []model.Project, cats []model.Category, fields []model.Field) {
	byCategory := make(map[int64][]model.Field)
	for _, f := range fields {
		byCategory[f.CategoryID] = append(byCategory[f.CategoryID], f)
	}
	byProject := make(map[int64][]model.Category)
	for _, c := range cats {
		c.Fields = byCategory[c.ID]
		sort.Slice(c.Fields, func(i, j int) bool {
			return c.Fields[i].Type.Label() < c.Fields[j].Type.Label()
		})
		byProject[c.ProjectID] = append(byProject[c.ProjectID], c)
	}
	for i := range projects {
		projects[i].Categories = byProject[projects[i].ID]
	}
}

func marshalProperties(p model.Properties) ([]byte, error) {
	if p == nil {
		p = model.Properties{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal properties")
	}
	return data, nil
}

func unmarshalProperties(data []byte) (model.Properties, error) {
	p := model.Properties{}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal properties")
	}
	return p, nil
}
