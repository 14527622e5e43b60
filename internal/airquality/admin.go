package airquality

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// AdminProject is an Air Quality project with the name of its host project.
type AdminProject struct {
	model.Project
	Name string `json:"name"`
}

// Overview lists every project with totals.
type Overview struct {
	Projects          []AdminProject `json:"projects"`
	TotalLocations    int            `json:"total_locations"`
	TotalMeasurements int            `json:"total_measurements"`
}

// TypeChoice is a selectable band or sheet role.
type TypeChoice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Choices is what an admin can pick from when linking a project.
type Choices struct {
	Projects      []geokey.Project `json:"projects"`
	CategoryTypes []TypeChoice     `json:"category_types"`
	FieldTypes    []TypeChoice     `json:"field_types"`
}

// ProjectPage is a single project with the choices to re-link it.
type ProjectPage struct {
	Project AdminProject `json:"project"`
	Choices
}

// ProjectForm links a host project, one host category per band and, per
// sheet role, one host field for each band (indexed by band order).
type ProjectForm struct {
	Project    int64                        `json:"project"`
	Categories map[model.CategoryType]int64 `json:"categories"`
	Fields     map[model.FieldType][]int64  `json:"fields"`
}

// ParseProjectForm reads a form keyed by "project", the band codes and the
// sheet role keys. Values that are not numbers are left out and reported
// when the form is resolved.
func ParseProjectForm(values url.Values) *ProjectForm {
	f := &ProjectForm{
		Categories: make(map[model.CategoryType]int64),
		Fields:     make(map[model.FieldType][]int64),
	}
	f.Project, _ = strconv.ParseInt(values.Get("project"), 10, 64)
	for _, ct := range model.CategoryTypes() {
		if id, err := strconv.ParseInt(values.Get(string(ct)), 10, 64); err == nil {
			f.Categories[ct] = id
		}
	}
	for _, ft := range model.FieldTypes() {
		for _, raw := range values[string(ft)] {
			id, _ := strconv.ParseInt(raw, 10, 64)
			f.Fields[ft] = append(f.Fields[ft], id)
		}
	}
	return f
}

func requireSuperuser(user model.User) error {
	if !user.IsSuperuser {
		return forbidden(MsgSuperusersOnly)
	}
	return nil
}

// Overview returns all projects and the number of stored locations and
// measurements.
func (s *Service) Overview(ctx context.Context, user model.User) (*Overview, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}

	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{})
	if err != nil {
		return nil, err
	}
	out := &Overview{Projects: make([]AdminProject, 0, len(projects))}
	for _, p := range projects {
		ap, err := s.adminProject(ctx, p)
		if err != nil {
			return nil, err
		}
		out.Projects = append(out.Projects, *ap)
	}
	if out.TotalLocations, err = s.store.CountLocations(ctx); err != nil {
		return nil, err
	}
	if out.TotalMeasurements, err = s.store.CountMeasurements(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Choices returns the active host projects, the bands and the sheet roles.
func (s *Service) Choices(ctx context.Context, user model.User) (*Choices, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}
	return s.choices(ctx)
}

func (s *Service) choices(ctx context.Context) (*Choices, error) {
	projects, err := s.host.ListProjects(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "airquality: list host projects")
	}

	c := &Choices{Projects: projects}
	for _, ct := range model.CategoryTypes() {
		c.CategoryTypes = append(c.CategoryTypes, TypeChoice{Value: string(ct), Label: ct.Label()})
	}
	for _, ft := range model.FieldTypes() {
		c.FieldTypes = append(c.FieldTypes, TypeChoice{Value: string(ft), Label: ft.Label()})
	}
	return c, nil
}

// AddProject links a host project. Every host record in the form is checked
// and the host project is locked before the project tree is stored in one
// transaction.
func (s *Service) AddProject(ctx context.Context, user model.User, form *ProjectForm) (*model.Project, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}

	p, err := s.resolveForm(ctx, form)
	if err != nil {
		return nil, err
	}
	p.CreatorID = user.ID
	if err := s.host.LockProject(ctx, p.HostProjectID); err != nil {
		return nil, eris.Wrapf(err, "airquality: lock host project %d", p.HostProjectID)
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	zap.L().Info("airquality: project added",
		zap.Int64("project_id", p.ID),
		zap.Int64("host_project_id", p.HostProjectID),
	)
	return p, nil
}

// GetProject returns a project with the choices to re-link it.
func (s *Service) GetProject(ctx context.Context, user model.User, id int64) (*ProjectPage, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, MsgProjectNotFound)
	}
	ap, err := s.adminProject(ctx, *p)
	if err != nil {
		return nil, err
	}
	c, err := s.choices(ctx)
	if err != nil {
		return nil, err
	}
	return &ProjectPage{Project: *ap, Choices: *c}, nil
}

// UpdateProject re-links a project, upserting its categories and fields by
// type, and makes it active again.
func (s *Service) UpdateProject(ctx context.Context, user model.User, id int64, form *ProjectForm) (*model.Project, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}

	existing, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, MsgProjectNotFound)
	}
	p, err := s.resolveForm(ctx, form)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatorID = existing.CreatorID
	p.Created = existing.Created
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, s.mapNotFound(err, MsgProjectNotFound)
	}

	zap.L().Info("airquality: project updated", zap.Int64("project_id", p.ID))
	return s.store.GetProject(ctx, p.ID)
}

// RemoveProject deletes a project with its categories and fields.
func (s *Service) RemoveProject(ctx context.Context, user model.User, id int64) error {
	if err := requireSuperuser(user); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return s.mapNotFound(err, MsgProjectNotFound)
	}
	zap.L().Info("airquality: project removed", zap.Int64("project_id", id))
	return nil
}

// HostProject returns an active host project with its categories.
func (s *Service) HostProject(ctx context.Context, user model.User, id int64) (*geokey.Project, error) {
	if err := requireSuperuser(user); err != nil {
		return nil, err
	}
	hp, err := s.host.GetProject(ctx, id)
	if errors.Is(err, geokey.ErrNotFound) || (err == nil && !hp.Active()) {
		return nil, notFound(MsgProjectNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "airquality: get host project %d", id)
	}
	return hp, nil
}

// HostCategory returns an active category of an active host project.
func (s *Service) HostCategory(ctx context.Context, user model.User, projectID, categoryID int64) (*geokey.Category, error) {
	if _, err := s.HostProject(ctx, user, projectID); err != nil {
		return nil, err
	}
	hc, err := s.host.GetCategory(ctx, projectID, categoryID)
	if errors.Is(err, geokey.ErrNotFound) || (err == nil && !hc.Active()) {
		return nil, notFound(MsgCategoryNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "airquality: get host category %d", categoryID)
	}
	return hc, nil
}

func (s *Service) adminProject(ctx context.Context, p model.Project) (*AdminProject, error) {
	hp, err := s.host.GetProject(ctx, p.HostProjectID)
	if errors.Is(err, geokey.ErrNotFound) {
		return &AdminProject{Project: p}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "airquality: get host project %d", p.HostProjectID)
	}
	return &AdminProject{Project: p, Name: hp.Name}, nil
}

// resolveForm checks every host record the form names and builds the
// active project tree linking them.
func (s *Service) resolveForm(ctx context.Context, form *ProjectForm) (*model.Project, error) {
	if form == nil || form.Project == 0 {
		return nil, invalid(MsgProjectNotFound)
	}

	hp, err := s.host.GetProject(ctx, form.Project)
	if errors.Is(err, geokey.ErrNotFound) || (err == nil && !hp.Active()) {
		return nil, invalid(MsgProjectNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "airquality: get host project %d", form.Project)
	}

	p := &model.Project{Status: model.ProjectStatusActive, HostProjectID: hp.ID}
	for _, ct := range model.CategoryTypes() {
		cid := form.Categories[ct]
		if cid == 0 {
			return nil, invalid(MsgCategoryNotFound)
		}
		hc, err := s.host.GetCategory(ctx, hp.ID, cid)
		if errors.Is(err, geokey.ErrNotFound) || (err == nil && !hc.Active()) {
			return nil, invalid(MsgCategoryNotFound)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "airquality: get host category %d", cid)
		}

		c := model.Category{Type: ct, HostCategoryID: hc.ID}
		idx := ct.Index()
		for _, ft := range model.FieldTypes() {
			ids := form.Fields[ft]
			if len(ids) <= idx || ids[idx] == 0 {
				return nil, invalid(MsgFieldNotFound)
			}
			hf, err := s.host.GetField(ctx, ids[idx])
			if errors.Is(err, geokey.ErrNotFound) || (err == nil && !hf.Active()) {
				return nil, invalid(MsgFieldNotFound)
			}
			if err != nil {
				return nil, eris.Wrapf(err, "airquality: get host field %d", ids[idx])
			}
			c.Fields = append(c.Fields, model.Field{Type: ft, HostFieldID: hf.ID, HostFieldKey: hf.Key})
		}
		p.Categories = append(p.Categories, c)
	}
	return p, nil
}
