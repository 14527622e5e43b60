package airquality

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/model"
	"github.com/mappingforchange/geokey-airquality/internal/notify"
	"github.com/mappingforchange/geokey-airquality/internal/store"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// Actions reported to project creators.
const (
	ActionMadeInactive = "made inactive"
	ActionDeleted      = "deleted"
)

// HostEvent describes a host project, category or field that was saved or
// deleted. Names are carried along since a deleted record cannot be looked
// up any more.
type HostEvent struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	ProjectName  string `json:"project_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
}

func savedAction(status string) (string, bool) {
	switch status {
	case geokey.StatusActive:
		return "", false
	case geokey.StatusInactive:
		return ActionMadeInactive, true
	}
	return ActionDeleted, true
}

// HostProjectSaved removes the Air Quality projects of a host project that
// is no longer active. It returns how many were removed.
func (s *Service) HostProjectSaved(ctx context.Context, ev HostEvent) (int, error) {
	action, ok := savedAction(ev.Status)
	if !ok {
		return 0, nil
	}
	return s.removeHostProject(ctx, ev, action)
}

// HostProjectDeleted removes the Air Quality projects of a deleted host
// project.
func (s *Service) HostProjectDeleted(ctx context.Context, ev HostEvent) (int, error) {
	return s.removeHostProject(ctx, ev, ActionDeleted)
}

func (s *Service) removeHostProject(ctx context.Context, ev HostEvent, action string) (int, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{HostProjectID: ev.ID})
	if err != nil {
		return 0, err
	}

	var msgs []notify.Message
	for _, p := range projects {
		if err := s.store.DeleteProject(ctx, p.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		msg, err := s.notice(ctx, p.CreatorID, notify.TemplateProjectNotActive,
			fmt.Sprintf("Project %s %s", ev.Name, action),
			notify.NotActiveData{ProjectName: ev.Name, Action: action})
		if err != nil {
			return 0, err
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}
	return len(projects), s.finishLifecycle(ctx, "project", action, ev, len(projects), msgs)
}

// HostCategorySaved unlinks a host category that is no longer active and
// deactivates its projects.
func (s *Service) HostCategorySaved(ctx context.Context, ev HostEvent) (int, error) {
	if ev.Status == geokey.StatusActive {
		return 0, nil
	}
	return s.removeHostCategory(ctx, ev, ActionMadeInactive)
}

// HostCategoryDeleted unlinks a deleted host category and deactivates its
// projects.
func (s *Service) HostCategoryDeleted(ctx context.Context, ev HostEvent) (int, error) {
	return s.removeHostCategory(ctx, ev, ActionDeleted)
}

func (s *Service) removeHostCategory(ctx context.Context, ev HostEvent, action string) (int, error) {
	cats, err := s.store.ListCategoriesByHost(ctx, ev.ID)
	if err != nil {
		return 0, err
	}

	var msgs []notify.Message
	for _, c := range cats {
		p, err := s.deactivate(ctx, c.ProjectID)
		if err != nil {
			return 0, err
		}
		if err := s.store.DeleteCategory(ctx, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		if p == nil {
			continue
		}
		msg, err := s.notice(ctx, p.CreatorID, notify.TemplateCategoryNotActive,
			fmt.Sprintf("Category %s %s", ev.Name, action),
			notify.NotActiveData{ProjectName: ev.ProjectName, CategoryName: ev.Name, Action: action})
		if err != nil {
			return 0, err
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}
	return len(cats), s.finishLifecycle(ctx, "category", action, ev, len(cats), msgs)
}

// HostFieldSaved unlinks a host field that is no longer active and
// deactivates its projects.
func (s *Service) HostFieldSaved(ctx context.Context, ev HostEvent) (int, error) {
	if ev.Status == geokey.StatusActive {
		return 0, nil
	}
	return s.removeHostField(ctx, ev, ActionMadeInactive)
}

// HostFieldDeleted unlinks a deleted host field and deactivates its
// projects.
func (s *Service) HostFieldDeleted(ctx context.Context, ev HostEvent) (int, error) {
	return s.removeHostField(ctx, ev, ActionDeleted)
}

func (s *Service) removeHostField(ctx context.Context, ev HostEvent, action string) (int, error) {
	fields, err := s.store.ListFieldsByHost(ctx, ev.ID)
	if err != nil {
		return 0, err
	}

	var msgs []notify.Message
	for _, f := range fields {
		c, err := s.store.GetCategory(ctx, f.CategoryID)
		if err != nil {
			return 0, err
		}
		p, err := s.deactivate(ctx, c.ProjectID)
		if err != nil {
			return 0, err
		}
		if err := s.store.DeleteField(ctx, f.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		if p == nil {
			continue
		}
		msg, err := s.notice(ctx, p.CreatorID, notify.TemplateFieldNotActive,
			fmt.Sprintf("Field %s %s", ev.Name, action),
			notify.NotActiveData{
				ProjectName:  ev.ProjectName,
				CategoryName: ev.CategoryName,
				FieldName:    ev.Name,
				Action:       action,
			})
		if err != nil {
			return 0, err
		}
		if msg != nil {
			msgs = append(msgs, *msg)
		}
	}
	return len(fields), s.finishLifecycle(ctx, "field", action, ev, len(fields), msgs)
}

// deactivate marks a project inactive and returns it, or nil when it is gone.
func (s *Service) deactivate(ctx context.Context, projectID int64) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProjectStatus(ctx, p.ID, model.ProjectStatusInactive); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatusInactive
	return p, nil
}

// notice renders an email to a project creator. Creators the host no longer
// knows, or without an email address, get nothing.
func (s *Service) notice(ctx context.Context, creatorID int64, tmpl, subject string, data notify.NotActiveData) (*notify.Message, error) {
	u, err := s.host.GetUser(ctx, creatorID)
	if errors.Is(err, geokey.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "airquality: get user %d", creatorID)
	}
	if u.Email == "" {
		return nil, nil
	}

	data.Receiver = u.DisplayName
	body, err := notify.Render(tmpl, data)
	if err != nil {
		return nil, err
	}
	msg := notify.NewMessage(u.Email, subject, body)
	return &msg, nil
}

func (s *Service) finishLifecycle(ctx context.Context, kind, action string, ev HostEvent, n int, msgs []notify.Message) error {
	s.metrics.LifecycleEvents.WithLabelValues(kind, action).Inc()
	if n > 0 {
		zap.L().Info("airquality: host change handled",
			zap.String("kind", kind),
			zap.Int64("host_id", ev.ID),
			zap.String("action", action),
			zap.Int("records", n),
		)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := s.mailer.Send(ctx, msgs...); err != nil {
		return eris.Wrapf(err, "airquality: notify %s %s", kind, action)
	}
	s.metrics.EmailsSent.WithLabelValues("lifecycle").Add(float64(len(msgs)))
	return nil
}
