package geokey

import "encoding/json"

// Status values used by host projects, categories and fields.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

// Project is a host project with its categories.
type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	IsLocked    bool       `json:"islocked"`
	CreatorID   int64      `json:"creator_id"`
	Categories  []Category `json:"categories,omitempty"`
}

// Active reports whether the project accepts contributions.
func (p *Project) Active() bool { return p.Status == StatusActive }

// Category is a host category with its fields.
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	ProjectID   int64   `json:"project_id"`
	Fields      []Field `json:"fields,omitempty"`
}

// Active reports whether the category is active.
func (c *Category) Active() bool { return c.Status == StatusActive }

// Field is a host category field. Key names the contribution property.
type Field struct {
	ID         int64  `json:"id"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	Type       string `json:"fieldtype"`
	Status     string `json:"status"`
	CategoryID int64  `json:"category_id"`
}

// Active reports whether the field is active.
func (f *Field) Active() bool { return f.Status == StatusActive }

// User is a host user.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Contribution is a GeoJSON-like observation submitted to a host project.
type Contribution struct {
	Type       string            `json:"type"`
	Meta       ContributionMeta  `json:"meta"`
	Location   ContributionPlace `json:"location"`
	Properties map[string]string `json:"properties"`
}

// ContributionMeta carries the status and category of a contribution.
type ContributionMeta struct {
	Status   string `json:"status"`
	Category int64  `json:"category"`
}

// ContributionPlace carries the contribution's GeoJSON geometry.
type ContributionPlace struct {
	Geometry json.RawMessage `json:"geometry"`
}

// Created is the host's answer to a contribution.
type Created struct {
	ID int64 `json:"id"`
}
