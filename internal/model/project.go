package model

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// ProjectStatus represents whether an Air Quality project accepts submissions.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
)

// CategoryType is the severity band code a category is tagged with.
type CategoryType string

const (
	CategoryBelow40  CategoryType = "1"
	Category40To60   CategoryType = "2"
	Category60To80   CategoryType = "3"
	Category80To100  CategoryType = "4"
	CategoryAbove100 CategoryType = "5"
)

const categoryTypeCount = 5

var categoryLabels = map[CategoryType]string{
	CategoryBelow40:  "<40",
	Category40To60:   "40-60",
	Category60To80:   "60-80",
	Category80To100:  "80-100",
	CategoryAbove100: "100+",
}

// Label returns the human readable band, e.g. "40-60".
func (t CategoryType) Label() string {
	return categoryLabels[t]
}

// Index returns the zero-based position of the band (0 for "<40").
func (t CategoryType) Index() int {
	switch t {
	case CategoryBelow40:
		return 0
	case Category40To60:
		return 1
	case Category60To80:
		return 2
	case Category80To100:
		return 3
	case CategoryAbove100:
		return 4
	}
	return -1
}

// Valid reports whether t is one of the five known bands.
func (t CategoryType) Valid() bool {
	_, ok := categoryLabels[t]
	return ok
}

// ParseCategoryType accepts either a band code ("2") or its label ("40-60").
func ParseCategoryType(s string) (CategoryType, error) {
	if t := CategoryType(s); t.Valid() {
		return t, nil
	}
	for t, label := range categoryLabels {
		if label == s {
			return t, nil
		}
	}
	return "", eris.Errorf("model: unknown category type %q", s)
}

// CategoryTypes returns all bands ordered by code.
func CategoryTypes() []CategoryType {
	return []CategoryType{CategoryBelow40, Category40To60, Category60To80, Category80To100, CategoryAbove100}
}

// FieldType is the measurement sheet role a field is tagged with.
type FieldType string

const (
	FieldResults             FieldType = "results"
	FieldDateOut             FieldType = "date_out"
	FieldTimeOut             FieldType = "time_out"
	FieldDateCollected       FieldType = "date_collected"
	FieldTimeCollected       FieldType = "time_collected"
	FieldExposureMin         FieldType = "exposure_min"
	FieldDistanceFromRoad    FieldType = "distance_from_road"
	FieldHeight              FieldType = "height"
	FieldSiteCharacteristics FieldType = "site_characteristics"
	FieldAdditionalDetails   FieldType = "additional_details"
)

var fieldLabels = map[FieldType]string{
	FieldResults:             "01. Results",
	FieldDateOut:             "02. Date out",
	FieldTimeOut:             "03. Time out",
	FieldDateCollected:       "04. Date collected",
	FieldTimeCollected:       "05. Time collected",
	FieldExposureMin:         "06. Exposure time (min)",
	FieldDistanceFromRoad:    "07. Distance from the road",
	FieldHeight:              "08. Height from ground",
	FieldSiteCharacteristics: "09. Site characteristics",
	FieldAdditionalDetails:   "10. Additional details",
}

// Label returns the sheet label, e.g. "01. Results".
func (t FieldType) Label() string {
	return fieldLabels[t]
}

// Valid reports whether t is one of the ten sheet roles.
func (t FieldType) Valid() bool {
	_, ok := fieldLabels[t]
	return ok
}

// ParseFieldType accepts either a role key ("height") or its label.
func ParseFieldType(s string) (FieldType, error) {
	if t := FieldType(s); t.Valid() {
		return t, nil
	}
	for t, label := range fieldLabels {
		if label == s {
			return t, nil
		}
	}
	return "", eris.Errorf("model: unknown field type %q", s)
}

// FieldTypes returns all sheet roles ordered by label.
func FieldTypes() []FieldType {
	types := make([]FieldType, 0, len(fieldLabels))
	for t := range fieldLabels {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].Label() < types[j].Label()
	})
	return types
}

// Project links a host project to Air Quality.
type Project struct {
	ID            int64         `json:"id"`
	Status        ProjectStatus `json:"status"`
	CreatorID     int64         `json:"creator_id"`
	HostProjectID int64         `json:"host_project_id"`
	Created       time.Time     `json:"created"`
	Modified      time.Time     `json:"modified"`
	Categories    []Category    `json:"categories"`
}

// Category returns the project's category for the given band, or nil.
func (p *Project) Category(t CategoryType) *Category {
	for i := range p.Categories {
		if p.Categories[i].Type == t {
			return &p.Categories[i]
		}
	}
	return nil
}

// Complete reports whether every band has a category and every category
// has a field for every sheet role.
func (p *Project) Complete() bool {
	if len(p.Categories) != categoryTypeCount {
		return false
	}
	for _, t := range CategoryTypes() {
		c := p.Category(t)
		if c == nil || len(c.Fields) != len(fieldLabels) {
			return false
		}
		for _, ft := range FieldTypes() {
			if c.Field(ft) == nil {
				return false
			}
		}
	}
	return true
}

// Category links a host category to a severity band of a project.
type Category struct {
	ID             int64        `json:"id"`
	Type           CategoryType `json:"type"`
	HostCategoryID int64        `json:"host_category_id"`
	ProjectID      int64        `json:"project_id"`
	Fields         []Field      `json:"fields"`
}

// Field returns the category's field for the given role, or nil.
func (c *Category) Field(t FieldType) *Field {
	for i := range c.Fields {
		if c.Fields[i].Type == t {
			return &c.Fields[i]
		}
	}
	return nil
}

// Field links a host field to a sheet role of a category.
type Field struct {
	ID           int64     `json:"id"`
	Type         FieldType `json:"type"`
	HostFieldID  int64     `json:"host_field_id"`
	HostFieldKey string    `json:"host_field_key"`
	CategoryID   int64     `json:"category_id"`
}
