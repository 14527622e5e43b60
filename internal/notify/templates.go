package notify

import (
	"bytes"
	"embed"
	"text/template"

	"github.com/rotisserie/eris"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// Template names.
const (
	TemplateProjectNotActive  = "project_not_active.txt"
	TemplateCategoryNotActive = "category_not_active.txt"
	TemplateFieldNotActive    = "field_not_active.txt"
	TemplateReminder          = "measurements_to_be_finished.txt"
)

// NotActiveData fills the project, category and field notices.
type NotActiveData struct {
	Receiver     string
	ProjectName  string
	CategoryName string
	FieldName    string
	Action       string
}

// ReminderItem is one unfinished measurement listed in a reminder.
type ReminderItem struct {
	Barcode  string
	Location string
	Started  string
}

// ReminderData fills the measurements reminder.
type ReminderData struct {
	Receiver   string
	DueIn3Days []ReminderItem
	DueIn1Day  []ReminderItem
	Expired    []ReminderItem
}

// Render executes the named template.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", eris.Wrapf(err, "notify: render %s", name)
	}
	return buf.String(), nil
}
