package automation

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
)

// Placeholders are written as {{task.title}}; text/template wants {{.task.title}}.
var placeholder = regexp.MustCompile(`\{\{\s*(task|actor)\.`)

func parseTemplate(src string) (*template.Template, error) {
	src = placeholder.ReplaceAllString(src, "{{.$1.")
	return template.New("comment").Option("missingkey=zero").Parse(src)
}

// Render expands a post_comment template for task, written on behalf of actorID.
func Render(src string, task *domain.Task, actorID uuid.UUID) (string, error) {
	tmpl, err := parseTemplate(src)
	if err != nil {
		return "", err
	}
	data := map[string]map[string]string{
		"task": {
			"id":       task.ID.String(),
			"title":    task.Title,
			"stage_id": task.StageID,
			"priority": string(task.Priority),
		},
		"actor": {
			"id": actorID.String(),
		},
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
