// Package automation evaluates per-project workflow rules against committed
// task events and dispatches their actions through an Executor.
package automation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/response"
)

const (
	maxConditions = 20
	maxActions    = 20
)

// ConditionFields lists the task attributes a condition may test.
// custom_fields.<key> is accepted in addition.
var ConditionFields = []string{
	"title", "description", "stage_id", "priority", "approval_status", "color",
	"tags", "assignees", "due_date", "start_date", "parent_task_id", "created_by",
}

// Recipient selectors accepted by emit_notification besides user ids.
const (
	RecipientAssignees     = "assignees"
	RecipientCreator       = "creator"
	RecipientProjectAdmins = "project_admins"
)

// Validator checks rule definitions before they are stored.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("condition_field", func(fl validator.FieldLevel) bool {
		return validConditionField(fl.Field().String())
	})
	v.RegisterStructValidation(conditionLevel, domain.Condition{})
	v.RegisterStructValidation(actionLevel, domain.Action{})
	return &Validator{v: v}
}

func validConditionField(f string) bool {
	if key, ok := strings.CutPrefix(f, "custom_fields."); ok {
		return key != ""
	}
	for _, c := range ConditionFields {
		if c == f {
			return true
		}
	}
	return false
}

func conditionLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(domain.Condition)
	switch c.Op {
	case domain.OpIsNull, domain.OpNotNull, domain.OpChanged:
		return
	case domain.OpIn:
		if _, ok := c.Value.([]interface{}); !ok {
			sl.ReportError(c.Value, "Value", "value", "in_list", "")
		}
	default:
		if c.Value == nil {
			sl.ReportError(c.Value, "Value", "value", "required_for_op", string(c.Op))
		}
	}
}

func actionLevel(sl validator.StructLevel) {
	a := sl.Current().Interface().(domain.Action)
	switch a.Type {
	case domain.ActionSetField:
		if a.Field == "" {
			sl.ReportError(a.Field, "Field", "field", "required_for_set_field", "")
		}
		if a.Value == nil && a.Field != "color" {
			sl.ReportError(a.Value, "Value", "value", "required_for_set_field", "")
		}
		if a.Field == "assignee" {
			if s, ok := a.Value.(string); !ok || uuid.Validate(s) != nil {
				sl.ReportError(a.Value, "Value", "value", "uuid", "")
			}
		}
	case domain.ActionAssign, domain.ActionUnassign:
		if a.UserID == nil || *a.UserID == uuid.Nil {
			sl.ReportError(a.UserID, "UserID", "user_id", "required", "")
		}
	case domain.ActionCreateSubtask:
		if strings.TrimSpace(a.Title) == "" {
			sl.ReportError(a.Title, "Title", "title", "required", "")
		}
	case domain.ActionPostComment:
		if strings.TrimSpace(a.Template) == "" {
			sl.ReportError(a.Template, "Template", "template", "required", "")
		} else if _, err := parseTemplate(a.Template); err != nil {
			sl.ReportError(a.Template, "Template", "template", "template", "")
		}
	case domain.ActionEmitNotification:
		if len(a.Recipients) == 0 {
			sl.ReportError(a.Recipients, "Recipients", "recipients", "required", "")
		}
		for _, r := range a.Recipients {
			if !validRecipient(r) {
				sl.ReportError(a.Recipients, "Recipients", "recipients", "recipient", r)
			}
		}
		if strings.TrimSpace(a.Text) == "" {
			sl.ReportError(a.Text, "Text", "text", "required", "")
		}
	case domain.ActionSlackNotify:
		if strings.TrimSpace(a.Event) == "" {
			sl.ReportError(a.Event, "Event", "event", "required", "")
		}
	}
}

func validRecipient(r string) bool {
	switch r {
	case RecipientAssignees, RecipientCreator, RecipientProjectAdmins:
		return true
	}
	return uuid.Validate(r) == nil
}

// ValidateRule rejects unknown triggers, ops and action kinds with an Invalid error.
func (v *Validator) ValidateRule(rule *domain.WorkflowRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return response.NewValidationError("rule name is required", "")
	}
	if !rule.Trigger.Valid() {
		return response.NewValidationError("unknown trigger", string(rule.Trigger))
	}
	if len(rule.Actions) == 0 {
		return response.NewValidationError("a rule needs at least one action", "")
	}
	if len(rule.Conditions) > maxConditions || len(rule.Actions) > maxActions {
		return response.NewValidationError("too many conditions or actions", "")
	}
	for i, c := range rule.Conditions {
		if err := v.v.Struct(c); err != nil {
			return response.NewValidationError(fmt.Sprintf("invalid condition %d", i), describe(err))
		}
	}
	for i, a := range rule.Actions {
		if err := v.v.Struct(a); err != nil {
			return response.NewValidationError(fmt.Sprintf("invalid action %d", i), describe(err))
		}
	}
	return nil
}

// ValidateStages checks a project workflow: at least one stage, unique ids.
func (v *Validator) ValidateStages(stages domain.Stages) error {
	if len(stages) == 0 {
		return response.NewValidationError("a workflow needs at least one stage", "")
	}
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if err := v.v.Struct(s); err != nil {
			return response.NewValidationError(fmt.Sprintf("invalid stage %d", i), describe(err))
		}
		if seen[s.ID] {
			return response.NewValidationError("duplicate stage id", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
