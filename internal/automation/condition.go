package automation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
)

// Snapshot is the flattened view of a task that conditions read.
// Scalars are strings, numbers or times; tags and assignees are []string;
// absent values are nil.
type Snapshot map[string]interface{}

// TakeSnapshot flattens task and its assignees. A nil task yields nil.
func TakeSnapshot(task *domain.Task, assignees []uuid.UUID) Snapshot {
	if task == nil {
		return nil
	}
	s := Snapshot{
		"title":           task.Title,
		"description":     task.Description,
		"stage_id":        task.StageID,
		"priority":        string(task.Priority),
		"approval_status": string(task.ApprovalStatus),
		"created_by":      task.CreatedBy.String(),
		"color":           nil,
		"due_date":        nil,
		"start_date":      nil,
		"parent_task_id":  nil,
	}
	if task.Color != nil {
		s["color"] = *task.Color
	}
	if task.DueDate != nil {
		s["due_date"] = *task.DueDate
	}
	if task.StartDate != nil {
		s["start_date"] = *task.StartDate
	}
	if task.ParentTaskID != nil {
		s["parent_task_id"] = task.ParentTaskID.String()
	}

	tags := append([]string{}, task.Tags...)
	sort.Strings(tags)
	s["tags"] = tags

	ids := make([]string, 0, len(assignees))
	for _, id := range assignees {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	s["assignees"] = ids

	for k, v := range task.CustomFields {
		s["custom_fields."+k] = v
	}
	return s
}

// Match reports whether every condition holds for ev. An empty list matches.
func Match(conds []domain.Condition, ev event.Event) bool {
	after := TakeSnapshot(ev.After, ev.Assignees)
	before := TakeSnapshot(ev.Before, ev.BeforeAssignees)
	for _, c := range conds {
		if !evaluate(c, before, after) {
			return false
		}
	}
	return true
}

func evaluate(c domain.Condition, before, after Snapshot) bool {
	if after == nil {
		return false
	}
	got := after[c.Field]
	switch c.Op {
	case domain.OpEq:
		return equal(c.Field, got, c.Value)
	case domain.OpNeq:
		return !equal(c.Field, got, c.Value)
	case domain.OpIn:
		list, _ := c.Value.([]interface{})
		for _, want := range list {
			if equal(c.Field, got, want) || listHas(got, want) {
				return true
			}
		}
		return false
	case domain.OpContains:
		if list, ok := got.([]string); ok {
			return listHas(list, c.Value)
		}
		str, ok := got.(string)
		return ok && strings.Contains(strings.ToLower(str), strings.ToLower(fmt.Sprint(c.Value)))
	case domain.OpGt:
		cmp, ok := compare(c.Field, got, c.Value)
		return ok && cmp > 0
	case domain.OpLt:
		cmp, ok := compare(c.Field, got, c.Value)
		return ok && cmp < 0
	case domain.OpIsNull:
		return isNull(got)
	case domain.OpNotNull:
		return !isNull(got)
	case domain.OpChanged:
		return before != nil && !same(before[c.Field], got)
	case domain.OpChangedTo:
		return before != nil && !same(before[c.Field], got) && equal(c.Field, got, c.Value)
	}
	return false
}

func isNull(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	}
	return false
}

func same(a, b interface{}) bool {
	if la, ok := a.([]string); ok {
		lb, ok := b.([]string)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if la[i] != lb[i] {
				return false
			}
		}
		return true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func equal(field string, got, want interface{}) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	if _, isList := got.([]string); isList {
		return false
	}
	if cmp, ok := compare(field, got, want); ok {
		return cmp == 0
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func listHas(got, want interface{}) bool {
	list, ok := got.([]string)
	if !ok {
		return false
	}
	w := fmt.Sprint(want)
	for _, v := range list {
		if v == w {
			return true
		}
	}
	return false
}

// compare orders got against want: priorities by rank, times chronologically,
// numbers numerically. ok is false when the values are not comparable.
func compare(field string, got, want interface{}) (int, bool) {
	if field == "priority" {
		g, w := domain.Priority(fmt.Sprint(got)), domain.Priority(fmt.Sprint(want))
		if !g.Valid() || !w.Valid() {
			return 0, false
		}
		return g.Rank() - w.Rank(), true
	}
	if gt, ok := got.(time.Time); ok {
		wt, ok := parseTime(want)
		if !ok {
			return 0, false
		}
		return gt.Compare(wt), true
	}
	g, gok := number(got)
	w, wok := number(want)
	if !gok || !wok {
		return 0, false
	}
	switch {
	case g < w:
		return -1, true
	case g > w:
		return 1, true
	}
	return 0, true
}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
