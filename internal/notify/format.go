package notify

import (
	"fmt"
	"strings"

	"project-workspace-api/internal/client"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
)

const excerptLen = 280

func section(text string) client.Block {
	return client.Block{Type: "section", Text: &client.TextObject{Type: "mrkdwn", Text: text}}
}

func contextBlock(parts ...string) client.Block {
	els := make([]client.TextObject, 0, len(parts))
	for _, p := range parts {
		els = append(els, client.TextObject{Type: "mrkdwn", Text: p})
	}
	return client.Block{Type: "context", Elements: els}
}

func fields(pairs ...string) client.Block {
	b := client.Block{Type: "section"}
	for i := 0; i+1 < len(pairs); i += 2 {
		b.Fields = append(b.Fields, client.TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", pairs[i], pairs[i+1])})
	}
	return b
}

func stageName(p *domain.Project, id string) string {
	if p != nil {
		if s, ok := p.Stages().Find(id); ok {
			return s.Name
		}
	}
	return id
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > excerptLen {
		return string(r[:excerptLen]) + "…"
	}
	return s
}

// slackTrigger is the integration flag that governs ev.
func slackTrigger(ev event.Event) domain.Trigger {
	if ev.EnteredPending {
		return domain.TriggerTaskApproved
	}
	return ev.Trigger
}

// Message formats the Slack message for ev. ok is false for events that are never posted.
func Message(ev event.Event, p *domain.Project, link string) (msg client.SlackMessage, ok bool) {
	t := ev.After
	if t == nil {
		return msg, false
	}
	title := fmt.Sprintf("<%s|%s>", link, t.Title)
	projectName := ""
	if p != nil {
		projectName = p.Name
	}

	switch {
	case ev.EnteredPending:
		msg.Text = fmt.Sprintf("Approval requested: %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":hourglass_flowing_sand: *Approval requested*\n%s", title)),
			fields("Project", projectName, "Stage", stageName(p, t.StageID)),
		}
	case ev.Trigger == domain.TriggerTaskApproved:
		msg.Text = fmt.Sprintf("Task approved: %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":white_check_mark: *Task approved*\n%s", title)),
			fields("Project", projectName, "Approved by", fmt.Sprintf("`%s`", ev.ActorID)),
		}
	case ev.Trigger == domain.TriggerTaskRejected:
		reason := ""
		if t.RejectionReason != nil {
			reason = excerpt(*t.RejectionReason)
		}
		msg.Text = fmt.Sprintf("Task rejected: %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":x: *Task rejected*\n%s", title)),
			fields("Reason", reason, "Returned to", stageName(p, t.StageID)),
		}
	case ev.Trigger == domain.TriggerTaskCreated:
		msg.Text = fmt.Sprintf("New task: %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":new: *New task*\n%s", title)),
			fields("Stage", stageName(p, t.StageID), "Priority", string(t.Priority)),
		}
	case ev.Trigger == domain.TriggerStatusChanged:
		from := ""
		if ev.Before != nil {
			from = stageName(p, ev.Before.StageID)
		}
		msg.Text = fmt.Sprintf("%s moved to %s", t.Title, stageName(p, t.StageID))
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":arrow_right: %s\n%s → *%s*", title, from, stageName(p, t.StageID))),
		}
	case ev.Trigger == domain.TriggerTaskAssigned:
		who := ""
		if ev.AssigneeID != nil {
			who = ev.AssigneeID.String()
		}
		msg.Text = fmt.Sprintf("%s was assigned", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":bust_in_silhouette: %s\nassigned to `%s`", title, who)),
		}
	case ev.Trigger == domain.TriggerCommentAdded && ev.Comment != nil:
		msg.Text = fmt.Sprintf("New comment on %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":speech_balloon: New comment on %s", title)),
			section("> " + strings.ReplaceAll(excerpt(ev.Comment.Content), "\n", "\n> ")),
		}
	case ev.Trigger == domain.TriggerDueSoon:
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format("Mon Jan 2 15:04 MST")
		}
		msg.Text = fmt.Sprintf("Due soon: %s", t.Title)
		msg.Blocks = []client.Block{
			section(fmt.Sprintf(":alarm_clock: *Due soon*\n%s", title)),
			fields("Due", due, "Stage", stageName(p, t.StageID)),
		}
	default:
		return msg, false
	}
	msg.Blocks = append(msg.Blocks, contextBlock(projectName))
	return msg, true
}

// CustomMessage formats a message requested by an automation rule.
func CustomMessage(t *domain.Task, p *domain.Project, link, label string) client.SlackMessage {
	projectName := ""
	if p != nil {
		projectName = p.Name
	}
	return client.SlackMessage{
		Text: fmt.Sprintf("%s: %s", label, t.Title),
		Blocks: []client.Block{
			section(fmt.Sprintf(":robot_face: *%s*\n<%s|%s>", label, link, t.Title)),
			fields("Stage", stageName(p, t.StageID), "Priority", string(t.Priority)),
			contextBlock(projectName),
		},
	}
}
