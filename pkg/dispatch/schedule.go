// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/grizzyclaw/grizzyclaw/pkg/commands"
	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/scheduler"
	"github.com/grizzyclaw/grizzyclaw/pkg/utils"
)

// ScheduleAction executes one SCHEDULE_TASK block. Unlike the other command
// kinds, an unparseable block here is surfaced to the user; scheduling is the
// one place where a silently dropped command loses a future action.
func (d *Dispatcher) ScheduleAction(_ context.Context, raw, userID string) (ExecutionResult, bool) {
	parsed, ok := commands.Decode(raw)
	if !ok || strings.TrimSpace(stringField(parsed, "action", "")) == "" {
		logger.WarnC("dispatch", "schedule command parse failed: "+utils.Truncate(raw, 300))
		return ExecutionResult{
			Display: "**❌ Invalid SCHEDULE_TASK JSON format.**\n\n",
			Failed:  true,
		}, true
	}
	result, err := d.runScheduleAction(parsed, userID)
	if err != nil {
		logger.ErrorC("dispatch", "scheduler action failed: "+err.Error())
		return ExecutionResult{
			Display: "**❌ Scheduler error: " + err.Error() + "**\n\n",
			Failed:  true,
		}, true
	}
	return ExecutionResult{
		Display: "\n\n**⏰ Scheduler**\n" + result + "\n",
	}, true
}

func (d *Dispatcher) runScheduleAction(cmd map[string]interface{}, userID string) (string, error) {
	action := stringField(cmd, "action", "")
	switch action {
	case "create":
		task, _ := cmd["task"].(map[string]interface{})
		name := stringField(task, "name", "Unnamed Task")
		cron := strings.TrimSpace(stringField(task, "cron", ""))
		message := stringField(task, "message", "")
		if cron == "" {
			if expr, ok := scheduler.NaturalToCron(intField(task, "in_minutes"), stringField(task, "at_time", ""), d.now()); ok {
				cron = expr
			}
		}
		if cron == "" {
			return `❌ Cron expression required (or use in_minutes / at_time, e.g. at_time: "15:30")`, nil
		}
		if message == "" {
			return "❌ Task message required", nil
		}
		created, err := d.Scheduler.Schedule(name, cron, message, userID)
		if err != nil {
			return "❌ Failed to schedule task: " + err.Error(), nil
		}
		return fmt.Sprintf("✅ Task scheduled!\n- **ID:** `%s`\n- **Name:** %s\n- **Cron:** `%s`\n- **Next run:** %s",
			created.ID, created.Name, created.Cron, created.NextRun.Format("2006-01-02 15:04")), nil

	case "list":
		stats := d.Scheduler.Stats()
		if len(stats.Tasks) == 0 {
			return "📋 No scheduled tasks.", nil
		}
		lines := []string{"📋 **Scheduled Tasks:**\n"}
		for _, task := range stats.Tasks {
			status := "✅"
			if !task.Enabled {
				status = "❌"
			}
			next := "N/A"
			if !task.NextRun.IsZero() {
				next = task.NextRun.Format("2006-01-02 15:04")
			}
			lines = append(lines, fmt.Sprintf("- %s **%s** (`%s`)", status, task.Name, task.ID))
			lines = append(lines, fmt.Sprintf("  Cron: `%s` | Next: %s | Runs: %d", task.Cron, next, task.RunCount))
		}
		return strings.Join(lines, "\n"), nil

	case "delete":
		id := stringField(cmd, "task_id", "")
		if id == "" {
			return "❌ task_id required for delete", nil
		}
		if d.Scheduler.Unschedule(id) {
			return "✅ Task `" + id + "` deleted", nil
		}
		return "❌ Task `" + id + "` not found", nil

	case "enable":
		id := stringField(cmd, "task_id", "")
		if !d.Scheduler.Enable(id) {
			return "❌ Task `" + id + "` not found", nil
		}
		return "✅ Task `" + id + "` enabled", nil

	case "disable":
		id := stringField(cmd, "task_id", "")
		if !d.Scheduler.Disable(id) {
			return "❌ Task `" + id + "` not found", nil
		}
		return "✅ Task `" + id + "` disabled", nil

	case "edit":
		id := stringField(cmd, "task_id", "")
		if id == "" {
			return "❌ task_id required for edit", nil
		}
		task, _ := cmd["task"].(map[string]interface{})
		if task == nil {
			task = cmd
		}
		name := stringField(task, "name", "")
		cron := strings.TrimSpace(stringField(task, "cron", ""))
		message := stringField(task, "message", "")
		if err := d.Scheduler.Update(id, name, cron, message); err != nil {
			return "❌ " + err.Error(), nil
		}
		return "✅ Task `" + id + "` updated", nil

	default:
		return "❌ Unknown scheduler action: " + action + ". Use: create, list, delete, enable, disable, edit", nil
	}
}

func intField(m map[string]interface{}, key string) *int {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	}
	return nil
}
