// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package agent

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/mcp"
	"github.com/grizzyclaw/grizzyclaw/pkg/memory"
	"github.com/grizzyclaw/grizzyclaw/pkg/providers"
	"github.com/grizzyclaw/grizzyclaw/pkg/session"
)

const (
	toolExamplesPerServer = 8
	toolExamplesTotal     = 30
	toolDescMaxChars      = 200
)

// PromptBuilder assembles the system prompt and the message list for one
// turn: identity, command grammar instructions, discovered MCP tools, and
// recalled memory.
type PromptBuilder struct {
	workspace   string
	recallLimit int
}

func NewPromptBuilder(workspace string, recallLimit int) *PromptBuilder {
	if recallLimit <= 0 {
		recallLimit = 10
	}
	return &PromptBuilder{workspace: workspace, recallLimit: recallLimit}
}

func (pb *PromptBuilder) identity() string {
	rt := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
	return fmt.Sprintf(`# GrizzyClaw 🐻

You are GrizzyClaw, a helpful personal AI assistant.

## Runtime
%s

## Workspace
Your workspace is at: %s`, rt, pb.workspace)
}

func memorySection() string {
	return `## MEMORY CAPABILITIES

You have PERSISTENT MEMORY. You can explicitly save important information the user wants you to remember.

To save something to memory, use this exact format anywhere in your response:
MEMORY_SAVE = { "content": "the information to remember", "category": "category_name" }

Categories: preferences, facts, tasks, notes, reminders, general

Examples:
- User says "Remember my favorite color is blue" -> MEMORY_SAVE = { "content": "User's favorite color is blue", "category": "preferences" }
- User says "My birthday is March 15" -> MEMORY_SAVE = { "content": "User's birthday is March 15", "category": "facts" }

When users ask you to remember/save something, ALWAYS use MEMORY_SAVE. You CAN save to persistent memory.
After saving, confirm what you saved.

You also have access to memories from previous conversations shown below (if any).`
}

func browserSection() string {
	return `## BROWSER AUTOMATION

You can control a web browser to browse pages, take screenshots, extract content, fill forms, and click elements.

Use this format:
BROWSER_ACTION = { "action": "action_name", "params": { ... } }

Available actions:
- navigate: { "url": "https://example.com" } - Go to a URL
- screenshot: { "full_page": true/false } - Take screenshot
- get_text: { "selector": "body" } - Get text from element (default: body)
- get_links: {} - Get all links on page
- click: { "selector": "button.submit" } - Click an element
- fill: { "selector": "input#email", "value": "text" } - Fill form field
- scroll: { "direction": "down", "amount": 500 } - Scroll page

Examples:
- "Go to google.com" -> BROWSER_ACTION = { "action": "navigate", "params": { "url": "https://google.com" } }
- "Take a screenshot" -> BROWSER_ACTION = { "action": "screenshot", "params": { "full_page": false } }
- "What's on this page?" -> BROWSER_ACTION = { "action": "get_text", "params": { "selector": "body" } }`
}

func scheduleSection() string {
	return `## SCHEDULED TASKS

You can schedule tasks to run automatically at specific times using cron expressions.

Use this format:
SCHEDULE_TASK = { "action": "create/list/delete", "task": { ... } }

To create a task:
SCHEDULE_TASK = { "action": "create", "task": { "name": "Task Name", "cron": "0 9 * * *", "message": "What to do" } }

Cron format: minute hour day month weekday
- "0 9 * * *" = Every day at 9 AM
- "*/30 * * * *" = Every 30 minutes
- "0 0 * * 1" = Every Monday at midnight

To list tasks:
SCHEDULE_TASK = { "action": "list" }

To delete a task:
SCHEDULE_TASK = { "action": "delete", "task_id": "task-id-here" }

Examples:
- "Remind me to check email every morning at 9" -> SCHEDULE_TASK = { "action": "create", "task": { "name": "Check Email Reminder", "cron": "0 9 * * *", "message": "Time to check your email!" } }
- "Remind me in 5 minutes" -> SCHEDULE_TASK = { "action": "create", "task": { "name": "Reminder", "in_minutes": 5, "message": "..." } }
- "Remind me at 15:30" -> SCHEDULE_TASK = { "action": "create", "task": { "name": "Reminder", "at_time": "15:30", "message": "..." } }
- To edit a task use SCHEDULE_TASK = { "action": "edit", "task_id": "task_xxx", "task": { "cron": "...", "message": "..." } }
- "What tasks do I have scheduled?" -> SCHEDULE_TASK = { "action": "list" }`
}

// toolsSection lists discovered MCP tools with their exact names so the
// model emits calls that resolve. When discovery came back empty a static
// fallback block keeps the grammar usable.
func toolsSection(tools map[string][]mcp.ToolInfo, now time.Time) string {
	var b strings.Builder

	b.WriteString("Current date: " + now.Format("2006-01-02") + ". Use this date, do NOT use a placeholder or past date.\n\n")
	b.WriteString("## USING MCP TOOLS\n\n")
	b.WriteString("MCP servers provide tools. Use this exact format:\n\n")
	b.WriteString(`TOOL_CALL = { "mcp": "server_name", "tool": "tool_name", "arguments": { "param": "value" } }` + "\n\n")

	servers := make([]string, 0, len(tools))
	for name := range tools {
		servers = append(servers, name)
	}
	sort.Strings(servers)

	var examples []string
	for _, srv := range servers {
		list := tools[srv]
		if len(list) > toolExamplesPerServer {
			list = list[:toolExamplesPerServer]
		}
		for _, t := range list {
			desc := t.Description
			if len(desc) > toolDescMaxChars {
				desc = desc[:toolDescMaxChars] + "..."
			}
			examples = append(examples, fmt.Sprintf("- %s: tool '%s' - %s", srv, t.Name, desc))
		}
	}
	if len(examples) > toolExamplesTotal {
		examples = examples[:toolExamplesTotal]
	}

	b.WriteString("Discovered tools (use these exact names):\n\n")
	if len(examples) > 0 {
		b.WriteString(strings.Join(examples, "\n"))
	} else {
		b.WriteString("- ddg-search: tool 'search' - web search")
	}
	b.WriteString("\n\n")

	b.WriteString("When users ask to search the web/internet, use ddg-search with tool 'search' if available. The agent executes tools and returns real results.\n")
	b.WriteString("CRITICAL: Describing an action in text does NOT execute it. You MUST output TOOL_CALL = { ... } to run tools. Never say you will do something without outputting the actual TOOL_CALL.\n")
	b.WriteString("When using TOOL_CALL, write a brief intro first (e.g. 'Let me search for that.') then output the TOOL_CALL on the same or next line.\n")
	b.WriteString("When you receive tool results in a follow-up message, use them to continue your response. Do NOT repeat the TOOL_CALL - the tools have already been executed.")

	return b.String()
}

// BuildSystemPrompt joins the identity and command-grammar sections.
func (pb *PromptBuilder) BuildSystemPrompt(tools map[string][]mcp.ToolInfo, now time.Time) string {
	parts := []string{
		pb.identity(),
		memorySection(),
		browserSection(),
		scheduleSection(),
		toolsSection(tools, now),
	}
	return strings.Join(parts, "\n\n")
}

// BuildRecall queries the memory store for context relevant to the user
// message plus a short recent slice for personalization. Lookup failures
// degrade to an empty recall block.
func (pb *PromptBuilder) BuildRecall(ctx context.Context, store memory.Store, userMessage string) string {
	if store == nil {
		return ""
	}
	var b strings.Builder

	relevant, err := store.Search(ctx, userMessage, pb.recallLimit)
	if err != nil {
		logger.WarnC("agent", "memory recall failed: "+err.Error())
	}
	if len(relevant) > 0 {
		b.WriteString("Relevant context from previous conversations:\n")
		for _, item := range relevant {
			b.WriteString("- " + item.Content + "\n")
		}
	}

	knownLimit := pb.recallLimit
	if knownLimit > 10 {
		knownLimit = 10
	}
	known, err := store.Recent(ctx, knownLimit)
	if err != nil {
		logger.WarnC("agent", "memory recent lookup failed: "+err.Error())
	}
	if len(known) > 0 {
		b.WriteString("\nKnown about the user (preferences/facts):\n")
		for _, item := range known {
			b.WriteString("- " + item.Content + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildMessages assembles the provider message list: system prompt (with
// recall appended), persisted history, then the current user message.
func (pb *PromptBuilder) BuildMessages(systemPrompt, recall string, history []session.Message, userMessage string) []providers.Message {
	system := systemPrompt
	if strings.TrimSpace(recall) != "" {
		system += "\n\n" + recall
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Text()})
	}
	if strings.TrimSpace(userMessage) != "" {
		messages = append(messages, providers.Message{Role: "user", Content: userMessage})
	}
	return messages
}
