// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

// Package dispatch executes the command blocks a model emits: TOOL_CALL,
// MEMORY_SAVE, BROWSER_ACTION and SCHEDULE_TASK. Each dispatch produces
// display text for the user and, for tool calls, feedback text fed back into
// the model's context.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/browser"
	"github.com/grizzyclaw/grizzyclaw/pkg/commands"
	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/memory"
	"github.com/grizzyclaw/grizzyclaw/pkg/metrics"
	"github.com/grizzyclaw/grizzyclaw/pkg/scheduler"
	"github.com/grizzyclaw/grizzyclaw/pkg/search"
	"github.com/grizzyclaw/grizzyclaw/pkg/utils"
)

const toolResultMaxChars = 4000

// ToolCaller invokes a tool on a named MCP server.
type ToolCaller interface {
	CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (string, error)
}

// ExecutionResult carries the two outputs of one dispatched command. Display
// streams to the user; Feedback goes back into the model's context. Failed
// marks results the loop should flag when building the feedback message.
type ExecutionResult struct {
	Display  string
	Feedback string
	Failed   bool
}

// Dispatcher routes parsed command blocks to their collaborators.
type Dispatcher struct {
	Tools     ToolCaller
	Memory    memory.Store
	Browser   browser.Controller
	Scheduler *scheduler.Scheduler
	Metrics   metrics.Collector

	now func() time.Time
}

func New(tools ToolCaller, mem memory.Store, ctrl browser.Controller, sched *scheduler.Scheduler, collector metrics.Collector) *Dispatcher {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Dispatcher{
		Tools:     tools,
		Memory:    mem,
		Browser:   ctrl,
		Scheduler: sched,
		Metrics:   collector,
		now:       time.Now,
	}
}

// ToolCall executes one TOOL_CALL block. Unparseable blocks are skipped
// silently (ok=false); execution errors come back as a visible inline error
// plus feedback so the model can self-correct.
func (d *Dispatcher) ToolCall(ctx context.Context, raw string) (ExecutionResult, bool) {
	parsed, ok := commands.DecodeExtended(raw)
	if !ok {
		return ExecutionResult{}, false
	}
	server := stringField(parsed, "mcp", "unknown")
	tool := stringField(parsed, "tool", "unknown")
	args := cleanArgs(parsed["arguments"])

	// ddg-search queries get typo correction and filler stripping before the
	// call, and a simplified retry when the engine comes back empty.
	if server == "ddg-search" && tool == "search" {
		if q, ok := args["query"].(string); ok && q != "" {
			args["query"] = search.SimplifyQuery(search.CorrectQuery(q))
		}
	}

	start := d.now()
	result, err := d.Tools.CallTool(ctx, server, tool, args)
	d.Metrics.CountToolCall(server, tool, err != nil)
	if err != nil {
		logger.WarnCF("dispatch", "tool call failed", map[string]interface{}{
			"server":      server,
			"tool":        tool,
			"duration_ms": d.now().Sub(start).Milliseconds(),
			"error":       err.Error(),
		})
		return ExecutionResult{
			Display:  "**❌ Tool error: " + err.Error() + "**\n\n",
			Feedback: "[Tool error]\n" + err.Error(),
			Failed:   true,
		}, true
	}
	logger.InfoCF("dispatch", "tool call ok", map[string]interface{}{
		"server":      server,
		"tool":        tool,
		"duration_ms": d.now().Sub(start).Milliseconds(),
	})

	if server == "ddg-search" && tool == "search" {
		if q, _ := args["query"].(string); len(q) > 25 && noResults(result) {
			if alt := search.SimplifyQueryRetry(q); alt != q {
				if retried, retryErr := d.Tools.CallTool(ctx, server, tool, map[string]interface{}{"query": alt}); retryErr == nil {
					result = retried
				}
			}
		}
	}

	return ExecutionResult{
		Display:  "\n\n**🔧 " + server + "." + tool + "**\n" + result + "\n",
		Feedback: "[Tool result " + server + "." + tool + "]\n" + utils.Truncate(result, toolResultMaxChars),
	}, true
}

// MemorySave executes one MEMORY_SAVE block. It never produces output:
// unparseable blocks and empty content are skipped, failures only logged.
func (d *Dispatcher) MemorySave(ctx context.Context, raw string) {
	parsed, ok := commands.Decode(raw)
	if !ok {
		return
	}
	content, _ := parsed["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	category, _ := parsed["category"].(string)
	if category == "" {
		category = "general"
	}
	if _, err := d.Memory.Save(ctx, content, "explicit_save", []string{category}); err != nil {
		logger.WarnC("dispatch", "memory save failed: "+err.Error())
		return
	}
	logger.InfoC("dispatch", "memory saved: "+utils.Truncate(content, 50))
}

func stringField(parsed map[string]interface{}, key, fallback string) string {
	v, _ := parsed[key].(string)
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// cleanArgs trims string arguments and strips zero-width characters that
// models leak into paths, which would otherwise create duplicate folders.
func cleanArgs(raw interface{}) map[string]interface{} {
	args, _ := raw.(map[string]interface{})
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = utils.StripZeroWidth(strings.TrimSpace(s))
			continue
		}
		out[k] = v
	}
	return out
}

func noResults(result string) bool {
	lower := strings.ToLower(result)
	return strings.Contains(lower, "no results") || strings.Contains(lower, "bot detection")
}
