// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package agent drives the multi-round agentic loop: generate a response,
// extract command blocks, execute them, feed results back, repeat up to a
// hard iteration ceiling.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/bus"
	"github.com/grizzyclaw/grizzyclaw/pkg/commands"
	"github.com/grizzyclaw/grizzyclaw/pkg/config"
	"github.com/grizzyclaw/grizzyclaw/pkg/dispatch"
	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/mcp"
	"github.com/grizzyclaw/grizzyclaw/pkg/memory"
	"github.com/grizzyclaw/grizzyclaw/pkg/providers"
	"github.com/grizzyclaw/grizzyclaw/pkg/search"
	"github.com/grizzyclaw/grizzyclaw/pkg/session"
	"github.com/grizzyclaw/grizzyclaw/pkg/utils"
)

const component = "agent"

// commandKeywords are every block keyword stripped from user-facing text.
var commandKeywords = []string{"TOOL_CALL", "MEMORY_SAVE", "BROWSER_ACTION", "SCHEDULE_TASK"}

const (
	reflectionHint     = "\n\nIf the results above are not enough to fully answer, output another TOOL_CALL. Otherwise answer the user concisely. Do NOT repeat the same TOOL_CALL."
	toolFailureHint    = "\n\nOne or more tools failed. If you can proceed with partial results, answer the user; otherwise try a different TOOL_CALL or rephrase."
	searchContinueHint = "\n\nUse this to continue your response."

	emptyResponseMessage = "The model returned no response. If you are running a local backend, make sure a model is loaded and try again."
	busyMessage          = "I'm still working on your previous message. Give me a moment."
)

// Generator streams one round of text generation. *providers.Router
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req providers.Request, onChunk func(string)) error
}

// Commands executes extracted command blocks. *dispatch.Dispatcher
// satisfies it.
type Commands interface {
	ToolCall(ctx context.Context, raw string) (dispatch.ExecutionResult, bool)
	MemorySave(ctx context.Context, raw string)
	BrowserAction(ctx context.Context, raw, screenshotDir string) (dispatch.ExecutionResult, bool)
	ScheduleAction(ctx context.Context, raw, userID string) (dispatch.ExecutionResult, bool)
}

// ToolSource lists discovered MCP tools for the system prompt.
// *mcp.Client satisfies it.
type ToolSource interface {
	DiscoverTools(ctx context.Context, force bool) (map[string][]mcp.ToolInfo, error)
}

// intentDetector gates the proactive-search fallback. Narrow on purpose:
// the substring heuristic can be swapped for a real classifier without
// touching the loop.
type intentDetector interface {
	ShouldTrigger(message, response string, round, blockCount int) bool
	Query(message string) string
}

// Loop is the agentic loop controller. One Loop serves all sessions; each
// turn is sequential within itself and serialized per session by the
// session's turn token.
type Loop struct {
	bus           *bus.MessageBus
	generator     Generator
	commands      Commands
	sessions      *session.Manager
	memory        memory.Store
	tools         ToolSource
	intent        intentDetector
	prompt        *PromptBuilder
	provider      string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	maxMessages   int
	screenshotDir string
	running       atomic.Bool
}

func New(cfg *config.Config, msgBus *bus.MessageBus, gen Generator, cmds Commands, sessions *session.Manager, store memory.Store, tools ToolSource) *Loop {
	defaults := cfg.Agents.Defaults
	maxIterations := defaults.MaxAgenticIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}
	maxMessages := defaults.MaxSessionMessages
	if maxMessages <= 0 {
		maxMessages = 20
	}

	return &Loop{
		bus:           msgBus,
		generator:     gen,
		commands:      cmds,
		sessions:      sessions,
		memory:        store,
		tools:         tools,
		intent:        search.IntentDetector{},
		prompt:        NewPromptBuilder(cfg.WorkspacePath(), cfg.Memory.RetrievalLimit),
		provider:      defaults.Provider,
		model:         defaults.Model,
		maxTokens:     defaults.MaxTokens,
		temperature:   defaults.Temperature,
		maxIterations: maxIterations,
		maxMessages:   maxMessages,
		screenshotDir: cfg.WorkspacePath(),
	}
}

// Run consumes inbound messages until ctx is cancelled, publishing each
// turn's final text back on the bus.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)

	for l.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := l.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}

			response := l.processMessage(ctx, msg, nil)
			if response != "" {
				l.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: response,
				})
			}
		}
	}

	return nil
}

func (l *Loop) Stop() {
	l.running.Store(false)
}

// ProcessDirect runs one turn outside the bus, for CLI use. Streamed chunks
// go to onChunk as produced; the returned string is the complete
// user-visible text for the turn.
func (l *Loop) ProcessDirect(ctx context.Context, content, sessionKey string, onChunk func(string)) string {
	msg := bus.InboundMessage{
		Channel:    "cli",
		SenderID:   "local-user",
		ChatID:     "direct",
		Content:    content,
		SessionKey: sessionKey,
	}
	return l.processMessage(ctx, msg, onChunk)
}

// processMessage wraps one turn with panic recovery and error-to-apology
// conversion so a single bad turn never takes the loop down.
func (l *Loop) processMessage(ctx context.Context, msg bus.InboundMessage, onChunk func(string)) (response string) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF(component, "turn panicked", map[string]interface{}{
				"session_key": msg.SessionKey,
				"panic":       fmt.Sprint(r),
				"stack":       string(debug.Stack()),
			})
			response = fmt.Sprintf("Sorry, I encountered an error. %v", r)
		}
	}()

	logger.InfoCF(component, "processing message from "+msg.Channel+":"+msg.SenderID, map[string]interface{}{
		"channel":     msg.Channel,
		"chat_id":     msg.ChatID,
		"sender_id":   msg.SenderID,
		"session_key": msg.SessionKey,
		"preview":     utils.Truncate(msg.Content, 80),
	})

	text, err := l.runTurn(ctx, msg, onChunk)
	if err != nil {
		logger.ErrorCF(component, "turn failed", map[string]interface{}{
			"session_key": msg.SessionKey,
			"error":       err.Error(),
		})
		cause := strings.TrimSpace(err.Error())
		if cause == "" {
			cause = "Unknown error"
		}
		return "Sorry, I encountered an error. " + cause
	}
	return text
}

// runTurn is one full turn: prompt assembly, the generate/execute/feed
// rounds, the post-loop command passes, and session/memory persistence.
func (l *Loop) runTurn(ctx context.Context, msg bus.InboundMessage, onChunk func(string)) (string, error) {
	sessionKey := strings.TrimSpace(msg.SessionKey)
	if sessionKey == "" {
		sessionKey = msg.Channel + ":" + msg.ChatID
	}
	userID := msg.SenderID
	if userID == "" {
		userID = "local-user"
	}

	sess := l.sessions.GetOrCreate(sessionKey)
	if !sess.BeginTurn() {
		return busyMessage, nil
	}
	defer sess.EndTurn()

	var toolsMap map[string][]mcp.ToolInfo
	if l.tools != nil {
		m, err := l.tools.DiscoverTools(ctx, false)
		if err != nil {
			logger.WarnC(component, "tool discovery failed: "+err.Error())
		} else {
			toolsMap = m
		}
	}

	systemPrompt := l.prompt.BuildSystemPrompt(toolsMap, time.Now())
	recall := l.prompt.BuildRecall(ctx, l.memory, msg.Content)
	messages := l.prompt.BuildMessages(systemPrompt, recall, sess.History(), msg.Content)

	emit := func(s string) {
		if s != "" && onChunk != nil {
			onChunk(s)
		}
	}

	var accumResponse strings.Builder
	var toolDisplays []string
	searchFallbackFired := false
	start := time.Now()

	for round := 0; round < l.maxIterations; round++ {
		var resp strings.Builder
		req := providers.Request{
			Messages: messages,
			Provider: l.provider,
			Model:    l.model,
			Options: map[string]interface{}{
				"max_tokens":  l.maxTokens,
				"temperature": l.temperature,
			},
		}
		if err := l.generator.Generate(ctx, req, func(chunk string) {
			resp.WriteString(chunk)
			emit(chunk)
		}); err != nil {
			return "", fmt.Errorf("generation failed: %w", err)
		}

		responseText := resp.String()
		accumResponse.WriteString(responseText)

		if strings.TrimSpace(responseText) == "" && round == 0 {
			return emptyResponseMessage, nil
		}

		blocks := commands.Extract(responseText, "TOOL_CALL")

		if len(blocks) == 0 {
			if !searchFallbackFired && l.intent.ShouldTrigger(msg.Content, responseText, round, 0) {
				searchFallbackFired = true
				display, feedback, ok := l.proactiveSearch(ctx, msg.Content)
				emit(display)
				toolDisplays = append(toolDisplays, display)
				if ok {
					messages = append(messages,
						providers.Message{Role: "assistant", Content: responseText},
						providers.Message{Role: "user", Content: feedback},
					)
					continue
				}
			}
			break
		}

		logger.InfoCF(component, "executing tool calls", map[string]interface{}{
			"round": round,
			"count": len(blocks),
		})

		var feedbackParts []string
		anyFailed := false
		for _, b := range blocks {
			result, ok := l.commands.ToolCall(ctx, b.Raw)
			if !ok {
				continue
			}
			emit(result.Display)
			toolDisplays = append(toolDisplays, result.Display)
			feedbackParts = append(feedbackParts, result.Feedback)
			if result.Failed {
				anyFailed = true
			}
		}

		if len(feedbackParts) == 0 {
			// Every block was unparseable; nothing to feed back.
			break
		}

		feedback := strings.Join(feedbackParts, "\n\n") + reflectionHint
		if anyFailed {
			feedback += toolFailureHint
		}
		messages = append(messages,
			providers.Message{Role: "assistant", Content: responseText},
			providers.Message{Role: "user", Content: feedback},
		)
	}

	// Final transcript for session/memory: raw model output plus every tool
	// result the user saw. Raw blocks stay in so trimming can recognize
	// tool-heavy turns later.
	transcript := accumResponse.String()
	if len(toolDisplays) > 0 {
		transcript += "\n" + strings.Join(toolDisplays, "")
	}

	postDisplays := l.runPostPasses(ctx, transcript, userID, emit)

	if l.memory != nil {
		if _, err := l.memory.Save(ctx, "User: "+msg.Content+"\nAssistant: "+transcript, "conversation", nil); err != nil {
			logger.WarnC(component, "conversation memory save failed: "+err.Error())
		}
	}

	sess.AppendText("user", msg.Content)
	sess.AppendText("assistant", transcript)
	sess.SetMessages(session.Trim(sess.Messages, l.maxMessages))
	if err := l.sessions.Save(sess); err != nil {
		logger.WarnCF(component, "session save failed", map[string]interface{}{
			"key":   sessionKey,
			"error": err.Error(),
		})
	}

	display := commands.StripBlocks(accumResponse.String(), commandKeywords...)
	display = strings.TrimSpace(display) + strings.Join(toolDisplays, "") + strings.Join(postDisplays, "")

	logger.InfoCF(component, "turn complete", map[string]interface{}{
		"session_key": sessionKey,
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(display),
	})

	return display, nil
}

// proactiveSearch synthesizes one ddg-search call from the user message.
// Returns the user-facing display, the feedback message for the next round,
// and whether the search succeeded.
func (l *Loop) proactiveSearch(ctx context.Context, userMessage string) (string, string, bool) {
	query := l.intent.Query(userMessage)
	raw, err := json.Marshal(map[string]interface{}{
		"mcp":       "ddg-search",
		"tool":      "search",
		"arguments": map[string]string{"query": query},
	})
	if err != nil {
		return "", "", false
	}

	logger.InfoCF(component, "proactive search fallback", map[string]interface{}{"query": query})

	result, ok := l.commands.ToolCall(ctx, string(raw))
	if !ok || result.Failed {
		display := result.Display
		if display == "" {
			display = "**❌ Tool error: search unavailable**\n\n"
		}
		return display, "", false
	}
	return "Let me search for that." + result.Display, result.Feedback + searchContinueHint, true
}

// runPostPasses runs the once-per-turn extraction passes over the whole
// transcript: MEMORY_SAVE, BROWSER_ACTION, then SCHEDULE_TASK. These act on
// the final answer rather than driving further rounds.
func (l *Loop) runPostPasses(ctx context.Context, transcript, userID string, emit func(string)) []string {
	var displays []string

	for _, b := range commands.Extract(transcript, "MEMORY_SAVE") {
		l.commands.MemorySave(ctx, b.Raw)
	}

	for _, b := range commands.Extract(transcript, "BROWSER_ACTION") {
		result, ok := l.commands.BrowserAction(ctx, b.Raw, l.screenshotDir)
		if !ok {
			continue
		}
		emit(result.Display)
		displays = append(displays, result.Display)
	}

	for _, b := range commands.Extract(transcript, "SCHEDULE_TASK") {
		result, ok := l.commands.ScheduleAction(ctx, b.Raw, userID)
		if !ok {
			continue
		}
		emit(result.Display)
		displays = append(displays, result.Display)
	}

	return displays
}
