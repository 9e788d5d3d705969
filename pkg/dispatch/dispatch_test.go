package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grizzyclaw/grizzyclaw/pkg/browser"
	"github.com/grizzyclaw/grizzyclaw/pkg/memory"
	"github.com/grizzyclaw/grizzyclaw/pkg/metrics"
	"github.com/grizzyclaw/grizzyclaw/pkg/scheduler"
)

type toolCall struct {
	server string
	tool   string
	args   map[string]interface{}
}

type fakeTools struct {
	calls   []toolCall
	results []string
	err     error
}

func (f *fakeTools) CallTool(_ context.Context, server, tool string, args map[string]interface{}) (string, error) {
	f.calls = append(f.calls, toolCall{server: server, tool: tool, args: args})
	if f.err != nil {
		return "", f.err
	}
	if len(f.results) == 0 {
		return "ok", nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out, nil
}

type savedItem struct {
	content string
	source  string
	tags    []string
}

type fakeMemory struct {
	saved []savedItem
	err   error
}

func (f *fakeMemory) Save(_ context.Context, content, source string, tags []string) (memory.Item, error) {
	if f.err != nil {
		return memory.Item{}, f.err
	}
	f.saved = append(f.saved, savedItem{content: content, source: source, tags: tags})
	return memory.Item{Content: content}, nil
}

func (f *fakeMemory) Recent(context.Context, int) ([]memory.Item, error)         { return nil, nil }
func (f *fakeMemory) Search(context.Context, string, int) ([]memory.Item, error) { return nil, nil }
func (f *fakeMemory) Delete(context.Context, string) error                       { return nil }
func (f *fakeMemory) Close() error                                               { return nil }

type fakeHandle struct {
	url      string
	text     string
	navErr   error
	closed   *int
	lastNav  string
	lastFill [2]string
}

func (h *fakeHandle) Navigate(_ context.Context, url string) error {
	h.lastNav = url
	if h.navErr == nil {
		h.url = url
	}
	return h.navErr
}
func (h *fakeHandle) Screenshot(context.Context, bool) ([]byte, error) { return []byte("png"), nil }
func (h *fakeHandle) Text(context.Context) (string, error)             { return h.text, nil }
func (h *fakeHandle) Links(context.Context) ([]browser.Link, error) {
	return []browser.Link{{Text: "Home", Href: "https://example.com"}}, nil
}
func (h *fakeHandle) Click(context.Context, string) error { return nil }
func (h *fakeHandle) Fill(_ context.Context, selector, value string) error {
	h.lastFill = [2]string{selector, value}
	return nil
}
func (h *fakeHandle) Scroll(context.Context, bool) error { return nil }
func (h *fakeHandle) URL() string                        { return h.url }
func (h *fakeHandle) Close() error {
	*h.closed++
	return nil
}

type fakeBrowser struct {
	handle   *fakeHandle
	acquired int
	err      error
}

func (b *fakeBrowser) Acquire(context.Context) (browser.Handle, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.acquired++
	return b.handle, nil
}

type countedCall struct {
	server string
	tool   string
	failed bool
}

type fakeMetrics struct {
	metrics.Nop
	toolCalls []countedCall
}

func (f *fakeMetrics) CountToolCall(mcp, tool string, failed bool) {
	f.toolCalls = append(f.toolCalls, countedCall{server: mcp, tool: tool, failed: failed})
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeTools, *fakeMemory, *fakeBrowser, *fakeMetrics) {
	t.Helper()
	tools := &fakeTools{}
	mem := &fakeMemory{}
	closed := 0
	browserCtrl := &fakeBrowser{handle: &fakeHandle{url: "about:blank", closed: &closed}}
	sched := scheduler.New(filepath.Join(t.TempDir(), "tasks.json"), nil)
	collector := &fakeMetrics{}
	d := New(tools, mem, browserCtrl, sched, collector)
	d.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	return d, tools, mem, browserCtrl, collector
}

func TestToolCallSuccessFormats(t *testing.T) {
	d, tools, _, _, collector := newTestDispatcher(t)
	tools.results = []string{"75.2°F and sunny"}

	res, ok := d.ToolCall(context.Background(), `{"mcp": "weather", "tool": "current", "arguments": {"city": "Austin"}}`)
	require.True(t, ok)
	assert.False(t, res.Failed)
	assert.Equal(t, "\n\n**🔧 weather.current**\n75.2°F and sunny\n", res.Display)
	assert.Equal(t, "[Tool result weather.current]\n75.2°F and sunny", res.Feedback)
	require.Len(t, tools.calls, 1)
	assert.Equal(t, "Austin", tools.calls[0].args["city"])
	require.Equal(t, []countedCall{{server: "weather", tool: "current", failed: false}}, collector.toolCalls)
}

func TestToolCallMissingNamesDefaultUnknown(t *testing.T) {
	d, tools, _, _, _ := newTestDispatcher(t)

	_, ok := d.ToolCall(context.Background(), `{"arguments": {}}`)
	require.True(t, ok)
	require.Len(t, tools.calls, 1)
	assert.Equal(t, "unknown", tools.calls[0].server)
	assert.Equal(t, "unknown", tools.calls[0].tool)
}

func TestToolCallErrorVisibleAndFedBack(t *testing.T) {
	d, tools, _, _, collector := newTestDispatcher(t)
	tools.err = fmt.Errorf("connection refused")

	res, ok := d.ToolCall(context.Background(), `{"mcp": "fs", "tool": "read"}`)
	require.True(t, ok)
	assert.True(t, res.Failed)
	assert.Equal(t, "**❌ Tool error: connection refused**\n\n", res.Display)
	assert.Equal(t, "[Tool error]\nconnection refused", res.Feedback)
	require.Equal(t, []countedCall{{server: "fs", tool: "read", failed: true}}, collector.toolCalls)
}

func TestToolCallUnparseableSkipped(t *testing.T) {
	d, tools, _, _, _ := newTestDispatcher(t)

	_, ok := d.ToolCall(context.Background(), `total nonsense, no braces at all`)
	assert.False(t, ok)
	assert.Empty(t, tools.calls)
}

func TestToolCallStripsZeroWidthFromArgs(t *testing.T) {
	d, tools, _, _, _ := newTestDispatcher(t)

	_, ok := d.ToolCall(context.Background(), "{\"mcp\": \"fs\", \"tool\": \"write\", \"arguments\": {\"path\": \"  /tmp/app\u200b/main.go  \"}}")
	require.True(t, ok)
	require.Len(t, tools.calls, 1)
	assert.Equal(t, "/tmp/app/main.go", tools.calls[0].args["path"])
}

func TestToolCallSearchQueryRewrite(t *testing.T) {
	d, tools, _, _, _ := newTestDispatcher(t)
	tools.results = []string{"1. MacBook Air M3 specs..."}

	_, ok := d.ToolCall(context.Background(), `{"mcp": "ddg-search", "tool": "search", "arguments": {"query": "macbook air m3 pecs"}}`)
	require.True(t, ok)
	require.Len(t, tools.calls, 1)
	q, _ := tools.calls[0].args["query"].(string)
	assert.Equal(t, "macbook air m3 specs", q)
}

func TestToolCallSearchRetryOnNoResults(t *testing.T) {
	d, tools, _, _, _ := newTestDispatcher(t)
	tools.results = []string{"No results found for your query", "1. Sony WH-1000XM5 review"}

	res, ok := d.ToolCall(context.Background(), `{"mcp": "ddg-search", "tool": "search", "arguments": {"query": "detailed review comparison Sony WH-1000XM5 noise cancelling headphones"}}`)
	require.True(t, ok)
	require.Len(t, tools.calls, 2)
	first, _ := tools.calls[0].args["query"].(string)
	second, _ := tools.calls[1].args["query"].(string)
	assert.True(t, len(second) < len(first), "retry query should be shorter: %q vs %q", second, first)
	assert.Contains(t, res.Display, "Sony WH-1000XM5 review")
}

func TestMemorySaveHappyPath(t *testing.T) {
	d, _, mem, _, _ := newTestDispatcher(t)

	d.MemorySave(context.Background(), `{"content": "User's birthday is March 15", "category": "facts"}`)
	require.Len(t, mem.saved, 1)
	assert.Equal(t, "User's birthday is March 15", mem.saved[0].content)
	assert.Equal(t, "explicit_save", mem.saved[0].source)
	assert.Equal(t, []string{"facts"}, mem.saved[0].tags)
}

func TestMemorySaveEmptyContentSkipped(t *testing.T) {
	d, _, mem, _, _ := newTestDispatcher(t)

	d.MemorySave(context.Background(), `{"content": "   ", "category": "facts"}`)
	d.MemorySave(context.Background(), `{"category": "facts"}`)
	assert.Empty(t, mem.saved)
}

func TestMemorySaveDefaultCategory(t *testing.T) {
	d, _, mem, _, _ := newTestDispatcher(t)

	d.MemorySave(context.Background(), `{"content": "likes espresso"}`)
	require.Len(t, mem.saved, 1)
	assert.Equal(t, []string{"general"}, mem.saved[0].tags)
}

func TestMemorySaveFailureIsSilent(t *testing.T) {
	d, _, mem, _, _ := newTestDispatcher(t)
	mem.err = fmt.Errorf("disk full")

	// Must not panic or produce output; the failure is log-only.
	d.MemorySave(context.Background(), `{"content": "something"}`)
	assert.Empty(t, mem.saved)
}

func TestBrowserActionNavigate(t *testing.T) {
	d, _, _, ctrl, _ := newTestDispatcher(t)

	res, ok := d.BrowserAction(context.Background(), `{"action": "navigate", "params": {"url": "https://example.com"}}`, t.TempDir())
	require.True(t, ok)
	assert.Equal(t, "\n\n**🌐 Browser: navigate**\n✅ Navigated to: https://example.com\n", res.Display)
	assert.Equal(t, 1, ctrl.acquired)
	assert.Equal(t, 1, *ctrl.handle.closed)
}

func TestBrowserActionHandleClosedOnActionError(t *testing.T) {
	d, _, _, ctrl, _ := newTestDispatcher(t)
	ctrl.handle.navErr = fmt.Errorf("net::ERR_NAME_NOT_RESOLVED")

	res, ok := d.BrowserAction(context.Background(), `{"action": "navigate", "params": {"url": "https://nope.invalid"}}`, t.TempDir())
	require.True(t, ok)
	assert.Contains(t, res.Display, "❌ Navigation failed")
	assert.Equal(t, 1, *ctrl.handle.closed)
}

func TestBrowserActionFreshHandlePerCall(t *testing.T) {
	d, _, _, ctrl, _ := newTestDispatcher(t)
	dir := t.TempDir()

	_, _ = d.BrowserAction(context.Background(), `{"action": "get_text"}`, dir)
	_, _ = d.BrowserAction(context.Background(), `{"action": "get_links"}`, dir)
	assert.Equal(t, 2, ctrl.acquired)
	assert.Equal(t, 2, *ctrl.handle.closed)
}

func TestBrowserActionAcquireFailure(t *testing.T) {
	d, _, _, ctrl, _ := newTestDispatcher(t)
	ctrl.err = fmt.Errorf("chrome not installed")

	res, ok := d.BrowserAction(context.Background(), `{"action": "status"}`, t.TempDir())
	require.True(t, ok)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Display, "❌ Browser error")
	assert.Contains(t, res.Display, "chrome not installed")
}

func TestBrowserActionNilControllerInlineError(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	d.Browser = nil

	res, ok := d.BrowserAction(context.Background(), `{"action": "navigate", "params": {"url": "https://example.com"}}`, t.TempDir())
	require.True(t, ok)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Display, "❌ Browser error: browser disabled")
}

func TestBrowserActionUnparseableSkipped(t *testing.T) {
	d, _, _, ctrl, _ := newTestDispatcher(t)

	_, ok := d.BrowserAction(context.Background(), "no json here", t.TempDir())
	assert.False(t, ok)
	assert.Equal(t, 0, ctrl.acquired)
}

func TestBrowserActionUnknownAction(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	res, ok := d.BrowserAction(context.Background(), `{"action": "teleport"}`, t.TempDir())
	require.True(t, ok)
	assert.Contains(t, res.Display, "❌ Unknown browser action: teleport")
}

// Parse failures are silent for tool calls but visible for schedule commands.
func TestScheduleParseFailureIsVisible(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	res, ok := d.ScheduleAction(context.Background(), "not a block", "user1")
	require.True(t, ok)
	assert.True(t, res.Failed)
	assert.Equal(t, "**❌ Invalid SCHEDULE_TASK JSON format.**\n\n", res.Display)

	_, toolOK := d.ToolCall(context.Background(), "not a block")
	assert.False(t, toolOK)
}

func TestScheduleCreate(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	raw := `{"action": "create", "task": {"name": "Check Email", "cron": "0 9 * * *", "message": "Time to check your email!"}}`
	res, ok := d.ScheduleAction(context.Background(), raw, "user1")
	require.True(t, ok)
	assert.False(t, res.Failed)
	assert.Contains(t, res.Display, "**⏰ Scheduler**")
	assert.Contains(t, res.Display, "✅ Task scheduled!")
	assert.Contains(t, res.Display, "- **Name:** Check Email")
	assert.Contains(t, res.Display, "- **Cron:** `0 9 * * *`")
	assert.Contains(t, res.Display, "- **Next run:** ")

	stats := d.Scheduler.Stats()
	require.Len(t, stats.Tasks, 1)
	assert.Equal(t, "user1", stats.Tasks[0].UserID)
	assert.Equal(t, "Time to check your email!", stats.Tasks[0].Message)
}

func TestScheduleCreateInMinutes(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	raw := `{"action": "create", "task": {"name": "Reminder", "in_minutes": 5, "message": "Stretch"}}`
	res, ok := d.ScheduleAction(context.Background(), raw, "user1")
	require.True(t, ok)
	// now is fixed at 12:00 UTC on 2026-08-29, so +5 minutes is a one-shot at 12:05.
	assert.Contains(t, res.Display, "- **Cron:** `5 12 29 8 *`")
}

func TestScheduleCreateMissingFields(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	res, _ := d.ScheduleAction(context.Background(), `{"action": "create", "task": {"name": "X", "message": "hi"}}`, "u")
	assert.Contains(t, res.Display, "❌ Cron expression required")

	res, _ = d.ScheduleAction(context.Background(), `{"action": "create", "task": {"name": "X", "cron": "* * * * *"}}`, "u")
	assert.Contains(t, res.Display, "❌ Task message required")
}

func TestScheduleListDeleteEnableDisable(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	res, _ := d.ScheduleAction(context.Background(), `{"action": "list"}`, "u")
	assert.Contains(t, res.Display, "📋 No scheduled tasks.")

	created, err := d.Scheduler.Schedule("Standup", "0 10 * * 1-5", "Standup time", "u")
	require.NoError(t, err)

	res, _ = d.ScheduleAction(context.Background(), `{"action": "list"}`, "u")
	assert.Contains(t, res.Display, "📋 **Scheduled Tasks:**")
	assert.Contains(t, res.Display, "**Standup**")
	assert.Contains(t, res.Display, "`0 10 * * 1-5`")

	res, _ = d.ScheduleAction(context.Background(), fmt.Sprintf(`{"action": "disable", "task_id": "%s"}`, created.ID), "u")
	assert.Contains(t, res.Display, "disabled")

	res, _ = d.ScheduleAction(context.Background(), fmt.Sprintf(`{"action": "enable", "task_id": "%s"}`, created.ID), "u")
	assert.Contains(t, res.Display, "enabled")

	res, _ = d.ScheduleAction(context.Background(), fmt.Sprintf(`{"action": "delete", "task_id": "%s"}`, created.ID), "u")
	assert.Contains(t, res.Display, "deleted")

	res, _ = d.ScheduleAction(context.Background(), `{"action": "delete", "task_id": "task_missing"}`, "u")
	assert.Contains(t, res.Display, "not found")
}

func TestScheduleEdit(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	created, err := d.Scheduler.Schedule("Old", "0 9 * * *", "old message", "u")
	require.NoError(t, err)

	raw := fmt.Sprintf(`{"action": "edit", "task_id": "%s", "task": {"message": "new message"}}`, created.ID)
	res, _ := d.ScheduleAction(context.Background(), raw, "u")
	assert.Contains(t, res.Display, "updated")

	got, found := d.Scheduler.Get(created.ID)
	require.True(t, found)
	assert.Equal(t, "new message", got.Message)
	assert.Equal(t, "Old", got.Name)
}

func TestScheduleUnknownAction(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	res, _ := d.ScheduleAction(context.Background(), `{"action": "explode"}`, "u")
	assert.Contains(t, res.Display, "❌ Unknown scheduler action: explode")
	assert.True(t, strings.Contains(res.Display, "create, list, delete, enable, disable, edit"))
}
