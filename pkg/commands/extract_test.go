package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBlocksBasic(t *testing.T) {
	text := `Let me check the weather.

TOOL_CALL = {"mcp": "weather", "tool": "current", "arguments": {"city": "Oslo"}}

I'll get back to you.`

	blocks := FindBlocks(text, "TOOL_CALL")
	require.Len(t, blocks, 1)
	assert.Equal(t, `{"mcp": "weather", "tool": "current", "arguments": {"city": "Oslo"}}`, blocks[0].Raw)
	assert.Equal(t, "TOOL_CALL", blocks[0].Keyword)
}

func TestFindBlocksCaseInsensitive(t *testing.T) {
	text := `tool_call = {"mcp": "fs", "tool": "read", "arguments": {}}`
	blocks := FindBlocks(text, "TOOL_CALL")
	require.Len(t, blocks, 1)
}

func TestFindBlocksCodeFence(t *testing.T) {
	text := "Here you go:\n\nTOOL_CALL = ```json\n{\"mcp\": \"fs\", \"tool\": \"list\", \"arguments\": {\"path\": \"/tmp\"}}\n```"
	blocks := FindBlocks(text, "TOOL_CALL")
	require.Len(t, blocks, 1)
	assert.True(t, strings.HasPrefix(blocks[0].Raw, "{"))
	assert.True(t, strings.HasSuffix(blocks[0].Raw, "}"))
}

func TestFindBlocksNested(t *testing.T) {
	text := `MEMORY_SAVE = {"content": "user prefers metric", "meta": {"tags": ["units", "pref"]}}`
	blocks := FindBlocks(text, "MEMORY_SAVE")
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Raw, `"tags"`)
	assert.True(t, strings.HasSuffix(blocks[0].Raw, "}"))
}

func TestFindBlocksBracesInsideStrings(t *testing.T) {
	text := `TOOL_CALL = {"mcp": "sh", "tool": "run", "arguments": {"cmd": "awk '{print $1}'"}}`
	blocks := FindBlocks(text, "TOOL_CALL")
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Raw, "{print $1}")
	assert.True(t, strings.HasSuffix(blocks[0].Raw, "}"))
}

func TestFindBlocksMultiple(t *testing.T) {
	text := `TOOL_CALL = {"mcp": "a", "tool": "x", "arguments": {}}
Then a second one:
TOOL_CALL = {"mcp": "b", "tool": "y", "arguments": {}}`
	blocks := FindBlocks(text, "TOOL_CALL")
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0].Raw, `"a"`)
	assert.Contains(t, blocks[1].Raw, `"b"`)
}

func TestFindBlocksUnbalanced(t *testing.T) {
	text := `TOOL_CALL = {"mcp": "a", "tool": "x", "arguments": {`
	assert.Empty(t, FindBlocks(text, "TOOL_CALL"))
}

func TestFallbackProseBetweenEqualsAndBrace(t *testing.T) {
	text := `SCHEDULE_TASK = here is the task definition as requested:
{"action": "create", "name": "standup", "schedule": "0 9 * * *"}`

	if blks := FindBlocks(text, "SCHEDULE_TASK"); len(blks) != 0 {
		t.Fatalf("anchored pattern should not match, got %d blocks", len(blks))
	}
	blocks := Extract(text, "SCHEDULE_TASK")
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].Raw, `"standup"`)
}

func TestFallbackWindowLimit(t *testing.T) {
	text := "TOOL_CALL = " + strings.Repeat("x", fallbackWindow+10) + `{"mcp": "a"}`
	assert.Empty(t, Extract(text, "TOOL_CALL"))
}

func TestExtractPrefersAnchored(t *testing.T) {
	text := `TOOL_CALL = {"mcp": "a", "tool": "x", "arguments": {}}`
	blocks := Extract(text, "TOOL_CALL")
	require.Len(t, blocks, 1)
	assert.Equal(t, `{"mcp": "a", "tool": "x", "arguments": {}}`, blocks[0].Raw)
}

func TestStripBlocks(t *testing.T) {
	text := `Checking now.

TOOL_CALL = {"mcp": "weather", "tool": "current", "arguments": {}}

Done, it is sunny.`
	out := StripBlocks(text, "TOOL_CALL")
	assert.NotContains(t, out, "TOOL_CALL")
	assert.Contains(t, out, "Checking now.")
	assert.Contains(t, out, "Done, it is sunny.")
}

func TestStripBlocksMultipleKeywords(t *testing.T) {
	text := `TOOL_CALL = {"mcp": "a", "tool": "x", "arguments": {}}
MEMORY_SAVE = {"content": "note"}
All saved.`
	out := StripBlocks(text, "TOOL_CALL", "MEMORY_SAVE")
	assert.NotContains(t, out, "TOOL_CALL")
	assert.NotContains(t, out, "MEMORY_SAVE")
	assert.Contains(t, out, "All saved.")
}

func TestStringAwareScannerEscapes(t *testing.T) {
	s := `{"a": "quote \" and brace }"}`
	end, ok := stringAwareScanner{}.Scan(s, 0)
	require.True(t, ok)
	assert.Equal(t, len(s), end)
}

func TestNaiveScannerIgnoresStrings(t *testing.T) {
	// naive counting treats braces in strings as structural
	s := `{"a": "}"}`
	end, ok := naiveScanner{}.Scan(s, 0)
	require.True(t, ok)
	assert.Equal(t, strings.Index(s, "}")+1, end)
}
