package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimNoopUnderLimit(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	assert.Len(t, Trim(msgs, 10), 2)
}

func TestTrimKeepsRecentAndPriority(t *testing.T) {
	// 30 messages; 5 of the older ones carry tool activity
	var msgs []Message
	for i := 0; i < 30; i++ {
		content := fmt.Sprintf("plain message %d", i)
		if i == 2 || i == 5 || i == 9 || i == 14 || i == 18 {
			content = fmt.Sprintf("[Tool result fs.read] output %d", i)
		}
		msgs = append(msgs, Message{Role: "user", Content: content})
	}

	out := Trim(msgs, 10)
	require.Len(t, out, 10)

	// recentCount = max(10-4, 10/2) = 6, so 4 priority slots
	assert.Contains(t, out[0].Content, "output 5")
	assert.Contains(t, out[1].Content, "output 9")
	assert.Contains(t, out[2].Content, "output 14")
	assert.Contains(t, out[3].Content, "output 18")
	for i := 0; i < 6; i++ {
		assert.Equal(t, fmt.Sprintf("plain message %d", 24+i), out[4+i].Content)
	}
}

func TestTrimPriorityCapped(t *testing.T) {
	// every older message is priority; only max-recent slots survive
	var msgs []Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, Message{Role: "user", Content: fmt.Sprintf("TOOL_CALL %d", i)})
	}
	out := Trim(msgs, 8)
	require.Len(t, out, 8)
	// recentCount = max(4, 4) = 4, priority slots = 4, most recent older kept
	assert.Equal(t, "TOOL_CALL 12", out[0].Content)
	assert.Equal(t, "TOOL_CALL 15", out[3].Content)
	assert.Equal(t, "TOOL_CALL 16", out[4].Content)
	assert.Equal(t, "TOOL_CALL 19", out[7].Content)
}

func TestTrimNoPriorityInOlder(t *testing.T) {
	var msgs []Message
	for i := 0; i < 15; i++ {
		msgs = append(msgs, Message{Role: "user", Content: fmt.Sprintf("chat %d", i)})
	}
	out := Trim(msgs, 10)
	// only the recency window survives
	require.Len(t, out, 6)
	assert.Equal(t, "chat 9", out[0].Content)
	assert.Equal(t, "chat 14", out[5].Content)
}

func TestHasPriorityContentMarkers(t *testing.T) {
	for _, marker := range []string{"[Tool result", "TOOL_CALL", "BROWSER_ACTION", "SCHEDULE_TASK", "MEMORY_SAVE", "EXEC_COMMAND", "⚒"} {
		m := Message{Role: "assistant", Content: "prefix " + marker + " suffix"}
		assert.True(t, HasPriorityContent(m), marker)
	}
	assert.False(t, HasPriorityContent(Message{Role: "user", Content: "just chatting"}))
}

func TestHasPriorityContentMultiPart(t *testing.T) {
	m := Message{
		Role: "assistant",
		Parts: []Part{
			{Type: "text", Text: "thinking about it"},
			{Type: "image", Text: "TOOL_CALL"}, // non-text parts do not count
			{Type: "text", Text: "here: TOOL_CALL = {}"},
		},
	}
	assert.True(t, HasPriorityContent(m))

	m2 := Message{
		Role:  "assistant",
		Parts: []Part{{Type: "image"}, {Type: "text", Text: "plain"}},
	}
	assert.False(t, HasPriorityContent(m2))
}

func TestMessageTextJoinsParts(t *testing.T) {
	m := Message{Parts: []Part{
		{Type: "text", Text: "one"},
		{Type: "text", Text: "two"},
	}}
	assert.Equal(t, "one two", m.Text())
	assert.Equal(t, "plain", Message{Content: "plain"}.Text())
}
