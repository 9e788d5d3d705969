package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotentOnValidJSON(t *testing.T) {
	valid := `{"mcp": "weather", "tool": "current", "arguments": {"city": "Oslo", "units": "metric"}}`
	once := Normalize(valid)
	twice := Normalize(once)
	assert.Equal(t, once, twice)

	var a, b map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(valid), &a))
	require.NoError(t, json.Unmarshal([]byte(once), &b))
	assert.Equal(t, a, b)
}

func TestNormalizeCodeFence(t *testing.T) {
	raw := "```json\n{\"a\": 1}\n```"
	assert.Equal(t, `{"a": 1}`, Normalize(raw))
}

func TestNormalizeComments(t *testing.T) {
	raw := `{
  "a": 1, // inline note
  /* block
     comment */
  "b": 2
}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Normalize(raw)), &obj))
	assert.Equal(t, float64(1), obj["a"])
	assert.Equal(t, float64(2), obj["b"])
}

func TestNormalizeCurlyQuotes(t *testing.T) {
	raw := "{“name”: “Ada”}"
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Normalize(raw)), &obj))
	assert.Equal(t, "Ada", obj["name"])
}

func TestNormalizeTrailingCommas(t *testing.T) {
	raw := `{"items": [1, 2, 3,], "done": true,}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Normalize(raw)), &obj))
	assert.Equal(t, true, obj["done"])
	assert.Len(t, obj["items"], 3)
}

func TestNormalizeStrayBackslashes(t *testing.T) {
	raw := `{\"tool\": \"search\"}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Normalize(raw)), &obj))
	assert.Equal(t, "search", obj["tool"])
}

func TestNormalizeExtendedBareLiterals(t *testing.T) {
	raw := `{"a": undefined, "b": NaN, "c": 1}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(NormalizeExtended(raw)), &obj))
	assert.Nil(t, obj["a"])
	assert.Nil(t, obj["b"])
	assert.Equal(t, float64(1), obj["c"])
}

func TestNormalizeExtendedUnquotedKeys(t *testing.T) {
	raw := `{mcp: "fs", tool: "read"}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(NormalizeExtended(raw)), &obj))
	assert.Equal(t, "fs", obj["mcp"])
	assert.Equal(t, "read", obj["tool"])
}

func TestNormalizeExtendedNewlinesInStrings(t *testing.T) {
	raw := "{\"text\": \"line one\nline two\"}"
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(NormalizeExtended(raw)), &obj))
	assert.Equal(t, "line one\nline two", obj["text"])
}

func TestNormalizeExtendedConcatenatedObjects(t *testing.T) {
	raw := `{"first": 1} {"second": 2}`
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(NormalizeExtended(raw)), &obj))
	assert.Equal(t, float64(1), obj["first"])
	assert.NotContains(t, obj, "second")
}

func TestDecodeStrictPath(t *testing.T) {
	obj, ok := Decode(`{"mcp": "a", "tool": "b", "arguments": {}}`)
	require.True(t, ok)
	assert.Equal(t, "a", obj["mcp"])
}

func TestDecodeRepairPath(t *testing.T) {
	// missing closing quote, repairable structurally
	obj, ok := Decode(`{"mcp": "a", "tool": "b}`)
	require.True(t, ok)
	assert.Equal(t, "a", obj["mcp"])
}

func TestDecodeUnusable(t *testing.T) {
	_, ok := Decode("not even close")
	if ok {
		t.Fatalf("expected decode failure for non-object input")
	}
}

func TestDecodeMangledRealWorld(t *testing.T) {
	raw := "```json\n{“mcp”: “ddg-search”, \"tool\": \"search\", \"arguments\": {\"query\": \"golang news\",},}\n```"
	obj, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, "ddg-search", obj["mcp"])
	args, ok := obj["arguments"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "golang news", args["query"])
}
