package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripZeroWidth(t *testing.T) {
	in := "\uFEFF/tmp/app​/main‌.go‍"
	assert.Equal(t, "/tmp/app/main.go", StripZeroWidth(in))
}

func TestStripZeroWidthPlainASCII(t *testing.T) {
	assert.Equal(t, "hello world", StripZeroWidth("hello world"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "héll…", Truncate("héllo world", 5))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestCountWhitespaceTokens(t *testing.T) {
	assert.Equal(t, 3, CountWhitespaceTokens("one  two\tthree"))
	assert.Equal(t, 0, CountWhitespaceTokens("   "))
}
