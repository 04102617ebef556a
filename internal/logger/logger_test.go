package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Output: &buf})
	defer Init(Options{})

	Info("[Test] hidden")
	Warn("[Test] shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestInitDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "error", Debug: true, Output: &buf})
	defer Init(Options{})

	Debug("[Test] debug line")
	assert.Contains(t, buf.String(), "debug line")
}
