package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() {
		Logf = original
		SetDebug(false)
	})
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("session %s ended", "a")
	assert.Equal(t, []string{"session a ended"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped") })
	assert.Len(t, *lines, 1)
}

func TestDebugf(t *testing.T) {
	lines := capture(t)

	Debugf("rejected %d", 1)
	assert.Empty(t, *lines)

	SetDebug(true)
	Debugf("rejected %d", 2)
	assert.Equal(t, []string{"[debug] rejected 2"}, *lines)
}
