package internal

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel(" TRACE "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestComponentLoggerFiltersAndTags(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	flags := log.Flags()
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})

	l := NewLogger(LogLevelWarn).For("Sweep")
	l.Info("hidden")
	l.Warn("cell %d failed", 3)

	assert.Equal(t, "[WARN] [Sweep] cell 3 failed\n", buf.String())
	assert.Equal(t, LogLevelWarn, l.GetLevel())
}
