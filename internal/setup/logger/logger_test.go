package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	if got := New("debug", false).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %s", got)
	}
	if got := New("nonsense", false).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("unknown level must fall back to info, got %s", got)
	}
	// Pretty output only changes the writer, never the level.
	if got := New("warn", true).GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn level with pretty output, got %s", got)
	}
}
