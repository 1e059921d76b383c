package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"shout", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		logger := NewLogger(Config{Level: tc.level})
		if got := logger.GetLevel(); got != tc.want {
			t.Fatalf("NewLogger(%q) level = %s, want %s", tc.level, got, tc.want)
		}
	}
}
