package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "Debug", value: "debug", expected: LevelDebug},
		{name: "Info", value: "info", expected: LevelInfo},
		{name: "Warn", value: "warn", expected: LevelWarn},
		{name: "Warning alias", value: "warning", expected: LevelWarn},
		{name: "Error", value: "error", expected: LevelError},
		{name: "Case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "Surrounding space", value: "  error ", expected: LevelError},
		{name: "Unknown defaults to info", value: "verbose", expected: LevelInfo},
		{name: "Empty defaults to info", value: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.value); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	prevLevel := GetLevel()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(prevLevel)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown %s", "warn")
	Error("shown %d", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] shown 42") {
		t.Errorf("missing error line in %q", out)
	}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled should be false at WARN")
	}
}

func TestShortPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "short path unchanged", path: "/img/a.png", want: "/img/a.png"},
		{name: "exactly thirty", path: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{
			name: "long path keeps tail",
			path: "/very/long/directory/structure/for/images/photo-0001.png",
			want: "...ture/for/images/photo-0001.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortPath(tt.path); got != tt.want {
				t.Errorf("ShortPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathLoggerPrefix(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelDebug)

	l := ForPath("/photos/cat.png")
	l.Info("rating set to %d", 4)
	l.Debug("cache miss")

	out := buf.String()
	if !strings.Contains(out, "[INFO] [/photos/cat.png] rating set to 4") {
		t.Errorf("unexpected info line: %q", out)
	}
	if !strings.Contains(out, "[DEBUG] [/photos/cat.png] cache miss") {
		t.Errorf("unexpected debug line: %q", out)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
