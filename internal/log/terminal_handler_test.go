package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

	ts := time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "document created", 0)
	r.AddAttrs(slog.Int("id", 42), slog.String("source", "notes.md"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	want := "10:30:45.123 INF document created id=42 source=notes.md\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConsoleHandler_Levels(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))
		logger.Log(context.Background(), tt.level, "msg")
		if !strings.Contains(buf.String(), tt.expected) {
			t.Errorf("level %v: expected %s in %q", tt.level, tt.expected, buf.String())
		}
	}
}

func TestConsoleHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestConsoleHandler_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, nil, false))

	logger.InfoContext(WithCorrelationID(context.Background(), "c0ffee"), "searched")

	if !strings.Contains(buf.String(), "[c0ffee] searched") {
		t.Errorf("expected correlation prefix, got %q", buf.String())
	}
}

func TestConsoleHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, nil, false)).
		With("component", "store").
		WithGroup("save")

	logger.Info("saved", "documents", 3, slog.Group("file", slog.String("name", "index blob")))

	got := buf.String()
	for _, want := range []string{"component=store", "save.documents=3", `save.file.name="index blob"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %q", want, got)
		}
	}
}

func TestConsoleHandler_Color(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, nil, true))

	logger.Error("failed")

	if !strings.Contains(buf.String(), ansiRed+"ERR"+ansiReset) {
		t.Errorf("expected coloured level, got %q", buf.String())
	}
}
