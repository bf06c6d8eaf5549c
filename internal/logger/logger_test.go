package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatFollowsEnvironment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		format      string
		wantJSON    bool
	}{
		{name: "production defaults to json", environment: "production", wantJSON: true},
		{name: "development defaults to pretty", environment: "development"},
		{name: "staging defaults to pretty", environment: "staging"},
		{name: "explicit json wins", environment: "development", format: "json", wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Environment: tt.environment, Format: tt.format, Level: slog.LevelInfo})
			log.Info("loan created", "book_id", "book-1")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"loan created"`)
				assert.Contains(t, buf.String(), `"book_id":"book-1"`)
				return
			}
			assert.Contains(t, buf.String(), "loan created")
			assert.Contains(t, buf.String(), "book_id=book-1")
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_LevelLabels(t *testing.T) {
	for level, label := range map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	} {
		var buf bytes.Buffer
		slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
			Log(context.Background(), level, "x")
		assert.Contains(t, buf.String(), label)
	}
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "loans")}).WithGroup("loan"))
	log.Info("returned", "id", "loan-1", "late", true)

	out := buf.String()
	assert.Contains(t, out, "component=loans")
	assert.Contains(t, out, "loan.id=loan-1")
	assert.Contains(t, out, "loan.late=true")
}

func TestPrettyHandler_EmptyGroupIsNoop(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.Same(t, h, h.WithGroup(""))
}

func TestPrettyHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil)).Info("sweep", slog.Group("stats", slog.Int("overdue", 3)))
	assert.Contains(t, buf.String(), "stats.overdue=3")
}

func TestFormatValue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, formatValue(slog.StringValue("two words")))
	assert.Equal(t, now.Format(time.RFC3339), formatValue(slog.TimeValue(now)))
	assert.Equal(t, "240h0m0s", formatValue(slog.DurationValue(10*24*time.Hour)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})

	log.WithError(errors.New("disk full")).Info("upload failed", "user_id", "user-9")
	log.Component("policy").Info("reloaded")

	out := buf.String()
	assert.Contains(t, out, `"error":"disk full"`)
	assert.Contains(t, out, `"user_id":"user-9"`)
	assert.Contains(t, out, `"component":"policy"`)
}

func TestLogger_WithNilError(t *testing.T) {
	log := New(Config{Writer: &bytes.Buffer{}, Format: "json"})
	assert.Same(t, log, log.WithError(nil))
}
