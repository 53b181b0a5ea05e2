package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(level string, warnStack bool) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Options{ServiceName: "test", Level: ParseLevel(level), Format: "json", Output: buf, WarnStack: warnStack}), buf
}

func TestErrorCarriesContextFields(t *testing.T) {
	log, buf := newBufferLogger("debug", false)

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithActor(ctx, "user-9", "ADMIN")
	ctx = log.WithResource(ctx, "Application", "app-1")
	log.Error(ctx, "boom", errors.New("db down"))

	for _, field := range []string{
		`"request_id":"req-123"`,
		`"user_id":"user-9"`,
		`"actor_role":"ADMIN"`,
		`"resource_type":"Application"`,
		`"error":"db down"`,
		`"service":"test"`,
		`"stack":"`,
	} {
		if !strings.Contains(buf.String(), field) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	log, buf := newBufferLogger("info", false)
	ctx := log.WithFields(context.Background(), map[string]any{
		"Password":     "hunter2",
		"access_token": "eyJ...",
		"email":        "ana@example.com",
	})
	log.Info(ctx, "login attempt")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "eyJ") {
		t.Fatalf("secret leaked into log: %s", out)
	}
	if !strings.Contains(out, `"email":"ana@example.com"`) {
		t.Fatalf("non-sensitive field dropped: %s", out)
	}
}

func TestWarnStackToggle(t *testing.T) {
	log, buf := newBufferLogger("debug", false)
	log.Warn(context.Background(), "plain")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("stack should be off by default; entry=%s", buf.String())
	}

	log, buf = newBufferLogger("debug", true)
	log.Warn(context.Background(), "stacked")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}
}

func TestLevelFilters(t *testing.T) {
	log, buf := newBufferLogger("warn", false)
	log.Info(context.Background(), "quiet")
	log.Debug(context.Background(), "quieter")
	if buf.Len() != 0 {
		t.Fatalf("expected info and debug to be filtered, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"invalid": zerolog.InfoLevel,
		" DEBUG ": zerolog.DebugLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
