package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetBeforeInitializeIsNoop(t *testing.T) {
	Use(nil)
	l := Get(CategorySweep)
	l.Info("dropped %d", 1)
	if l != Get(CategorySweep) {
		t.Fatalf("expected cached logger for category")
	}
}

func TestCategoryLoggersAreNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(nil) })

	Get(CategoryInvoke).Info("invoking %s", "ext::geo::area")
	Get(CategoryClassify).With("rule", "arg_must_be").Debug("matched")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "invoke" || entries[0].Message != "invoking ext::geo::area" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].LoggerName != "classify" {
		t.Fatalf("expected classify logger, got %q", entries[1].LoggerName)
	}
	if got := entries[1].ContextMap()["rule"]; got != "arg_must_be" {
		t.Fatalf("expected rule field, got %v", got)
	}
}

func TestInitializeRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.log")
	if err := Initialize(Config{Level: "warn", Format: "json", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Use(nil) })

	if Root().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !Root().Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error should be enabled at warn level")
	}
}

func TestInitializeRejectsUnknownLevel(t *testing.T) {
	if err := Initialize(Config{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestConsoleFormatOmitsWarnStacktraces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	if err := Initialize(Config{Level: "debug", Format: "console", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { Use(nil) })

	Get(CategorySweep).Warn("unaccounted failure in %s", "ext::geo::broken_fn")
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "\twarn\tsweep\t") || !strings.Contains(out, "ext::geo::broken_fn") {
		t.Fatalf("expected console warn entry, got %q", out)
	}
	if strings.Contains(out, "tRunner") {
		t.Fatalf("warn entry should carry no stacktrace, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console encoding, got %q", out)
	}
}
