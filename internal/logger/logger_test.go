package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestInitDefaultsToDebugOnUnknownLevel(t *testing.T) {
	if err := Init("nonsense", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !Log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug-level logging to be enabled for an unrecognized level string")
	}
}

func TestInitWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobwrited.log")
	if err := Init("info", path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Info("startup", "addr", ":8080")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to contain the Info line")
	}
}

func TestLevelHelpers(t *testing.T) {
	if err := Init("warn", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	Warn("disk nearly full")
	Error("sweep failed")
}
