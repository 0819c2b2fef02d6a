package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetup(t *testing.T) {
	tmpDir := t.TempDir()
	var console bytes.Buffer

	closer, err := Setup(Options{Level: "info", Dir: tmpDir, Console: &console})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer closer.Close()

	expectedFile := filepath.Join(tmpDir, LogFileName(time.Now()))
	if _, err := os.Stat(expectedFile); os.IsNotExist(err) {
		t.Errorf("expected log file %q to exist", expectedFile)
	}

	if !strings.Contains(console.String(), "logging initialized") {
		t.Errorf("expected console output to contain init line, got %q", console.String())
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer

	closer, err := Setup(Options{Level: "debug", Console: &console})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer closer.Close()

	slog.Debug("console only debug line")

	if !strings.Contains(console.String(), "console only debug line") {
		t.Errorf("expected debug line on console, got %q", console.String())
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	closer, err := Setup(Options{Level: "invalid", Dir: t.TempDir(), Console: &bytes.Buffer{}})
	if closer != nil {
		defer closer.Close()
	}
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestCleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "vaultscan-2020-01-01.log")
	newFile := filepath.Join(tmpDir, LogFileName(time.Now()))
	otherFile := filepath.Join(tmpDir, "unrelated.log")

	for _, f := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	past := time.Now().AddDate(0, 0, -60)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(otherFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed := CleanOldLogs(tmpDir, 30)
	if removed != 1 {
		t.Fatalf("CleanOldLogs() removed %d, want 1", removed)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("expected old log file to be removed")
	}
	if _, err := os.Stat(otherFile); err != nil {
		t.Error("expected unrelated file to be kept")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"invalid", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDailyFile_RotatesAtMidnight(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	f, err := openDailyFile(dir, func() time.Time { return now })
	if err != nil {
		t.Fatalf("openDailyFile() error = %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("before\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := f.Write([]byte("after\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tests := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "before\n"},
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "after\n"},
	}
	for _, tt := range tests {
		got, err := os.ReadFile(filepath.Join(dir, LogFileName(tt.day)))
		if err != nil {
			t.Fatalf("read %s: %v", LogFileName(tt.day), err)
		}
		if string(got) != tt.want {
			t.Errorf("%s = %q, want %q", LogFileName(tt.day), got, tt.want)
		}
	}
}
