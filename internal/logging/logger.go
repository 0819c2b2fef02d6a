package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
)

// Options controls where log lines go.
type Options struct {
	Level   string
	Dir     string    // empty disables the daily log file
	Console io.Writer // nil means os.Stderr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the default JSON slog logger writing to the console and,
// when Dir is set, to a daily file under Dir. The returned closer releases
// the file.
//
// The console defaults to stderr so commands printing results to stdout
// stay machine readable.
func Setup(opts Options) (io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if opts.Dir != "" {
		file, err := openDailyFile(opts.Dir, time.Now)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))

	slog.Info("logging initialized",
		"level", level.String(),
		"logDir", opts.Dir,
	)
	return closer, nil
}

// dailyFile appends to <prefix>YYYY-MM-DD.log and switches to a new file on
// the first write after midnight, pruning expired files when it does.
type dailyFile struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func openDailyFile(dir string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	d := &dailyFile{dir: dir, now: now}
	if err := d.rotate(now()); err != nil {
		return nil, err
	}
	return d, nil
}

// rotate opens the file for t's day. Callers hold mu, or own d exclusively.
func (d *dailyFile) rotate(t time.Time) error {
	path := filepath.Join(d.dir, LogFileName(t))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}
	if d.file != nil {
		d.file.Close()
	}
	d.file = f
	d.day = t.Format(time.DateOnly)

	// Runs in a goroutine: its own log lines would re-enter Write.
	go CleanOldLogs(d.dir, config.LogMaxAgeDays)
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t := d.now(); t.Format(time.DateOnly) != d.day {
		if err := d.rotate(t); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// LogFileName returns the daily log file name for t.
func LogFileName(t time.Time) string {
	return config.LogFilePrefix + t.Format(time.DateOnly) + ".log"
}

// CleanOldLogs deletes this program's log files in logDir last modified more
// than maxAgeDays ago and returns how many were removed.
func CleanOldLogs(logDir string, maxAgeDays int) int {
	matches, err := filepath.Glob(filepath.Join(logDir, config.LogFilePrefix+"*.log"))
	if err != nil {
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove old log file", "file", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("cleaned old log files", "removed", removed, "maxAgeDays", maxAgeDays)
	}
	return removed
}

// parseLevel accepts slog's level names plus "warning", case-insensitively.
// An empty string means info.
func parseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
