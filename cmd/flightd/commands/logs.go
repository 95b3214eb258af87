package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  time.Duration
	logsFile   string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show flightd server logs",
	Long: `Show logs from a flightd server running in background mode.

Reads the daemon log file and optionally follows it for new output,
similar to 'tail -f'.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show from the end of the log")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "Only show entries newer than this duration (e.g. 10m, 1h)")
	logsCmd.Flags().StringVar(&logsFile, "log-file", "", "Path to log file (default: $XDG_STATE_HOME/flightd/flightd.log)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := logsFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	if _, err := os.Stat(logPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no log file at %s (is flightd running in background mode?)", logPath)
		}
		return fmt.Errorf("failed to access log file: %w", err)
	}

	if err := showLogs(logPath); err != nil {
		return err
	}

	if logsFollow {
		return followLogs(logPath)
	}
	return nil
}

// showLogs prints the last N lines of the log file, filtered by --since.
func showLogs(logPath string) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var cutoff time.Time
	if logsSince > 0 {
		cutoff = time.Now().Add(-logsSince)
	}

	scanner := bufio.NewScanner(file)
	// Structured log lines can get long with nested error context.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if !cutoff.IsZero() {
			if ts, ok := extractTimestamp(line); ok && ts.Before(cutoff) {
				continue
			}
		}
		lines = append(lines, line)
		if logsLines > 0 && len(lines) > logsLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// followLogs streams appended log lines until interrupted.
func followLogs(logPath string) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logPath); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	reader := bufio.NewReader(file)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				for {
					line, err := reader.ReadString('\n')
					if len(line) > 0 {
						fmt.Print(line)
					}
					if err != nil {
						break
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// extractTimestamp parses the leading timestamp from a log line. Handles
// both text ("time=2026-01-02T15:04:05...") and JSON ("{"time":"...")
// formats emitted by the logger.
func extractTimestamp(line string) (time.Time, bool) {
	const prefixText = "time="
	const prefixJSON = `{"time":"`

	var raw string
	switch {
	case len(line) > len(prefixText) && line[:len(prefixText)] == prefixText:
		raw = line[len(prefixText):]
	case len(line) > len(prefixJSON) && line[:len(prefixJSON)] == prefixJSON:
		raw = line[len(prefixJSON):]
	default:
		return time.Time{}, false
	}

	// Trim at the first delimiter after the timestamp.
	for i, c := range raw {
		if c == ' ' || c == '"' {
			raw = raw[:i]
			break
		}
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
