package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/npratt/onboard/internal/events"
)

const followPollInterval = 200 * time.Millisecond

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "View recent watch events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if viper.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), os.Stdout, cfg.Paths.Log)
			}
			return tailLast(os.Stdout, cfg.Paths.Log, viper.GetInt(FlagCount))
		},
	}

	cmd.Flags().Bool(FlagFollow, false, "Follow the event log (like tail -f)")
	cmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	return cmd
}

// tailLast prints the last n events of the log at path.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	if _, err := events.ReadLog(file, func(ev events.Event) {
		lines = append(lines, events.FormatWithTimestamp(ev))
	}); err != nil {
		return err
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "No events yet")
		return nil
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// waitForFile polls until path exists or ctx is done.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open log file: %w", err)
			}
		}
	}
}

// tailFollow prints events appended to the log until ctx is done.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
		if file, err = waitForFile(ctx, path); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Keep half-written lines until the rest arrives.
			partial += line
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(followPollInterval):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		printLogLine(w, strings.TrimSuffix(partial+line, "\n"))
		partial = ""
	}
}

// printLogLine formats one JSONL line. Lines that are not events are
// printed as is.
func printLogLine(w io.Writer, line string) {
	if line == "" {
		return
	}
	ev, err := events.ParseEvent([]byte(line))
	switch {
	case err != nil:
		_, _ = fmt.Fprintln(w, line)
	case ev != nil:
		_, _ = fmt.Fprintln(w, events.FormatWithTimestamp(ev))
	}
}
