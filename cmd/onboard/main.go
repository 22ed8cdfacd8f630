package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/daemon"
	"github.com/npratt/onboard/internal/events"
)

var version = "dev"

func main() {
	logLevel := &slog.LevelVar{}
	logger := newLogger(os.Stderr, logLevel)

	viper.SetEnvPrefix("ONBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "onboard",
		Short: "Follow roadmap generation for onboarding sessions",
		Long: `onboard follows the progress stream of a roadmap generation session,
shows each step as it happens, and saves the finished course roadmap.

While a watch is running it can be inspected and stopped from another
terminal with the status and stop commands.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd.Flags())
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .onboard/config.yaml)")
	rootCmd.PersistentFlags().String(FlagBaseURL, "", "Backend base URL")
	rootCmd.PersistentFlags().String(FlagToken, "", "Access token (overrides the token file)")
	rootCmd.PersistentFlags().String(FlagTokenFile, "", "Token file path")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log file path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for watch control")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("onboard %s\n", version)
		},
	}

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of the running or last watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runStatus(os.Stdout, cfg, viper.GetBool(FlagJSON))
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")

	// Stop command
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := daemon.NewClient(cfg.Paths.Socket).Stop(); err != nil {
				return err
			}
			fmt.Println("Stop requested - watch is unbinding and exiting")
			return nil
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newWatchCmd(logger, logLevel))
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newLoginCmd(logger))
	rootCmd.AddCommand(newHistoryCmd(logger))
	rootCmd.AddCommand(newServeCmd(logger))
	rootCmd.AddCommand(newSimulateCmd(logger))
	rootCmd.AddCommand(newTokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// bindFlags binds the flags of the command being run to viper. Commands
// share flag names, so binding happens per invocation rather than at
// construction.
func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// tui is also a config section; the watch command reads the flag directly.
		if f.Name == FlagTUI {
			return
		}
		_ = viper.BindPFlag(f.Name, f)
	})
}

// loadConfig loads the layered config, applies explicitly set flags and
// resolves paths against the project root.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cmd.Flags(), cfg)

	// Env and flag both land on the same key.
	if token := viper.GetString(FlagToken); token != "" {
		cfg.Auth.Token = token
	}

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies flags that were set on the command line into
// cfg. Flags a command does not define are never Changed.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}

	str(FlagBaseURL, &cfg.Server.BaseURL)
	str(FlagTokenFile, &cfg.Auth.TokenFile)
	str(FlagLogFile, &cfg.Paths.Log)
	str(FlagStateFile, &cfg.Paths.State)
	str(FlagSocketPath, &cfg.Paths.Socket)
	str(FlagRoadmapsDir, &cfg.Paths.Roadmaps)
	str(FlagListen, &cfg.Relay.Listen)
	str(FlagRedisAddr, &cfg.Relay.RedisAddr)
	str(FlagJWTSecret, &cfg.Relay.JWTSecret)
	dur(FlagInterval, &cfg.Relay.SimulateInterval)

	if flags.Changed(FlagMaxRetries) {
		cfg.Reconnect.MaxRetries, _ = flags.GetInt(FlagMaxRetries)
	}
	if flags.Changed(FlagFailOnExhaustion) {
		cfg.Reconnect.FailOnExhaustion, _ = flags.GetBool(FlagFailOnExhaustion)
	}
}

// runStatus asks the running watch for its status and falls back to the
// persisted state file when no watch is running.
func runStatus(w io.Writer, cfg *config.Config, asJSON bool) error {
	status, err := daemon.NewClient(cfg.Paths.Socket).Status()
	if err == nil {
		if asJSON {
			return writeJSON(w, status)
		}
		printLiveStatus(w, status)
		return nil
	}
	if !errors.Is(err, daemon.ErrNotRunning) {
		return err
	}

	state, err := events.ReadState(cfg.Paths.State)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintln(w, "No watch running and no saved state")
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}
	if asJSON {
		return writeJSON(w, state)
	}
	printSavedState(w, state)
	return nil
}

func printLiveStatus(w io.Writer, s *daemon.StatusResponse) {
	_, _ = fmt.Fprintf(w, "Watching: %s\n", sessionOrNone(s.SessionID))
	_, _ = fmt.Fprintf(w, "Progress: %s\n", events.FormatSnapshot(s.Snapshot))
	if s.Attempts > 0 {
		_, _ = fmt.Fprintf(w, "Reconnect attempts: %d\n", s.Attempts)
	}
	_, _ = fmt.Fprintf(w, "Generation: %d\n", s.Generation)
	_, _ = fmt.Fprintf(w, "Uptime: %s\n", s.Uptime)
	_, _ = fmt.Fprintf(w, "Started: %s\n", s.StartTime)
}

func printSavedState(w io.Writer, s *events.State) {
	_, _ = fmt.Fprintln(w, "No watch running; last known state:")
	_, _ = fmt.Fprintf(w, "Session: %s\n", sessionOrNone(s.SessionID))
	_, _ = fmt.Fprintf(w, "Progress: %s\n", events.FormatSnapshot(s.Snapshot))
	_, _ = fmt.Fprintf(w, "Connection: %s\n", s.Connection)
	if s.Reconnects > 0 {
		_, _ = fmt.Fprintf(w, "Reconnects: %d\n", s.Reconnects)
	}
	if s.RoadmapPath != "" {
		_, _ = fmt.Fprintf(w, "Roadmap: %s\n", s.RoadmapPath)
	}
	_, _ = fmt.Fprintf(w, "Updated: %s\n", s.UpdatedAt.Format(time.RFC3339))
}

func sessionOrNone(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
