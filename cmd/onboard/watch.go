package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/npratt/onboard/internal/api"
	"github.com/npratt/onboard/internal/auth"
	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/consumer"
	"github.com/npratt/onboard/internal/controller"
	"github.com/npratt/onboard/internal/daemon"
	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/reconnect"
	"github.com/npratt/onboard/internal/shutdown"
	"github.com/npratt/onboard/internal/tui"
	"github.com/npratt/onboard/internal/wsconn"
)

const (
	shutdownTimeout = 10 * time.Second
	uiEventBuffer   = 1000
	plainSnapBuffer = 64
)

// errExhausted is returned when the stream could not be re-established and
// the policy left the last snapshot in place.
var errExhausted = errors.New("reconnect attempts exhausted")

func newWatchCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow roadmap generation for a session",
		Long: `Connect to the progress stream of a session and follow it until the
roadmap is generated or generation fails.

The finished roadmap is saved under paths.roadmaps. Transient disconnects
are retried with exponential backoff. The terminal UI is used when stdout
is a TTY unless --tui=false is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Explicit flag > config > auto-detect from TTY
			tuiEnabled := cfg.TUI.Enabled
			if cmd.Flags().Changed(FlagTUI) {
				tuiEnabled, _ = cmd.Flags().GetBool(FlagTUI)
			} else if !tuiEnabled {
				tuiEnabled = tui.IsTerminal()
			}

			return shutdown.Run(cmd.Context(), logger, shutdownTimeout, func(ctx context.Context) error {
				return runWatch(ctx, cfg, args[0], watchOptions{
					tui:      tuiEnabled,
					logger:   logger,
					logLevel: logLevel,
					out:      os.Stdout,
				})
			})
		},
	}

	cmd.Flags().Bool(FlagTUI, false, "Enable terminal UI")
	cmd.Flags().String(FlagRoadmapsDir, "", "Directory completed roadmaps are saved to")
	cmd.Flags().Int(FlagMaxRetries, 0, "Reconnect attempts before giving up")
	cmd.Flags().Bool(FlagFailOnExhaustion, false, "Report an error when reconnect attempts run out")
	return cmd
}

type watchOptions struct {
	tui      bool
	logger   *slog.Logger
	logLevel slog.Leveler
	out      io.Writer
}

// runWatch follows sessionID until it reaches a terminal snapshot, the
// user quits, or ctx is done.
func runWatch(ctx context.Context, cfg *config.Config, sessionID string, opts watchOptions) error {
	logger := opts.logger
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Log), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	// TUI mode: redirect logger to file before anything logs
	if opts.tui {
		res, err := SetupTUILogger(filepath.Dir(cfg.Paths.Log), opts.logLevel, cfg.LogRotation)
		if err != nil {
			return err
		}
		defer func() { _ = res.Close() }()
		logger = res.Logger
		slog.SetDefault(logger)
	}

	logger.Info("onboard watching",
		"version", version,
		"session_id", sessionID,
		"base_url", cfg.Server.BaseURL,
		"log_file", cfg.Paths.Log,
		"state_file", cfg.Paths.State,
	)

	router := events.NewRouter(events.DefaultBufferSize)
	router.SetLogger(logger)

	// Sinks outlive the watch context so the final unbind is recorded.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()

	logSink := events.NewLogSink(cfg.Paths.Log, logger)
	if err := logSink.Start(sinkCtx, router.Subscribe()); err != nil {
		return fmt.Errorf("start log sink: %w", err)
	}
	stateSink := events.NewStateSink(cfg.Paths.State, logger)
	if err := stateSink.Start(sinkCtx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
		router.Close()
		_ = logSink.Stop()
		return fmt.Errorf("start state sink: %w", err)
	}

	fileTokens := auth.NewFileSource(cfg.Auth.TokenFile, logger)
	if err := fileTokens.Start(ctx); err != nil {
		logger.Warn("token file watch disabled", "path", cfg.Auth.TokenFile, "error", err)
	}
	tokens := auth.Chain{auth.Static(cfg.Auth.Token), fileTokens}

	address, err := api.RoadmapAddress(cfg.Server.BaseURL, tokens)
	if err != nil {
		_ = fileTokens.Stop()
		router.Close()
		_ = logSink.Stop()
		_ = stateSink.Stop()
		return err
	}

	dialer := wsconn.NewDialer(cfg.Server.HandshakeTimeout, logger)
	dialer.SetHeader("User-Agent", "onboard/"+version)

	policy := reconnect.Policy{
		MaxRetries:       cfg.Reconnect.MaxRetries,
		BaseDelay:        cfg.Reconnect.BaseDelay,
		MaxDelay:         cfg.Reconnect.MaxDelay,
		FailOnExhaustion: cfg.Reconnect.FailOnExhaustion,
	}
	ctrl := controller.New(dialer, address, policy, router, logger)

	followSnaps := ctrl.Subscribe()
	uiEvents := router.SubscribeBuffered(uiEventBuffer)
	exhausted := watchExhausted(router.Subscribe())

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		_ = ctrl.Run(watchCtx)
	}()

	dmn := daemon.New(cfg.Paths.Socket, ctrl, cancel, logger)
	dmnDone := make(chan struct{})
	go func() {
		defer close(dmnDone)
		if err := dmn.Start(watchCtx); err != nil {
			logger.Warn("control socket unavailable", "socket", cfg.Paths.Socket, "error", err)
		}
	}()

	// Plain output is fed from the consumer so the terminal snapshot is
	// never replaced by the Idle published on shutdown.
	var (
		uiSnaps    <-chan progress.Snapshot
		plainSnaps chan progress.Snapshot
		next       consumer.Handler
	)
	if opts.tui {
		uiSnaps = ctrl.Subscribe()
	} else {
		plainSnaps = make(chan progress.Snapshot, plainSnapBuffer)
		uiSnaps = plainSnaps
		next = consumer.Funcs{Update: func(s progress.Snapshot) {
			select {
			case plainSnaps <- s:
			case <-watchCtx.Done():
			}
		}}
	}
	saver := consumer.NewSaver(cfg.Paths.Roadmaps, sessionID, router, logger, next)

	var (
		final     progress.Snapshot
		followErr error
	)
	followDone := make(chan struct{})
	go func() {
		defer close(followDone)
		final, followErr = consumer.Follow(watchCtx, followSnaps, saver)
	}()

	uiOpts := []tui.Option{
		tui.WithSession(sessionID),
		tui.WithMaxLines(cfg.TUI.EventLines),
		tui.WithOnQuit(cancel),
		tui.WithOutput(opts.out),
		tui.WithPlain(!opts.tui),
	}
	ui := tui.New(uiEvents, uiSnaps, uiOpts...)
	uiDone := make(chan error, 1)
	go func() { uiDone <- ui.Run() }()

	ctrl.Bind(sessionID)

	var uiErr error
	uiFinished := false
	gaveUp := false
	if opts.tui {
		// The TUI stays up after a terminal snapshot until the user quits.
		uiErr, uiFinished = <-uiDone, true
	} else {
		select {
		case <-followDone:
		case <-exhausted:
			gaveUp = true
		case uiErr = <-uiDone:
			uiFinished = true
		case <-watchCtx.Done():
		}
	}
	select {
	case <-exhausted:
		gaveUp = true
	default:
	}

	cancel()
	<-followDone
	if plainSnaps != nil {
		close(plainSnaps)
	}
	if !uiFinished {
		uiErr = <-uiDone
	}
	<-ctrlDone
	<-dmnDone

	_ = fileTokens.Stop()
	router.Close()
	_ = logSink.Stop()
	_ = stateSink.Stop()

	if opts.tui {
		printSummary(opts.out, final, saver.Path())
	}

	result := watchResult(final, followErr, gaveUp, saver.Err())
	logger.Info("watch finished", "session_id", sessionID, "status", final.Status, "error", result)
	return errors.Join(uiErr, result)
}

// watchExhausted returns a channel that is closed the first time a
// ReconnectExhaustedEvent arrives on ch. It keeps draining ch until the
// router closes it.
func watchExhausted(ch <-chan events.Event) <-chan struct{} {
	exhausted := make(chan struct{})
	go func() {
		fired := false
		for ev := range ch {
			if !fired && ev.Type() == events.EventReconnectExhausted {
				fired = true
				close(exhausted)
			}
		}
	}()
	return exhausted
}

// watchResult maps how a watch ended to the command's error. A user stop
// is not an error.
func watchResult(final progress.Snapshot, followErr error, gaveUp bool, saveErr error) error {
	switch {
	case final.Status == progress.StatusError:
		return fmt.Errorf("roadmap generation failed: %s", final.Message())
	case final.Status == progress.StatusCompleted:
		if saveErr != nil {
			return fmt.Errorf("save roadmap: %w", saveErr)
		}
		return nil
	case gaveUp:
		return errExhausted
	case followErr == nil, errors.Is(followErr, context.Canceled), errors.Is(followErr, consumer.ErrClosed):
		return nil
	default:
		return followErr
	}
}

// printSummary prints the outcome once the TUI has released the screen.
func printSummary(w io.Writer, final progress.Snapshot, savedPath string) {
	switch final.Status {
	case progress.StatusCompleted:
		if final.Result != nil {
			_, _ = fmt.Fprintf(w, "Roadmap ready: %s\n", events.SafeString(final.Result.Title))
		}
		if savedPath != "" {
			_, _ = fmt.Fprintf(w, "Saved to %s\n", savedPath)
		}
	case progress.StatusError:
		_, _ = fmt.Fprintf(w, "Generation failed: %s\n", events.SafeString(final.Message()))
	}
}
