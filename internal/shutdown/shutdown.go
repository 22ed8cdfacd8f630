// Package shutdown runs a long-lived command until it finishes or the
// process receives SIGINT or SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Func releases one resource. It should return once ctx is done.
type Func func(ctx context.Context) error

// Run calls runner with a context that is cancelled on the first signal.
// After a signal, each cleanup runs in reverse order within timeout and
// Run waits for runner to return. A runner that exits on its own skips
// the cleanups and its error is returned as is.
func Run(ctx context.Context, logger *slog.Logger, timeout time.Duration, runner func(ctx context.Context) error, cleanups ...Func) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	return run(ctx, sigCh, logger, timeout, runner, cleanups)
}

func run(ctx context.Context, sigCh <-chan os.Signal, logger *slog.Logger, timeout time.Duration, runner func(ctx context.Context) error, cleanups []Func) error {
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- runner(runCtx) }()

	select {
	case err := <-runDone:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context done, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](shutdownCtx); err != nil {
			logger.Error("cleanup failed", "error", err)
			errs = append(errs, err)
		}
	}

	select {
	case err := <-runDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded", "timeout", timeout)
		errs = append(errs, errors.New("shutdown timed out"))
	}

	logger.Info("shutdown complete")
	return errors.Join(errs...)
}
