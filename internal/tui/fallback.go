package tui

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/roadmap"
)

// IsTerminal reports whether both stdout and stdin are TTYs.
func IsTerminal() bool {
	return isTerminal()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalSize returns 0, 0 when the size cannot be determined.
func terminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return width, height
}

func terminalTooSmall() bool {
	width, height := terminalSize()
	return width < minWidth || height < minHeight
}

// runSimple prints one timestamped line per event and the roadmap
// outline once a completed snapshot arrives. It returns when the
// snapshot channel closes.
func (t *TUI) runSimple() error {
	eventChan := t.eventChan
	snapChan := t.snapChan
	printedOutline := false

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				eventChan = nil
				continue
			}
			if text := events.FormatWithTimestamp(event); text != "" {
				if _, err := fmt.Fprintln(t.out, text); err != nil {
					return err
				}
			}
		case snap, ok := <-snapChan:
			if !ok {
				return t.drainEvents(eventChan)
			}
			if snap.Status == progress.StatusCompleted && !printedOutline {
				printedOutline = true
				if _, err := fmt.Fprint(t.out, roadmap.Outline(snap.Result)); err != nil {
					return err
				}
			}
		}
	}
}

// drainEvents prints events that were already buffered when the
// controller stopped.
func (t *TUI) drainEvents(eventChan <-chan events.Event) error {
	for eventChan != nil {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return nil
			}
			if text := events.FormatWithTimestamp(event); text != "" {
				if _, err := fmt.Fprintln(t.out, text); err != nil {
					return err
				}
			}
		default:
			return nil
		}
	}
	return nil
}
