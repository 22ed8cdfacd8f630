package events

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/npratt/onboard/internal/progress"
)

const (
	maxDetailLength   = 120
	maxPreviewLength  = 60
	truncateIndicator = "..."
)

// stepEmojis decorate the step labels the roadmap engine reports.
var stepEmojis = map[string]string{
	"analysing_answers":  "\U0001F50D",
	"researching":        "\U0001F4DA",
	"planning":           "\U0001F5FA\uFE0F",
	"generating_roadmap": "\u2728",
	"done":               "\u2705",
	"failed":             "\u274C",
}

// StepEmoji returns the glyph for a known step, or "".
func StepEmoji(step string) string {
	return stepEmojis[step]
}

// StepLabel renders a step for display: "researching" becomes
// "📚 researching". Unknown steps are returned sanitized and undecorated.
func StepLabel(step string) string {
	step = SafeString(step)
	if step == "" {
		return ""
	}
	if emoji := StepEmoji(step); emoji != "" {
		return emoji + " " + step
	}
	return step
}

// FormatSnapshot renders a snapshot as a single status line.
func FormatSnapshot(s progress.Snapshot) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %3d%%", StatusSymbol(s.Status), s.ProgressPercent))
	parts = append(parts, string(s.Status))
	if label := StepLabel(s.Step); label != "" {
		parts = append(parts, label)
	}
	switch {
	case s.Status == progress.StatusError:
		if msg := SafeString(s.Message()); msg != "" {
			parts = append(parts, "- "+Truncate(msg, maxDetailLength))
		}
	case s.Detail != "":
		parts = append(parts, "- "+Truncate(s.Detail, maxDetailLength))
	}
	return strings.Join(parts, " ")
}

// Format converts an event to a human-readable string.
// Returns "" for nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *SessionBoundEvent:
		return fmt.Sprintf("bound to session %s (generation %d)", SafeString(e.SessionID), e.Generation)
	case *SessionUnboundEvent:
		return fmt.Sprintf("unbound from session %s", SafeString(e.SessionID))
	case *ConnectionOpeningEvent:
		return formatOpening(e)
	case *ConnectionOpenedEvent:
		return "connected"
	case *ConnectionClosedEvent:
		return formatClosed(e)
	case *FrameDroppedEvent:
		return formatDropped(e)
	case *ReconnectScheduledEvent:
		return fmt.Sprintf("reconnecting in %s (attempt %d)", e.Delay, e.Attempt)
	case *ReconnectExhaustedEvent:
		return fmt.Sprintf("[!] giving up after %d reconnect attempts", e.Attempts)
	case *SnapshotPublishedEvent:
		return FormatSnapshot(e.Snapshot)
	case *RoadmapSavedEvent:
		return fmt.Sprintf("[+] roadmap saved to %s", SafeString(e.Path))
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp formats an event with a clock prefix.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func formatOpening(e *ConnectionOpeningEvent) string {
	target := SafeString(e.Address)
	if target == "" {
		target = SafeString(e.SessionID)
	}
	if e.Attempt > 0 {
		return fmt.Sprintf("connecting to %s (retry %d)", target, e.Attempt)
	}
	return fmt.Sprintf("connecting to %s", target)
}

func formatClosed(e *ConnectionClosedEvent) string {
	reason := SafeString(e.Reason)
	msg := fmt.Sprintf("connection closed: %d", e.Code)
	if reason != "" {
		msg += " " + Truncate(reason, maxDetailLength)
	}
	if e.Decision != "" {
		msg += " -> " + e.Decision
	}
	return msg
}

func formatDropped(e *FrameDroppedEvent) string {
	if e.Preview == "" {
		return fmt.Sprintf("dropped malformed frame (%d bytes)", e.Size)
	}
	return fmt.Sprintf("dropped malformed frame (%d bytes): %s", e.Size, Truncate(e.Preview, maxPreviewLength))
}

func formatError(e *ErrorEvent) string {
	severity := SafeString(e.Severity)
	if severity == "" {
		severity = SeverityError
	}
	return fmt.Sprintf("%s: %s", strings.ToUpper(severity), Truncate(e.Message, maxDetailLength))
}

// RedactAddress hides the token query parameter of a stream address.
func RedactAddress(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Truncate shortens text to maxLen bytes, adding an indicator if truncated.
// The cut never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	cut := maxLen - len(truncateIndicator)
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncateIndicator
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SafeString sanitizes server-provided text for a terminal: escape
// sequences and control characters are removed and whitespace collapsed.
func SafeString(s string) string {
	s = StripANSI(s)

	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		if r != ' ' && unicode.IsControl(r) {
			continue
		}
		if r == ' ' {
			if space {
				continue
			}
			space = true
		} else {
			space = false
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}

// StatusSymbol returns a one-character marker for a snapshot status.
func StatusSymbol(status progress.Status) string {
	switch status {
	case progress.StatusConnecting:
		return "."
	case progress.StatusPending:
		return ">"
	case progress.StatusInProgress:
		return "~"
	case progress.StatusCompleted:
		return "+"
	case progress.StatusError:
		return "x"
	default:
		return "-"
	}
}
