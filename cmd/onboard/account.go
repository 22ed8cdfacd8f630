package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/onboard/internal/api"
	"github.com/npratt/onboard/internal/auth"
	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/events"
)

func newLoginCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Long: `Exchange an email and password for an access token and save it to the
token file. A running watch picks up the new token on its next
reconnect.

The password is prompted for when --password is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			in := bufio.NewReader(os.Stdin)
			email := viper.GetString(FlagEmail)
			if email == "" {
				if email, err = prompt(in, os.Stderr, "Email: "); err != nil {
					return err
				}
			}
			password := viper.GetString(FlagPassword)
			if password == "" {
				if password, err = readPassword(in, os.Stderr); err != nil {
					return err
				}
			}

			resp, err := login(cmd.Context(), cfg, email, password, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", loginName(resp.User))
			fmt.Printf("Token saved to %s\n", cfg.Auth.TokenFile)
			return nil
		},
	}

	cmd.Flags().String(FlagEmail, "", "Account email")
	cmd.Flags().String(FlagPassword, "", "Account password (prompted when empty)")
	return cmd
}

// login calls the login endpoint and saves the returned token.
func login(ctx context.Context, cfg *config.Config, email, password string, logger *slog.Logger) (*api.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("login: email and password are required")
	}

	client, err := api.NewClient(cfg.Server.BaseURL, nil, cfg.Server.RequestTimeout, logger)
	if err != nil {
		return nil, err
	}
	resp, err := client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := auth.SaveToken(cfg.Auth.TokenFile, resp.Token); err != nil {
		return nil, err
	}
	logger.Debug("token saved", "path", cfg.Auth.TokenFile, "user_id", resp.User.ID)
	return resp, nil
}

func loginName(u api.User) string {
	switch {
	case u.FullName != "" && u.Email != "":
		return fmt.Sprintf("%s <%s>", u.FullName, u.Email)
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

func prompt(in *bufio.Reader, w io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func readPassword(in *bufio.Reader, w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, w, "")
	}
	_, _ = fmt.Fprint(w, "Password: ")
	data, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}

func newHistoryCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the answered questions of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fileTokens := auth.NewFileSource(cfg.Auth.TokenFile, logger)
			client, err := api.NewClient(cfg.Server.BaseURL, auth.Chain{auth.Static(cfg.Auth.Token), fileTokens}, cfg.Server.RequestTimeout, logger)
			if err != nil {
				return err
			}
			history, err := client.ChatHistory(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch history: %w", err)
			}
			if viper.GetBool(FlagJSON) {
				return writeJSON(os.Stdout, history)
			}
			printHistory(os.Stdout, history)
			return nil
		},
	}
	cmd.Flags().Bool(FlagJSON, false, "Output history as JSON")
	return cmd
}

// printHistory prints the questions in answer order.
func printHistory(w io.Writer, h *api.ChatHistory) {
	title := h.Title
	if title == "" {
		title = "(untitled)"
	}
	_, _ = fmt.Fprintf(w, "%s [%s]\n", events.SafeString(title), events.SafeString(h.Status))
	if len(h.History) == 0 {
		_, _ = fmt.Fprintln(w, "No answered questions")
		return
	}

	items := append([]api.HistoryItem(nil), h.History...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	for i, item := range items {
		_, _ = fmt.Fprintf(w, "\n%d. %s\n", i+1, events.SafeString(item.Question))
		_, _ = fmt.Fprintf(w, "   %s\n", events.SafeString(item.Answer))
	}
}
