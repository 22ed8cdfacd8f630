package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/npratt/onboard/internal/auth"
	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/relay"
	"github.com/npratt/onboard/internal/shutdown"
)

func newServeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development relay server",
		Long: `Serve the roadmap progress stream and a development login endpoint.

Progress is read from Redis when --redis-addr (or relay.redis_addr) is set,
otherwise from an in-memory bus. With --simulate <session-id> a scripted
generation run is published for that session once the server is up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			simulate := viper.GetString(FlagSimulate)
			failAt := viper.GetString(FlagFailAt)
			if !viper.GetBool(FlagVerbose) {
				gin.SetMode(gin.ReleaseMode)
			}

			return shutdown.Run(cmd.Context(), logger, shutdownTimeout, func(ctx context.Context) error {
				return runServe(ctx, cfg, simulate, failAt, logger)
			})
		},
	}

	cmd.Flags().String(FlagListen, "", "Listen address (default: relay.listen)")
	cmd.Flags().String(FlagRedisAddr, "", "Redis address; empty uses the in-memory bus")
	cmd.Flags().String(FlagJWTSecret, "", "HS256 secret for stream tokens")
	cmd.Flags().String(FlagSimulate, "", "Publish a simulated run for this session id")
	cmd.Flags().String(FlagFailAt, "", "Step at which the simulated run fails")
	cmd.Flags().Duration(FlagInterval, 0, "Delay between simulated frames")
	return cmd
}

// openBus picks the Redis bus when an address is configured.
func openBus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (relay.Bus, error) {
	if cfg.Relay.RedisAddr == "" {
		return relay.NewMemoryBus(cfg.Relay.StateTTL, logger), nil
	}
	bus, err := relay.NewRedisBus(ctx, cfg.Relay.RedisAddr, cfg.Relay.StateTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("open redis bus: %w", err)
	}
	return bus, nil
}

func runServe(ctx context.Context, cfg *config.Config, simulate, failAt string, logger *slog.Logger) error {
	bus, err := openBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	srv := relay.NewServer(bus, cfg.Relay.JWTSecret, cfg.Relay.TokenTTL, logger)

	if simulate != "" {
		sim := relay.NewSimulator(bus, cfg.Relay.SimulateInterval, logger)
		sim.FailAt = failAt
		go func() {
			if err := sim.Run(ctx, simulate); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("simulation failed", "session_id", simulate, "error", err)
			}
		}()
	}

	return srv.ListenAndServe(ctx, cfg.Relay.Listen)
}

func newSimulateCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <session-id>",
		Short: "Publish a simulated generation run to Redis",
		Long: `Publish the scripted generation steps for a session to Redis, the way
the generation engine does. A relay started with the same Redis address
forwards them to watchers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Relay.RedisAddr == "" {
				return errors.New("simulate needs --redis-addr (use serve --simulate for the in-memory bus)")
			}

			return shutdown.Run(cmd.Context(), logger, shutdownTimeout, func(ctx context.Context) error {
				bus, err := openBus(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer func() { _ = bus.Close() }()

				sim := relay.NewSimulator(bus, cfg.Relay.SimulateInterval, logger)
				sim.FailAt = viper.GetString(FlagFailAt)
				return sim.Run(ctx, args[0])
			})
		},
	}

	cmd.Flags().String(FlagRedisAddr, "", "Redis address")
	cmd.Flags().String(FlagFailAt, "", "Step at which the run fails")
	cmd.Flags().Duration(FlagInterval, 0, "Delay between frames")
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long: `Sign a token the development relay accepts. With --save the token is
written to the token file so watch and history use it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ttl := cfg.Relay.TokenTTL
			if cmd.Flags().Changed(FlagTTL) {
				ttl = viper.GetDuration(FlagTTL)
			}

			token, err := relay.IssueToken(cfg.Relay.JWTSecret, viper.GetString(FlagUser), ttl)
			if err != nil {
				return err
			}
			if viper.GetBool(FlagSave) {
				if err := auth.SaveToken(cfg.Auth.TokenFile, token); err != nil {
					return err
				}
				fmt.Printf("Token saved to %s\n", cfg.Auth.TokenFile)
				return nil
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().String(FlagUser, "dev-user", "User id to put in the token")
	cmd.Flags().String(FlagJWTSecret, "", "HS256 secret (default: relay.jwt_secret)")
	cmd.Flags().Duration(FlagTTL, 0, "Token lifetime (default: relay.token_ttl)")
	cmd.Flags().Bool(FlagSave, false, "Save the token to the token file")
	return cmd
}
