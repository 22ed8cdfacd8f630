package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagBaseURL    = "base-url"
	FlagToken      = "token"
	FlagTokenFile  = "token-file"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// Watch command flags
	FlagTUI              = "tui"
	FlagRoadmapsDir      = "roadmaps-dir"
	FlagMaxRetries       = "max-retries"
	FlagFailOnExhaustion = "fail-on-exhaustion"

	// Login command flags
	FlagEmail    = "email"
	FlagPassword = "password"

	// Log command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"

	// Relay flags (serve, simulate, token)
	FlagListen    = "listen"
	FlagRedisAddr = "redis-addr"
	FlagJWTSecret = "jwt-secret"
	FlagSimulate  = "simulate"
	FlagFailAt    = "fail-at"
	FlagInterval  = "interval"
	FlagUser      = "user"
	FlagTTL       = "ttl"
	FlagSave      = "save"
)
