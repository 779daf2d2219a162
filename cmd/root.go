package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NAMEAMITSONI/authopsy/internal/config"
	"github.com/NAMEAMITSONI/authopsy/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "authopsy",
	Short: "Differential authorization scanner for REST APIs",
	Long: `Authopsy - Differential Authorization Scanner

Replays every endpoint of a REST API under three identities (admin, user,
anonymous), compares the responses, and classifies broken access control:
vertical escalation, missing authentication, role confusion, sensitive
field exposure and pagination bypasses.

Fuzz mode probes endpoints under the user identity with a catalog of
bypass query parameters and headers (X-Debug, X-Forwarded-For, X-Role,
show_all, ...) and flags any probe that flips a denial or inflates the
response.

Endpoints come from an OpenAPI 3.x / Swagger 2.0 document or a manual
list. Findings go to the console, a JSON export, an HTML report, or
PostgreSQL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cmd.SetContext(logger.WithLogger(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux.
			_ = log.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "error", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (default 10s)")
	viper.BindPFlag("http.timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.PersistentFlags().Float64("rate-limit", 0, "requests per second across all workers (0 = unlimited)")
	rootCmd.PersistentFlags().Int("rate-burst", 0, "rate limit burst size")
	viper.BindPFlag("rate_limit.requests_per_second", rootCmd.PersistentFlags().Lookup("rate-limit"))
	viper.BindPFlag("rate_limit.burst_size", rootCmd.PersistentFlags().Lookup("rate-burst"))

	rootCmd.PersistentFlags().String("db-dsn", "", "PostgreSQL connection string for persisting results (optional)")
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))

	viper.BindEnv("scanner.admin_token", "AUTHOPSY_ADMIN_TOKEN")
	viper.BindEnv("scanner.user_token", "AUTHOPSY_USER_TOKEN")
}

func initConfig() error {
	// Configuration comes from flags and environment only, no YAML files.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("AUTHOPSY")

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return nil
}
