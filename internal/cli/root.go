package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/mq"
	"github.com/shaiso/agen8/internal/repo"
	"github.com/shaiso/agen8/internal/telemetry"
)

// NewRootCmd собирает корневую команду agen8 со всеми подкомандами.
func NewRootCmd(version string) *cobra.Command {
	var jsonOutput bool
	var amqpURL string
	var dbURL string
	var ratePerHost float64
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "agen8",
		Short:         "agen8 — DAG workflow engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Логи идут в stderr, чтобы не мешать --json в stdout
			logger := telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.ParseLevel(logLevel), "text")
			cmd.SetContext(telemetry.WithLogger(runContext(cmd), logger))
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", envOr("RABBITMQ_URL", mq.DefaultURL()), "RabbitMQ URL")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", envOr("DB_URL", repo.DefaultDSN), "PostgreSQL URL")
	rootCmd.PersistentFlags().Float64Var(&ratePerHost, "rate-per-host", 0, "Outbound HTTP requests per second per host (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "WARN"), "Log level (DEBUG, INFO, WARN, ERROR)")

	outputFn := func() *Output {
		return NewOutputTo(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), jsonOutput)
	}
	registryFn := func() *actions.Registry {
		return actions.BuiltinRegistry(actions.Options{RatePerHost: ratePerHost, Burst: 1})
	}
	amqpURLFn := func() string { return amqpURL }
	dbURLFn := func() string { return dbURL }

	rootCmd.AddCommand(
		NewValidateCmd(registryFn, outputFn),
		NewRunCmd(registryFn, outputFn),
		NewActionsCmd(registryFn, outputFn),
		NewSubmitCmd(registryFn, amqpURLFn, outputFn),
		NewReportsCmd(dbURLFn, outputFn),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
