package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/internal/observability"
)

var (
	client *gatewayClient
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tenderctl",
	Short: "Command line client for the tender extraction gateway",
	Long: `Sends Arabic and English tender documents to a running api-gateway for
structured extraction, and inspects provider quotas and budget spend.

The server address and bearer token come from --server and --token or the
TENDERS_SERVER and TENDERS_TOKEN environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		l, err := observability.NewLogger(level, "console")
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l

		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		client = newGatewayClient(server, token, timeout)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("server", envOr("TENDERS_SERVER", "http://localhost:8080"), "gateway base URL")
	f.String("token", os.Getenv("TENDERS_TOKEN"), "bearer token for the gateway")
	f.Duration("timeout", 3*time.Minute, "request timeout")
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	f.Bool("json", false, "print raw JSON instead of a table")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
