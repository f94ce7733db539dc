// Package cli implements the wikiharness command.
//
// wikiharness drives the integration test harness by hand: bring up a seeded server, fetch a token,
// reset a database to the fixture or inspect the table wipe order.
// Settings come from the same environment variables the tests use (see internal/config/harness.go).
package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/version"
)

var (
	cfg       *config.HarnessEnvironment
	appLogger *slog.Logger

	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:               "wikiharness",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Wiki integration test harness",
	Long:              `wikiharness starts, seeds and authenticates against a wiki server the way the integration tests do`,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			os.Setenv("HARNESS_CONFIG_FILE", configFile)
		}

		var err error
		cfg, err = config.NewHarnessConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(logLevel), "dev")
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML harness config file (same as HARNESS_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error|none")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(wipeOrderCmd)
	rootCmd.AddCommand(fixtureCmd)
}
