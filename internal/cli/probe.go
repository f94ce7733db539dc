package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Wait until a server answers its liveness endpoint",
	Long: `Poll HARNESS_LIVENESS_PATH on the server with the harness readiness settings
(HARNESS_READY_ATTEMPTS, HARNESS_READY_INTERVAL, HARNESS_PROBE_TIMEOUT).
Exits non-zero when the server is not ready in time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.ServerURL
		if len(args) == 1 {
			url = args[0]
		}
		if url == "" {
			return fmt.Errorf("no server URL: pass one or set TEST_SERVER_URL")
		}

		prober := harness.NewProber(cfg.LivenessPath, cfg.ProbeTimeout, appLogger)

		start := time.Now()
		if !prober.WaitUntilReady(cmd.Context(), harness.External(url), cfg.ReadyAttempts, cfg.ReadyInterval) {
			return fmt.Errorf("%s not ready after %d attempts", url, cfg.ReadyAttempts)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s ready after %s\n", url, time.Since(start).Round(time.Millisecond))
		return nil
	},
}
