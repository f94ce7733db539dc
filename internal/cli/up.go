package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a seeded server and keep it running",
	Long: `Start the wiki server the way the integration tests do (HARNESS_MODE), seed the fixture and
log in as the test identity. The server runs until interrupted.

The printed TEST_SERVER_URL can be used to run the integration tests against this server:

  wikiharness up
  TEST_SERVER_URL=http://127.0.0.1:41234 go test -tags=integration ./test/integration`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := harness.New(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Teardown(context.WithoutCancel(ctx)); err != nil {
			appLogger.Warn("teardown failed", slog.String("error", err.Error()))
		}
	}()

	if _, _, err := h.Setup(ctx); err != nil {
		return err
	}

	token, err := h.Credentials().GetOrCreateToken(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "TEST_SERVER_URL=%s\n", h.BaseURL())
	fmt.Fprintf(out, "TOKEN=%s\n", token)

	appLogger.Info("server running, press Ctrl-C to stop", slog.String("url", h.BaseURL()))
	<-ctx.Done()
	return nil
}
