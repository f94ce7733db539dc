package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for a test identity",
	Long: `Log in to a running server (registering the user if needed) and print the token.

Example:
  wikiharness token --url http://127.0.0.1:8080 --username admin --password admin`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var (
	tokenURL      string
	tokenUsername string
	tokenPassword string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenURL, "url", "", "server URL (defaults to TEST_SERVER_URL)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "user name (defaults to HARNESS_USERNAME)")
	tokenCmd.Flags().StringVar(&tokenPassword, "password", "", "password (defaults to HARNESS_PASSWORD)")
}

func runToken(cmd *cobra.Command, args []string) error {
	url := firstNonEmpty(tokenURL, cfg.ServerURL)
	if url == "" {
		return fmt.Errorf("no server URL: use --url or TEST_SERVER_URL")
	}
	username := firstNonEmpty(tokenUsername, cfg.Username)
	password := firstNonEmpty(tokenPassword, cfg.Password)

	creds := harness.NewCredentialBootstrap(harness.NewClient(url, cfg.RequestTimeout), appLogger)
	token, err := creds.GetOrCreateToken(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	if cred, ok := creds.Cached(username); ok && !cred.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", cred.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
