package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/mailmind-cli/internal/connectors/google"
)

// Auth flow collaborators injected by SetupAuth.
var (
	oauthConfig *oauth2.Config
	tokenFile   string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorise access to your Gmail account",
	Long: `Starts the OAuth flow for read-only Gmail access. Open the printed
URL in a browser, approve access, then paste the authorisation code back
here. The token is cached for later runs.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

// SetupAuth injects the OAuth configuration before Execute.
func SetupAuth(cfg *oauth2.Config, tokenPath string) {
	oauthConfig = cfg
	tokenFile = tokenPath
}

func runAuth(cmd *cobra.Command, _ []string) error {
	if oauthConfig == nil || tokenFile == "" {
		return errors.New("gmail credentials not configured; set gmail.credentials_file in the config")
	}

	url := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	cmd.Println("Open this URL in your browser and approve access:")
	cmd.Println()
	cmd.Println(url)
	cmd.Println()
	cmd.Print("Paste the authorisation code: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return errors.New("no authorisation code entered")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return errors.New("no authorisation code entered")
	}

	token, err := oauthConfig.Exchange(context.Background(), code)
	if err != nil {
		return fmt.Errorf("exchanging authorisation code: %w", err)
	}
	if err := google.SaveToken(tokenFile, token); err != nil {
		return err
	}

	cmd.Println("Authorisation complete. Token saved.")
	return nil
}
