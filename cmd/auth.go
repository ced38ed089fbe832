package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/agentcal/internal/config"
	"github.com/teemow/agentcal/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		configPath string
		code       string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: `Print the Google consent URL, read the authorization code and store the
token for calendar.account under calendar.token_dir.

Pass --code to skip the prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Calendar.ClientID == "" || cfg.Calendar.ClientSecret == "" {
				return errors.New("calendar.client_id and calendar.client_secret are required (or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)")
			}

			conf := google.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret, cfg.Calendar.RedirectURL)
			out := cmd.OutOrStdout()

			if code == "" {
				fmt.Fprintf(out, "Open this URL and approve calendar access:\n\n%s\n\n", google.AuthURL(conf, uuid.NewString()))
				fmt.Fprint(out, "Authorization code: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return errors.New("no authorization code given")
			}

			tokens := google.NewFileTokenProvider(cfg.Calendar.TokenDir)
			if err := google.ExchangeAndSave(cmd.Context(), conf, tokens, cfg.Calendar.Account, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved for account %q.\n", cfg.Calendar.Account)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent page")

	return cmd
}
