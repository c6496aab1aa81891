package cli

import (
	"github.com/spf13/cobra"

	"github.com/mkarsli/cf-zone-provision/auth"
	"github.com/mkarsli/cf-zone-provision/metrics"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the interactive browser login and store the credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := auth.NewStore(cfg.Auth.CredentialPath)
		if err != nil {
			return err
		}
		// Always interactive: login exists to replace whatever credential
		// is stored, so the resolver's fallback chain is skipped.
		_, err = auth.NewResolver(cfg.Auth, store, metrics.New()).Login(cmd.Context())
		return err
	},
}
