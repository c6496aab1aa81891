// Package cli wires the commands together. All orchestration lives here;
// the domain packages stay free of flag parsing and process exit.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkarsli/cf-zone-provision/auth"
	"github.com/mkarsli/cf-zone-provision/config"
	"github.com/mkarsli/cf-zone-provision/logger"
	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/provider/cloudflare"
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "cf-zone-provision",
	Short: "Bring a Cloudflare zone to its declared state",
	Long: "cf-zone-provision reads a YAML declaration of a zone (DNS records, TLS\n" +
		"settings, Pages custom domains) and makes the live zone match it,\n" +
		"creating the zone first when it does not exist yet.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "plan and report without writing anything")
	rootCmd.AddCommand(provisionCmd, verifyCmd, loginCmd, historyCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads .env and the YAML file, applies flag overrides and
// configures the default logger. Every subcommand starts here.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Apply.DryRun = dryRun
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)
	return cfg, nil
}

// newProvider resolves a credential and builds the API client.
func newProvider(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*cloudflare.Client, error) {
	store, err := auth.NewStore(cfg.Auth.CredentialPath)
	if err != nil {
		return nil, err
	}
	token, err := auth.NewResolver(cfg.Auth, store, m).Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	return cloudflare.New(cloudflare.Options{Token: token, AccountID: cfg.AccountID}, m)
}

// serveMetrics exposes the prometheus endpoint for the lifetime of the
// process. Errors are logged, not fatal: a run without metrics still runs.
func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Starting metrics server", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

func joinNameservers(ns []string) string {
	return strings.Join(ns, ", ")
}
