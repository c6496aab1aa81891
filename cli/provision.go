package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarsli/cf-zone-provision/config"
	"github.com/mkarsli/cf-zone-provision/history"
	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/pages"
	"github.com/mkarsli/cf-zone-provision/provider"
	"github.com/mkarsli/cf-zone-provision/reconcile"
	"github.com/mkarsli/cf-zone-provision/verify"
	"github.com/mkarsli/cf-zone-provision/zone"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create or update the zone, its records, TLS settings and Pages domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runProvision(cmd.Context(), cfg)
	},
}

func runProvision(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, m)
	}

	prov, err := newProvider(ctx, cfg, m)
	if err != nil {
		return err
	}

	resolver := zone.NewResolver(prov)
	var z provider.Zone
	if cfg.ZoneID != "" {
		z, err = resolver.ResolveByID(ctx, cfg.ZoneID)
	} else {
		z, err = resolver.Resolve(ctx, cfg.Domain)
	}
	if err != nil {
		var scopeErr *zone.ScopeError
		if errors.As(err, &scopeErr) {
			slog.Error("Token is missing a required scope", "missing", scopeErr.Missing)
		}
		return err
	}
	if z.Status != "active" {
		slog.Warn("Zone is not active yet, point the registrar at these nameservers",
			"zone", z.ID, "status", z.Status, "nameservers", joinNameservers(z.NameServers))
	}

	engine := reconcile.NewEngine(prov, m, cfg.Apply.Concurrency, cfg.Apply.DryRun)

	plan, results, err := engine.Reconcile(ctx, z, desiredRecords(cfg.Records))
	if err != nil {
		return fmt.Errorf("reconcile records: %w", err)
	}
	for _, failure := range results.Failures {
		slog.Error("Record write failed",
			"operation", failure.Op, "name", failure.Record.Name, "type", failure.Record.Type, "error", failure.Error)
	}

	settingResults := engine.EnsureSettings(ctx, z.ID, cfg.Settings)
	settingsChanged, settingFailures := 0, 0
	for _, sr := range settingResults {
		if sr.Error != "" {
			settingFailures++
			slog.Error("Setting write failed", "setting", sr.Setting, "error", sr.Error)
			continue
		}
		if sr.Changed {
			settingsChanged++
		}
	}

	pagesFailures := 0
	if cfg.PagesProject != "" {
		pagesResults, err := pages.EnsureDomains(ctx, prov, cfg.PagesProject, pagesDomains(cfg.Domain))
		if err != nil {
			pagesFailures++
			slog.Error("Fail list pages domains", "project", cfg.PagesProject, "error", err)
		}
		for _, pr := range pagesResults {
			if pr.Error != "" {
				pagesFailures++
				slog.Error("Pages domain attach failed", "domain", pr.Domain, "error", pr.Error)
			}
		}
	}

	report := verify.Snapshot(ctx, prov, z, cfg.PagesProject)
	report.Log()

	duration := time.Since(start)
	m.SetRunDuration(duration)

	failures := len(results.Failures) + settingFailures + pagesFailures
	success := failures == 0 && report.Complete()

	appendHistory(ctx, cfg, history.Entry{
		Time:            start,
		Domain:          cfg.Domain,
		ZoneID:          z.ID,
		Created:         len(results.Created),
		Updated:         len(results.Updated),
		NoOps:           results.NoOps,
		Failures:        failures,
		SettingsChanged: settingsChanged,
		DryRun:          cfg.Apply.DryRun,
		Success:         success,
		DurationMillis:  duration.Milliseconds(),
	})

	slog.Info("Provision finished",
		"domain", cfg.Domain,
		"zone", z.ID,
		"planned", len(plan.Decisions),
		"created", len(results.Created),
		"updated", len(results.Updated),
		"unchanged", results.NoOps,
		"settings_changed", settingsChanged,
		"failures", failures,
		"dry_run", cfg.Apply.DryRun,
		"duration", duration)

	if !success {
		return fmt.Errorf("provision incomplete: %d failed operations", failures)
	}
	return nil
}

func desiredRecords(records []config.Record) []reconcile.DesiredRecord {
	desired := make([]reconcile.DesiredRecord, 0, len(records))
	for _, r := range records {
		desired = append(desired, reconcile.DesiredRecord{
			Name:    r.Name,
			Type:    r.Type,
			Content: r.Content,
			Proxied: r.Proxied,
			TTL:     int(r.TTL),
		})
	}
	return desired
}

// pagesDomains is the apex and its www alias, matching what the Pages
// project serves.
func pagesDomains(domain string) []string {
	return []string{domain, "www." + domain}
}

// appendHistory records the run outcome. History is an audit trail, so a
// write failure is logged but never fails the run itself.
func appendHistory(ctx context.Context, cfg *config.Config, entry history.Entry) {
	manager, err := history.New(cfg.HistoryPath)
	if err != nil {
		slog.Warn("Fail open history store", "path", cfg.HistoryPath, "error", err)
		return
	}
	defer manager.Close()
	if err := manager.Append(ctx, entry); err != nil {
		slog.Warn("Fail append history entry", "error", err)
	}
}
