package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/provider"
	"github.com/mkarsli/cf-zone-provision/reconcile"
	"github.com/mkarsli/cf-zone-provision/verify"
	"github.com/mkarsli/cf-zone-provision/zone"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report the live zone state without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		m := metrics.New()

		prov, err := newProvider(ctx, cfg, m)
		if err != nil {
			return err
		}

		resolver := zone.NewResolver(prov)
		var z provider.Zone
		if cfg.ZoneID != "" {
			z, err = resolver.ResolveByID(ctx, cfg.ZoneID)
		} else {
			z, err = resolver.Lookup(ctx, cfg.Domain)
		}
		if err != nil {
			return err
		}

		// Plan against the declared records to surface drift. Planning
		// never writes.
		engine := reconcile.NewEngine(prov, m, cfg.Apply.Concurrency, true)
		plan, err := engine.Plan(ctx, z, desiredRecords(cfg.Records))
		if err != nil {
			return fmt.Errorf("plan records: %w", err)
		}
		for _, d := range plan.Decisions {
			if d.Kind == reconcile.DecisionNoOp {
				continue
			}
			slog.Warn("Record drift", "operation", d.Kind, "name", d.Desired.Name, "type", d.Desired.Type)
		}

		report := verify.Snapshot(ctx, prov, z, cfg.PagesProject)
		report.Log()

		if !report.Complete() {
			return fmt.Errorf("verification incomplete: %d sections unreadable", len(report.ReadErrors))
		}
		if plan.HasWork() {
			return fmt.Errorf("zone has drifted: %d records need provisioning", plan.Count(reconcile.DecisionCreate)+plan.Count(reconcile.DecisionUpdate))
		}
		slog.Info("Zone matches the declared state", "domain", cfg.Domain, "zone", z.ID)
		return nil
	},
}
