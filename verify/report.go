// Package verify re-reads the provisioned state so the caller can confirm
// the end result instead of trusting the apply step's own reporting.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarsli/cf-zone-provision/provider"
)

var settingNames = []string{"ssl", "always_use_https", "min_tls_version"}

type Report struct {
	Zone         provider.Zone
	Records      []provider.Record
	Settings     map[string]string
	PagesDomains []provider.PagesDomain
	// ReadErrors collects sections that could not be re-read. The snapshot
	// is still returned with whatever was readable.
	ReadErrors []string
}

// Snapshot reads records, TLS settings and (when a project is configured)
// Pages custom domains. Pure read: no side effects.
func Snapshot(ctx context.Context, p provider.Provider, zone provider.Zone, pagesProject string) *Report {
	report := &Report{
		Zone:     zone,
		Settings: make(map[string]string, len(settingNames)),
	}

	records, err := p.ListRecords(ctx, zone.ID)
	if err != nil {
		report.ReadErrors = append(report.ReadErrors, fmt.Sprintf("records: %v", err))
	} else {
		report.Records = records
	}

	for _, name := range settingNames {
		setting, err := p.GetSetting(ctx, zone.ID, name)
		if err != nil {
			report.ReadErrors = append(report.ReadErrors, fmt.Sprintf("setting %s: %v", name, err))
			continue
		}
		report.Settings[name] = setting.Value
	}

	if pagesProject != "" {
		domains, err := p.ListPagesDomains(ctx, pagesProject)
		if err != nil {
			report.ReadErrors = append(report.ReadErrors, fmt.Sprintf("pages domains: %v", err))
		} else {
			report.PagesDomains = domains
		}
	}
	return report
}

func (r *Report) Complete() bool {
	return len(r.ReadErrors) == 0
}

// Log writes the snapshot as progress lines, one per record and setting.
func (r *Report) Log() {
	slog.Info("Zone state",
		"domain", r.Zone.Domain,
		"zone", r.Zone.ID,
		"status", r.Zone.Status,
		"nameservers", strings.Join(r.Zone.NameServers, ", "))

	for _, record := range r.Records {
		slog.Info("Record",
			"type", record.Type,
			"name", record.Name,
			"content", record.Content,
			"proxied", record.Proxied,
			"ttl", record.TTL)
	}
	for _, name := range settingNames {
		if value, ok := r.Settings[name]; ok {
			slog.Info("Setting", "name", name, "value", value)
		}
	}
	for _, domain := range r.PagesDomains {
		slog.Info("Pages domain", "name", domain.Name, "status", domain.Status)
	}
	for _, readErr := range r.ReadErrors {
		slog.Warn("Verification read failed", "section", readErr)
	}
}
