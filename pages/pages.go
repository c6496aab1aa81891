// Package pages attaches custom domains to a Pages deployment project.
package pages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarsli/cf-zone-provision/provider"
)

type Result struct {
	Domain string
	Status string
	Added  bool
	Error  string
	Raw    json.RawMessage
}

// EnsureDomains makes sure every domain is attached to the project. The
// listing failing is fatal (nothing can be decided without it); individual
// attach failures are collected per domain.
func EnsureDomains(ctx context.Context, p provider.Provider, project string, domains []string) ([]Result, error) {
	existing, err := p.ListPagesDomains(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("list custom domains for project %s: %w", project, err)
	}

	attached := make(map[string]string, len(existing))
	for _, d := range existing {
		attached[strings.ToLower(d.Name)] = d.Status
	}

	results := make([]Result, 0, len(domains))
	for _, domain := range domains {
		if status, ok := attached[strings.ToLower(domain)]; ok {
			slog.Info("Custom domain already attached", "project", project, "domain", domain, "status", status)
			results = append(results, Result{Domain: domain, Status: status})
			continue
		}
		results = append(results, addDomain(ctx, p, project, domain))
	}
	return results, nil
}

func addDomain(ctx context.Context, p provider.Provider, project, domain string) Result {
	added, err := p.AddPagesDomain(ctx, project, domain)
	if err == nil {
		status := added.Status
		if status == "" {
			status = "pending"
		}
		return Result{Domain: domain, Status: status, Added: true}
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) && apiErr.MessageContains("already") {
		// Attached between list and add; same end state.
		return Result{Domain: domain, Status: "pending"}
	}

	slog.Error("Failed to attach custom domain", "project", project, "domain", domain, "error", err)
	result := Result{Domain: domain, Error: err.Error()}
	if apiErr != nil {
		result.Raw = apiErr.Raw
	}
	return result
}
