// Package zone looks up or creates the DNS zone for a domain.
package zone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkarsli/cf-zone-provision/provider"
)

// ErrAmbiguousZone means more than one zone matched the domain. That
// requires manual disambiguation; picking the first match silently could
// mutate the wrong zone.
var ErrAmbiguousZone = errors.New("more than one zone matches domain")

// ErrZoneNotFound is returned by read-only lookups. Resolve creates the
// zone instead of returning this.
var ErrZoneNotFound = errors.New("no zone found for domain")

// ScopeError means the token lacks a permission the operation requires.
// Re-running with the right scope set is the only fix.
type ScopeError struct {
	Missing string
	Err     error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("token lacks the %s scope; run the login command again to request it: %v", e.Missing, e.Err)
}

func (e *ScopeError) Unwrap() error { return e.Err }

type Resolver struct {
	provider provider.Provider
}

func NewResolver(p provider.Provider) *Resolver {
	return &Resolver{provider: p}
}

// Resolve finds the zone for domain, creating it when absent. Creation is
// only attempted when the account-scoped lookup returned nothing, so a
// pre-existing zone can never be duplicated.
func (r *Resolver) Resolve(ctx context.Context, domain string) (provider.Zone, error) {
	zones, err := r.provider.ListZones(ctx, domain)
	if err != nil {
		return provider.Zone{}, fmt.Errorf("list zones for %s: %w", domain, err)
	}

	switch len(zones) {
	case 1:
		z := zones[0]
		slog.Info("Zone already exists", "domain", domain, "zone", z.ID, "status", z.Status, "nameservers", strings.Join(z.NameServers, ", "))
		return z, nil
	case 0:
		// fall through to create
	default:
		return provider.Zone{}, fmt.Errorf("%w: %s has %d matches", ErrAmbiguousZone, domain, len(zones))
	}

	z, err := r.provider.CreateZone(ctx, domain)
	if err != nil {
		if se := scopeErrorFrom(err); se != nil {
			return provider.Zone{}, se
		}
		return provider.Zone{}, fmt.Errorf("create zone for %s: %w", domain, err)
	}
	slog.Info("Zone created", "domain", domain, "zone", z.ID, "status", z.Status, "nameservers", strings.Join(z.NameServers, ", "))
	return z, nil
}

// Lookup finds the zone for domain without ever creating it.
func (r *Resolver) Lookup(ctx context.Context, domain string) (provider.Zone, error) {
	zones, err := r.provider.ListZones(ctx, domain)
	if err != nil {
		return provider.Zone{}, fmt.Errorf("list zones for %s: %w", domain, err)
	}
	switch len(zones) {
	case 1:
		return zones[0], nil
	case 0:
		return provider.Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, domain)
	default:
		return provider.Zone{}, fmt.Errorf("%w: %s has %d matches", ErrAmbiguousZone, domain, len(zones))
	}
}

// ResolveByID fetches a known zone without touching the name index.
func (r *Resolver) ResolveByID(ctx context.Context, zoneID string) (provider.Zone, error) {
	z, err := r.provider.GetZone(ctx, zoneID)
	if err != nil {
		return provider.Zone{}, fmt.Errorf("get zone %s: %w", zoneID, err)
	}
	return z, nil
}

// WaitActive polls the zone until the provider reports it active. The
// pending->active transition belongs to the provider's nameserver checks;
// this only observes it.
func (r *Resolver) WaitActive(ctx context.Context, zoneID string, interval time.Duration) (provider.Zone, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		z, err := r.provider.GetZone(ctx, zoneID)
		if err != nil {
			return provider.Zone{}, fmt.Errorf("poll zone %s: %w", zoneID, err)
		}
		if z.Status == "active" {
			return z, nil
		}
		slog.Info("Zone not active yet", "zone", zoneID, "status", z.Status)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return z, ctx.Err()
		}
	}
}

func scopeErrorFrom(err error) *ScopeError {
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	// The provider names the missing scope in the error body; auth errors
	// (code 10000) on zone creation mean the same thing for OAuth tokens.
	if apiErr.MessageContains("zone:edit") || apiErr.HasCode(10000) {
		return &ScopeError{Missing: "zone:edit", Err: err}
	}
	return nil
}
