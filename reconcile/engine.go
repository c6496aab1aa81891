package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/provider"
)

type Engine struct {
	provider    provider.Provider
	metrics     *metrics.Metrics
	concurrency int
	dryRun      bool
}

func NewEngine(p provider.Provider, m *metrics.Metrics, concurrency int, dryRun bool) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		provider:    p,
		metrics:     m,
		concurrency: concurrency,
		dryRun:      dryRun,
	}
}

// Plan fetches the zone's current records and diffs them against desired
// state. It never mutates anything: reads happen strictly before applies.
func (e *Engine) Plan(ctx context.Context, zone provider.Zone, desired []DesiredRecord) (Plan, error) {
	existing, err := e.provider.ListRecords(ctx, zone.ID)
	if err != nil {
		return Plan{}, fmt.Errorf("list records for zone %s: %w", zone.ID, err)
	}
	slog.Info("Got records from dns provider", "zone", zone.Domain, "count", len(existing))

	byKey := make(map[string]provider.Record, len(existing))
	for _, r := range existing {
		key := recordKey(r.Name, r.Type, zone.Domain)
		if _, ok := byKey[key]; ok {
			slog.Debug("Duplicate existing record for key, keeping first", "key", key, "id", r.ID)
			continue
		}
		byKey[key] = r
	}

	plan := Plan{}
	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		key := recordKey(d.Name, d.Type, zone.Domain)
		if seen[key] {
			slog.Warn("Duplicate desired record, ignoring later entry", "name", d.Name, "type", d.Type)
			continue
		}
		seen[key] = true

		decision := Decision{Kind: DecisionCreate, Desired: d}
		if current, ok := byKey[key]; ok {
			if recordMatches(d, current) {
				decision.Kind = DecisionNoOp
			} else {
				decision.Kind = DecisionUpdate
				decision.ExistingID = current.ID
			}
		}
		slog.Debug("Planned decision", "name", d.Name, "type", d.Type, "decision", decision.Kind)
		e.metrics.IncDecision(string(decision.Kind))
		plan.Decisions = append(plan.Decisions, decision)
	}
	return plan, nil
}

// Apply executes the plan's creates and updates with bounded concurrency.
// Each record is independent: one failure never blocks the rest.
func (e *Engine) Apply(ctx context.Context, zoneID string, plan Plan) Results {
	results := Results{NoOps: plan.Count(DecisionNoOp)}

	if e.dryRun {
		slog.Info("Dry run mode - would create records", "count", plan.Count(DecisionCreate))
		slog.Info("Dry run mode - would update records", "count", plan.Count(DecisionUpdate))
		return results
	}

	type outcome struct {
		decision Decision
		record   provider.Record
		err      error
	}
	outcomes := make([]outcome, len(plan.Decisions))

	sem := make(chan struct{}, e.concurrency)
	wg := &sync.WaitGroup{}
	for i, d := range plan.Decisions {
		if d.Kind == DecisionNoOp {
			continue
		}
		wg.Add(1)
		go func(i int, d Decision) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			record := toProviderRecord(d.Desired)
			var applied provider.Record
			var err error
			switch d.Kind {
			case DecisionCreate:
				applied, err = e.provider.CreateRecord(ctx, zoneID, record)
			case DecisionUpdate:
				applied, err = e.provider.UpdateRecord(ctx, zoneID, d.ExistingID, record)
			}
			outcomes[i] = outcome{decision: d, record: applied, err: err}
			e.metrics.IncApplyResult(string(d.Kind), err == nil)
		}(i, d)
	}
	wg.Wait()

	for i, d := range plan.Decisions {
		if d.Kind == DecisionNoOp {
			continue
		}
		out := outcomes[i]
		if out.err != nil {
			slog.Error("Failed to apply record", "name", d.Desired.Name, "type", d.Desired.Type, "op", d.Kind, "error", out.err)
			results.Failures = append(results.Failures, failedOperation(d.Kind, toProviderRecord(d.Desired), out.err))
			continue
		}
		switch d.Kind {
		case DecisionCreate:
			results.Created = append(results.Created, out.record)
		case DecisionUpdate:
			results.Updated = append(results.Updated, out.record)
		}
	}
	return results
}

// Reconcile runs a full plan-then-apply pass for the zone.
func (e *Engine) Reconcile(ctx context.Context, zone provider.Zone, desired []DesiredRecord) (Plan, Results, error) {
	plan, err := e.Plan(ctx, zone, desired)
	if err != nil {
		return Plan{}, Results{}, err
	}
	results := e.Apply(ctx, zone.ID, plan)
	return plan, results, nil
}

func failedOperation(op DecisionKind, record provider.Record, err error) OperationResult {
	result := OperationResult{Op: op, Record: record, Error: err.Error()}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		result.Raw = apiErr.Raw
	}
	return result
}

func toProviderRecord(d DesiredRecord) provider.Record {
	ttl := d.TTL
	if ttl < TTLAuto {
		ttl = TTLAuto
	}
	return provider.Record{
		Name:    d.Name,
		Type:    strings.ToUpper(d.Type),
		Content: d.Content,
		Proxied: d.Proxied,
		TTL:     ttl,
	}
}

// recordKey normalizes a record name to its label relative to the zone
// apex. The provider echoes names as FQDNs and may vary casing, so "@",
// the bare domain, and "EXAMPLE.COM." are all the same apex key.
func recordKey(name, recordType, domain string) string {
	return normalizeName(name, domain) + "|" + strings.ToUpper(recordType)
}

func normalizeName(name, domain string) string {
	n := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	d := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if n == "@" || n == "" || n == d {
		return "@"
	}
	return strings.TrimSuffix(n, "."+d)
}

func recordMatches(d DesiredRecord, current provider.Record) bool {
	if !contentEqual(d.Content, current.Content) {
		return false
	}
	// Proxied is only meaningful on types the edge can front.
	if provider.Proxiable(strings.ToUpper(d.Type)) && d.Proxied != current.Proxied {
		return false
	}
	return ttlMatches(d.TTL, current.TTL)
}

func contentEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// ttlMatches treats a desired "automatic" TTL as compatible with any
// existing value, so normalization differences never force an update.
func ttlMatches(desired, existing int) bool {
	if desired <= TTLAuto {
		return true
	}
	return desired == existing
}
