package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/mkarsli/cf-zone-provision/config"
	"github.com/mkarsli/cf-zone-provision/metrics"
)

func desiredSettings() config.Settings {
	return config.Settings{SSLMode: "full", AlwaysUseHTTPS: true, MinTLSVersion: "1.2"}
}

func TestEnsureSettingsPatchesOnlyMismatches(t *testing.T) {
	mock := &mockProvider{settings: map[string]string{
		"ssl":              "flexible",
		"always_use_https": "on",
		"min_tls_version":  "1.0",
	}}
	engine := NewEngine(mock, metrics.New(), 1, false)

	results := engine.EnsureSettings(context.Background(), "z1", desiredSettings())
	if len(results) != 3 {
		t.Fatalf("expected 3 setting results, got %d", len(results))
	}

	changed := map[string]bool{}
	for _, r := range results {
		changed[r.Setting] = r.Changed
		if r.Error != "" {
			t.Errorf("unexpected error for %s: %s", r.Setting, r.Error)
		}
	}
	if !changed["ssl"] || !changed["min_tls_version"] {
		t.Errorf("expected ssl and min_tls_version patched, got %+v", changed)
	}
	if changed["always_use_https"] {
		t.Error("always_use_https already matched, must not be patched")
	}
	if len(mock.patchCalls) != 2 {
		t.Errorf("expected exactly 2 patch calls, got %v", mock.patchCalls)
	}
}

func TestEnsureSettingsIdempotent(t *testing.T) {
	mock := &mockProvider{settings: map[string]string{
		"ssl":              "flexible",
		"always_use_https": "off",
		"min_tls_version":  "1.0",
	}}
	engine := NewEngine(mock, metrics.New(), 1, false)

	engine.EnsureSettings(context.Background(), "z1", desiredSettings())
	firstPatches := len(mock.patchCalls)
	if firstPatches != 3 {
		t.Fatalf("expected 3 patches on first pass, got %d", firstPatches)
	}

	engine.EnsureSettings(context.Background(), "z1", desiredSettings())
	if len(mock.patchCalls) != firstPatches {
		t.Errorf("second pass must issue zero patches, got %d more", len(mock.patchCalls)-firstPatches)
	}
}

func TestEnsureSettingsIsolatesFailures(t *testing.T) {
	mock := &mockProvider{
		settings: map[string]string{
			"always_use_https": "off",
			"min_tls_version":  "1.0",
		},
		settingErr: map[string]error{"ssl": errors.New("read failed")},
	}
	engine := NewEngine(mock, metrics.New(), 1, false)

	results := engine.EnsureSettings(context.Background(), "z1", desiredSettings())

	var sslFailed bool
	for _, r := range results {
		if r.Setting == "ssl" {
			sslFailed = r.Error != ""
		}
	}
	if !sslFailed {
		t.Error("expected ssl read failure to be reported")
	}
	if len(mock.patchCalls) != 2 {
		t.Errorf("expected the other two settings still patched, got %v", mock.patchCalls)
	}
}

func TestEnsureSettingsDryRun(t *testing.T) {
	mock := &mockProvider{settings: map[string]string{
		"ssl":              "flexible",
		"always_use_https": "off",
		"min_tls_version":  "1.0",
	}}
	engine := NewEngine(mock, metrics.New(), 1, true)

	engine.EnsureSettings(context.Background(), "z1", desiredSettings())
	if len(mock.patchCalls) != 0 {
		t.Errorf("dry run must not patch settings, got %v", mock.patchCalls)
	}
}
