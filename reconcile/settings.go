package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mkarsli/cf-zone-provision/config"
	"github.com/mkarsli/cf-zone-provision/provider"
)

const (
	settingSSL            = "ssl"
	settingAlwaysUseHTTPS = "always_use_https"
	settingMinTLSVersion  = "min_tls_version"
)

// EnsureSettings brings the zone-wide TLS policy to the desired state with
// read-compare-patch per setting. Settings are independent: a failure on one
// never prevents the others from being attempted, and a value that already
// matches issues no write.
func (e *Engine) EnsureSettings(ctx context.Context, zoneID string, desired config.Settings) []SettingResult {
	wanted := []struct {
		name  string
		value string
	}{
		{settingSSL, desired.SSLMode},
		{settingAlwaysUseHTTPS, onOff(desired.AlwaysUseHTTPS)},
		{settingMinTLSVersion, desired.MinTLSVersion},
	}

	results := make([]SettingResult, 0, len(wanted))
	for _, w := range wanted {
		results = append(results, e.ensureSetting(ctx, zoneID, w.name, w.value))
	}
	return results
}

func (e *Engine) ensureSetting(ctx context.Context, zoneID, name, value string) SettingResult {
	result := SettingResult{Setting: name, Desired: value}

	current, err := e.provider.GetSetting(ctx, zoneID, name)
	if err != nil {
		slog.Error("Failed to read zone setting", "setting", name, "error", err)
		return settingFailure(result, err)
	}
	result.Current = current.Value

	if current.Value == value {
		slog.Debug("Zone setting already at desired value", "setting", name, "value", value)
		return result
	}

	if e.dryRun {
		slog.Info("Dry run mode - would patch setting", "setting", name, "current", current.Value, "desired", value)
		return result
	}

	if _, err := e.provider.PatchSetting(ctx, zoneID, name, value); err != nil {
		slog.Error("Failed to patch zone setting", "setting", name, "error", err)
		e.metrics.IncSettingPatch(name, false)
		return settingFailure(result, err)
	}
	e.metrics.IncSettingPatch(name, true)
	result.Changed = true
	return result
}

func settingFailure(result SettingResult, err error) SettingResult {
	result.Error = err.Error()
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		result.Raw = apiErr.Raw
	}
	return result
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
