package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/mkarsli/cf-zone-provision/provider"
)

type mockProvider struct {
	records    []provider.Record
	recordsErr error
	settings   map[string]string
	settingErr map[string]error
	domains    []provider.PagesDomain
	pagesCalls int
}

func (m *mockProvider) ListRecords(ctx context.Context, zoneID string) ([]provider.Record, error) {
	return m.records, m.recordsErr
}

func (m *mockProvider) GetSetting(ctx context.Context, zoneID, setting string) (provider.Setting, error) {
	if err := m.settingErr[setting]; err != nil {
		return provider.Setting{}, err
	}
	return provider.Setting{ID: setting, Value: m.settings[setting]}, nil
}

func (m *mockProvider) ListPagesDomains(ctx context.Context, project string) ([]provider.PagesDomain, error) {
	m.pagesCalls++
	return m.domains, nil
}

func (m *mockProvider) ListZones(ctx context.Context, name string) ([]provider.Zone, error) {
	return nil, nil
}
func (m *mockProvider) GetZone(ctx context.Context, zoneID string) (provider.Zone, error) {
	return provider.Zone{}, nil
}
func (m *mockProvider) CreateZone(ctx context.Context, name string) (provider.Zone, error) {
	return provider.Zone{}, nil
}
func (m *mockProvider) CreateRecord(ctx context.Context, zoneID string, r provider.Record) (provider.Record, error) {
	return provider.Record{}, nil
}
func (m *mockProvider) UpdateRecord(ctx context.Context, zoneID, recordID string, r provider.Record) (provider.Record, error) {
	return provider.Record{}, nil
}
func (m *mockProvider) PatchSetting(ctx context.Context, zoneID, setting, value string) (provider.Setting, error) {
	return provider.Setting{}, nil
}
func (m *mockProvider) AddPagesDomain(ctx context.Context, project, domain string) (provider.PagesDomain, error) {
	return provider.PagesDomain{}, nil
}

var testZone = provider.Zone{ID: "z1", Domain: "example.com", Status: "active"}

func TestSnapshot(t *testing.T) {
	mock := &mockProvider{
		records: []provider.Record{
			{ID: "r1", Name: "example.com", Type: "CNAME", Content: "app.pages.dev", Proxied: true, TTL: 1},
		},
		settings: map[string]string{
			"ssl":              "full",
			"always_use_https": "on",
			"min_tls_version":  "1.2",
		},
		domains: []provider.PagesDomain{{Name: "example.com", Status: "active"}},
	}

	report := Snapshot(context.Background(), mock, testZone, "example-site")
	if !report.Complete() {
		t.Fatalf("expected complete report, got read errors: %v", report.ReadErrors)
	}
	if len(report.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(report.Records))
	}
	if report.Settings["ssl"] != "full" {
		t.Errorf("expected ssl=full, got %q", report.Settings["ssl"])
	}
	if len(report.PagesDomains) != 1 {
		t.Errorf("expected 1 pages domain, got %d", len(report.PagesDomains))
	}
}

func TestSnapshotSkipsPagesWithoutProject(t *testing.T) {
	mock := &mockProvider{settings: map[string]string{}}
	Snapshot(context.Background(), mock, testZone, "")
	if mock.pagesCalls != 0 {
		t.Error("expected no pages listing without a configured project")
	}
}

func TestSnapshotCollectsReadErrors(t *testing.T) {
	mock := &mockProvider{
		recordsErr: errors.New("boom"),
		settings:   map[string]string{"always_use_https": "on", "min_tls_version": "1.2"},
		settingErr: map[string]error{"ssl": errors.New("nope")},
	}

	report := Snapshot(context.Background(), mock, testZone, "")
	if report.Complete() {
		t.Fatal("expected incomplete report")
	}
	if len(report.ReadErrors) != 2 {
		t.Errorf("expected 2 read errors, got %v", report.ReadErrors)
	}
	if report.Settings["min_tls_version"] != "1.2" {
		t.Error("readable settings must still be present")
	}
}
