package provider

import (
	"context"

	"github.com/cloudflare/cloudflare-go"
)

// Provider is the set of DNS provider operations the reconciler needs.
type Provider interface {
	ListZones(ctx context.Context, name string) ([]Zone, error)
	GetZone(ctx context.Context, zoneID string) (Zone, error)
	CreateZone(ctx context.Context, name string) (Zone, error)

	ListRecords(ctx context.Context, zoneID string) ([]Record, error)
	CreateRecord(ctx context.Context, zoneID string, record Record) (Record, error)
	UpdateRecord(ctx context.Context, zoneID, recordID string, record Record) (Record, error)

	GetSetting(ctx context.Context, zoneID, setting string) (Setting, error)
	PatchSetting(ctx context.Context, zoneID, setting, value string) (Setting, error)

	ListPagesDomains(ctx context.Context, project string) ([]PagesDomain, error)
	AddPagesDomain(ctx context.Context, project, domain string) (PagesDomain, error)
}

type Zone struct {
	ID          string
	Domain      string
	Status      string
	NameServers []string
}

type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	Proxied bool
	TTL     int
}

type Setting struct {
	ID    string
	Value string
}

type PagesDomain struct {
	Name   string
	Status string
}

// proxiableTypes are the record types the provider can route through its
// edge. Proxied mismatches on any other type are meaningless.
var proxiableTypes = map[string]bool{
	"A":     true,
	"AAAA":  true,
	"CNAME": true,
}

func Proxiable(recordType string) bool {
	return proxiableTypes[recordType]
}

func FromCloudflareRecord(r cloudflare.DNSRecord) Record {
	record := Record{
		ID:      r.ID,
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
	}
	if r.Proxied != nil {
		record.Proxied = *r.Proxied
	}
	return record
}

func FromCloudflareZone(z cloudflare.Zone) Zone {
	return Zone{
		ID:          z.ID,
		Domain:      z.Name,
		Status:      z.Status,
		NameServers: z.NameServers,
	}
}
