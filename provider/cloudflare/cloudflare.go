package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/cloudflare/cloudflare-go"

	"github.com/mkarsli/cf-zone-provision/provider"
)

var _ provider.Provider = (*Client)(nil)

func (c *Client) ListZones(ctx context.Context, name string) ([]provider.Zone, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("per_page", fmt.Sprint(perPage))
	if c.accountID != "" {
		q.Set("account.id", c.accountID)
	}

	env, err := c.do(ctx, "list_zones", "GET", "/zones?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeResult[[]cloudflare.Zone](env)
	if err != nil {
		return nil, err
	}

	zones := make([]provider.Zone, 0, len(raw))
	for _, z := range raw {
		zones = append(zones, provider.FromCloudflareZone(z))
	}
	return zones, nil
}

func (c *Client) GetZone(ctx context.Context, zoneID string) (provider.Zone, error) {
	env, err := c.do(ctx, "get_zone", "GET", "/zones/"+zoneID, nil)
	if err != nil {
		return provider.Zone{}, err
	}
	raw, err := decodeResult[cloudflare.Zone](env)
	if err != nil {
		return provider.Zone{}, err
	}
	return provider.FromCloudflareZone(raw), nil
}

func (c *Client) CreateZone(ctx context.Context, name string) (provider.Zone, error) {
	slog.Info("Creating zone", "domain", name, "account", c.accountID)

	body := map[string]any{
		"name":       name,
		"account":    map[string]string{"id": c.accountID},
		"type":       "full",
		"jump_start": true,
	}
	env, err := c.do(ctx, "create_zone", "POST", "/zones", body)
	if err != nil {
		return provider.Zone{}, err
	}
	raw, err := decodeResult[cloudflare.Zone](env)
	if err != nil {
		return provider.Zone{}, err
	}
	return provider.FromCloudflareZone(raw), nil
}

func (c *Client) ListRecords(ctx context.Context, zoneID string) ([]provider.Record, error) {
	var records []provider.Record

	// Loop until a page comes back short; never assume one page is enough.
	for page := 1; ; page++ {
		path := fmt.Sprintf("/zones/%s/dns_records?page=%d&per_page=%d", zoneID, page, perPage)
		env, err := c.do(ctx, "list_records", "GET", path, nil)
		if err != nil {
			return nil, err
		}
		raw, err := decodeResult[[]cloudflare.DNSRecord](env)
		if err != nil {
			return nil, err
		}
		for _, r := range raw {
			records = append(records, provider.FromCloudflareRecord(r))
		}
		if len(raw) < perPage {
			return records, nil
		}
	}
}

type recordParams struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied *bool  `json:"proxied,omitempty"`
}

func toParams(record provider.Record) recordParams {
	params := recordParams{
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
	}
	if provider.Proxiable(record.Type) {
		proxied := record.Proxied
		params.Proxied = &proxied
	}
	return params
}

func (c *Client) CreateRecord(ctx context.Context, zoneID string, record provider.Record) (provider.Record, error) {
	slog.Info("Creating DNS record", "zone", zoneID, "name", record.Name, "type", record.Type, "content", record.Content)

	env, err := c.do(ctx, "create_record", "POST", "/zones/"+zoneID+"/dns_records", toParams(record))
	if err != nil {
		return provider.Record{}, err
	}
	raw, err := decodeResult[cloudflare.DNSRecord](env)
	if err != nil {
		return provider.Record{}, err
	}
	return provider.FromCloudflareRecord(raw), nil
}

func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record) (provider.Record, error) {
	slog.Info("Updating DNS record", "zone", zoneID, "id", recordID, "name", record.Name, "type", record.Type, "content", record.Content)

	env, err := c.do(ctx, "update_record", "PATCH", "/zones/"+zoneID+"/dns_records/"+recordID, toParams(record))
	if err != nil {
		return provider.Record{}, err
	}
	raw, err := decodeResult[cloudflare.DNSRecord](env)
	if err != nil {
		return provider.Record{}, err
	}
	return provider.FromCloudflareRecord(raw), nil
}

func (c *Client) GetSetting(ctx context.Context, zoneID, setting string) (provider.Setting, error) {
	env, err := c.do(ctx, "get_setting", "GET", "/zones/"+zoneID+"/settings/"+setting, nil)
	if err != nil {
		return provider.Setting{}, err
	}
	raw, err := decodeResult[cloudflare.ZoneSetting](env)
	if err != nil {
		return provider.Setting{}, err
	}
	return provider.Setting{ID: raw.ID, Value: fmt.Sprint(raw.Value)}, nil
}

func (c *Client) PatchSetting(ctx context.Context, zoneID, setting, value string) (provider.Setting, error) {
	slog.Info("Patching zone setting", "zone", zoneID, "setting", setting, "value", value)

	body := map[string]string{"value": value}
	env, err := c.do(ctx, "patch_setting", "PATCH", "/zones/"+zoneID+"/settings/"+setting, body)
	if err != nil {
		return provider.Setting{}, err
	}
	raw, err := decodeResult[cloudflare.ZoneSetting](env)
	if err != nil {
		return provider.Setting{}, err
	}
	return provider.Setting{ID: raw.ID, Value: fmt.Sprint(raw.Value)}, nil
}

func (c *Client) ListPagesDomains(ctx context.Context, project string) ([]provider.PagesDomain, error) {
	path := fmt.Sprintf("/accounts/%s/pages/projects/%s/domains", c.accountID, project)
	env, err := c.do(ctx, "list_pages_domains", "GET", path, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeResult[[]cloudflare.PagesDomain](env)
	if err != nil {
		return nil, err
	}

	domains := make([]provider.PagesDomain, 0, len(raw))
	for _, d := range raw {
		domains = append(domains, provider.PagesDomain{Name: d.Name, Status: string(d.Status)})
	}
	return domains, nil
}

func (c *Client) AddPagesDomain(ctx context.Context, project, domain string) (provider.PagesDomain, error) {
	slog.Info("Attaching custom domain to pages project", "project", project, "domain", domain)

	path := fmt.Sprintf("/accounts/%s/pages/projects/%s/domains", c.accountID, project)
	env, err := c.do(ctx, "add_pages_domain", "POST", path, map[string]string{"name": domain})
	if err != nil {
		return provider.PagesDomain{}, err
	}
	raw, err := decodeResult[cloudflare.PagesDomain](env)
	if err != nil {
		return provider.PagesDomain{}, err
	}
	return provider.PagesDomain{Name: raw.Name, Status: string(raw.Status)}, nil
}
