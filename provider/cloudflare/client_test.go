package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/provider"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{
		Token:     "test-token",
		AccountID: "acct-123",
		BaseURL:   server.URL,
	}, metrics.New())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Options{}, metrics.New()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestListZonesSendsAuthAndFilters(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("name") != "example.com" {
			t.Errorf("expected name filter, got %q", q.Get("name"))
		}
		if q.Get("account.id") != "acct-123" {
			t.Errorf("expected account filter, got %q", q.Get("account.id"))
		}
		fmt.Fprint(w, `{"success":true,"result":[{"id":"z1","name":"example.com","status":"active","name_servers":["a.ns","b.ns"]}],"errors":[]}`)
	}))

	zones, err := client.ListZones(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ListZones failed: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != "z1" || zones[0].Domain != "example.com" {
		t.Errorf("unexpected zones: %+v", zones)
	}
	if len(zones[0].NameServers) != 2 {
		t.Errorf("expected 2 nameservers, got %v", zones[0].NameServers)
	}
}

func TestListRecordsPaginates(t *testing.T) {
	pagesServed := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		page := r.URL.Query().Get("page")

		count := perPage
		if page == "2" {
			count = 3
		}
		records := make([]map[string]any, count)
		for i := range records {
			records[i] = map[string]any{
				"id":      fmt.Sprintf("p%s-r%d", page, i),
				"type":    "CNAME",
				"name":    fmt.Sprintf("sub%d.example.com", i),
				"content": "target.pages.dev",
				"ttl":     1,
				"proxied": true,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "result": records, "errors": []any{}})
	}))

	records, err := client.ListRecords(context.Background(), "z1")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if pagesServed != 2 {
		t.Errorf("expected 2 pages fetched, got %d", pagesServed)
	}
	if len(records) != perPage+3 {
		t.Errorf("expected %d records, got %d", perPage+3, len(records))
	}
	if !records[0].Proxied {
		t.Error("expected proxied flag to survive conversion")
	}
}

func TestAPIErrorCarriesRawPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"result":null,"errors":[{"code":81057,"message":"Record already exists."}]}`)
	}))

	_, err := client.CreateRecord(context.Background(), "z1", provider.Record{
		Name: "www", Type: "CNAME", Content: "target.pages.dev", TTL: 1, Proxied: true,
	})
	if err == nil {
		t.Fatal("expected provider error")
	}

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *provider.APIError, got %T: %v", err, err)
	}
	if !apiErr.HasCode(81057) {
		t.Errorf("expected code 81057 in %+v", apiErr.Errors)
	}
	if len(apiErr.Raw) == 0 {
		t.Error("expected raw error payload to be preserved")
	}

	var transportErr *provider.TransportError
	if errors.As(err, &transportErr) {
		t.Error("api rejection must not be classified as transport failure")
	}
}

func TestMalformedResponseIsTransportError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))

	_, err := client.GetZone(context.Background(), "z1")
	var transportErr *provider.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *provider.TransportError, got %T: %v", err, err)
	}
}

func TestRecordParamsOmitProxiedForNonProxiableTypes(t *testing.T) {
	params := toParams(provider.Record{Name: "@", Type: "TXT", Content: "v=spf1", TTL: 300, Proxied: true})
	if params.Proxied != nil {
		t.Error("expected proxied omitted for TXT record")
	}

	params = toParams(provider.Record{Name: "www", Type: "CNAME", Content: "t.pages.dev", TTL: 1})
	if params.Proxied == nil || *params.Proxied {
		t.Error("expected explicit proxied=false for CNAME record")
	}
}

func TestPatchSettingRoundTrip(t *testing.T) {
	var gotBody map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"success":true,"result":{"id":"ssl","value":"full"},"errors":[]}`)
	}))

	setting, err := client.PatchSetting(context.Background(), "z1", "ssl", "full")
	if err != nil {
		t.Fatalf("PatchSetting failed: %v", err)
	}
	if setting.Value != "full" {
		t.Errorf("expected value full, got %q", setting.Value)
	}
	if gotBody["value"] != "full" {
		t.Errorf("expected patch body value full, got %+v", gotBody)
	}
}
