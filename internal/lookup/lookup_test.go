package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const fakeWhoisRecord = `Domain Name: EXAMPLE.COM
Registrar: Example Registrar Inc.
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2027-08-13T04:00:00Z
Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
`

func TestDomains_Info_ParsesWhois(t *testing.T) {
	d := NewDomains("127.0.0.1:1", func(domain string) (string, error) {
		if domain != "example.com" {
			t.Errorf("whois called with %q", domain)
		}
		return fakeWhoisRecord, nil
	})

	// Resolver points nowhere; DNS decoration is best-effort and must not
	// fail the lookup.
	info, err := d.Info(context.Background(), " Example.COM ")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Registrar != "Example Registrar Inc." {
		t.Errorf("registrar = %q", info.Registrar)
	}
	if !strings.HasPrefix(info.Created, "1995-08-14") {
		t.Errorf("created = %q", info.Created)
	}
	if len(info.Status) == 0 {
		t.Error("expected at least one status")
	}
}

func TestDomains_Info_EmptyDomain(t *testing.T) {
	d := NewDomains("127.0.0.1:1", func(string) (string, error) { return "", nil })
	if _, err := d.Info(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty domain")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"https://example.com/x", "https://example.com/x"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckSite_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st, err := CheckSite(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if st.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", st.StatusCode)
	}
	if !st.DNSOK || st.IP == "" {
		t.Errorf("dns = %v ip = %q, want resolved", st.DNSOK, st.IP)
	}
	if st.Latency <= 0 {
		t.Errorf("latency = %v, want > 0", st.Latency)
	}
}

func TestCheckSite_ConnectFailureIsDiagnostic(t *testing.T) {
	// Closed port: the request fails but the command still reports.
	st, err := CheckSite(context.Background(), &http.Client{}, "http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if st.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for failed request", st.StatusCode)
	}
}

func TestCheckSite_BadURL(t *testing.T) {
	if _, err := CheckSite(context.Background(), nil, "http://"); err == nil {
		t.Fatal("expected error for empty host")
	}
}

func TestNumbers_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("number"); got != "+14155550100" {
			t.Errorf("number = %q, want cleaned +14155550100", got)
		}
		if r.URL.Query().Get("access_key") != "key-1" {
			t.Error("missing access key")
		}
		w.Write([]byte(`{"valid":true,"international_format":"+1 415-555-0100",
			"country_name":"United States of America","location":"California",
			"carrier":"Example Wireless","line_type":"mobile"}`))
	}))
	defer srv.Close()

	n, err := NewNumbers("key-1", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new numbers: %v", err)
	}
	info, err := n.Validate(context.Background(), "+1 (415) 555-0100")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !info.Valid || info.Carrier != "Example Wireless" {
		t.Errorf("info = %+v", info)
	}
}

func TestNewNumbers_RequiresKey(t *testing.T) {
	if _, err := NewNumbers("", "", nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestShorten(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/very/long" {
			t.Errorf("url = %q", got)
		}
		w.Write([]byte("https://tinyurl.com/abc123\n"))
	}))
	defer srv.Close()

	short, err := Shorten(context.Background(), srv.Client(), srv.URL, "example.com/very/long")
	if err != nil {
		t.Fatalf("shorten: %v", err)
	}
	if short != "https://tinyurl.com/abc123" {
		t.Errorf("short = %q", short)
	}
}

func TestShorten_Empty(t *testing.T) {
	if _, err := Shorten(context.Background(), nil, "", "  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}
