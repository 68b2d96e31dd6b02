package lookup

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SiteStatus is the /ping command result.
type SiteStatus struct {
	URL        string
	DNSOK      bool
	IP         string
	StatusCode int // 0 when the HTTP request failed entirely
	Latency    time.Duration
}

// NormalizeURL prefixes https:// when the scheme is missing.
func NormalizeURL(site string) string {
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		return "https://" + site
	}
	return site
}

// CheckSite resolves the host and issues a GET, reporting DNS health,
// status code, and round-trip latency. Resolution or request failures are
// reported in the result rather than returned, matching the command's
// diagnostic purpose.
func CheckSite(ctx context.Context, hc *http.Client, site string) (SiteStatus, error) {
	site = NormalizeURL(site)
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return SiteStatus{}, fmt.Errorf("lookup: bad site %q", site)
	}

	st := SiteStatus{URL: site}

	host := u.Hostname()
	if addrs, err := net.DefaultResolver.LookupHost(ctx, host); err == nil && len(addrs) > 0 {
		st.DNSOK = true
		st.IP = addrs[0]
	}

	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site, nil)
	if err != nil {
		return st, fmt.Errorf("lookup: build request: %w", err)
	}
	start := time.Now()
	resp, err := hc.Do(req)
	st.Latency = time.Since(start)
	if err != nil {
		// DNS/connect/TLS failure: still a useful diagnostic result.
		return st, nil
	}
	resp.Body.Close()
	st.StatusCode = resp.StatusCode
	return st, nil
}
