// Package lookup implements the network inspection commands: domain
// whois, site health, phone number validation, and URL shortening.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/miekg/dns"
)

// DomainInfo is the /whois command result.
type DomainInfo struct {
	Domain      string
	Registrar   string
	Created     string
	Expires     string
	Status      []string
	Addresses   []string // A records
	MailServers []string // MX exchanges
}

// WhoisFunc fetches the raw whois record for a domain. Overridable in tests.
type WhoisFunc func(domain string) (string, error)

// Domains resolves whois and DNS facts about domains.
type Domains struct {
	resolver string // DNS server, host:port
	whois    WhoisFunc
}

// NewDomains creates a Domains lookup against the given DNS resolver.
func NewDomains(resolver string, whoisFn WhoisFunc) *Domains {
	if whoisFn == nil {
		whoisFn = func(domain string) (string, error) {
			return whois.Whois(domain)
		}
	}
	return &Domains{resolver: resolver, whois: whoisFn}
}

// Info fetches whois registration data plus A and MX records. DNS record
// failures are tolerated; registration data is required.
func (d *Domains) Info(ctx context.Context, domain string) (DomainInfo, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return DomainInfo{}, fmt.Errorf("lookup: domain is required")
	}

	raw, err := d.whois(domain)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("lookup: whois %s: %w", domain, err)
	}
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("lookup: parse whois for %s: %w", domain, err)
	}

	info := DomainInfo{
		Domain:    domain,
		Registrar: parsed.Registrar.Name,
		Created:   parsed.Domain.CreatedDate,
		Expires:   parsed.Domain.ExpirationDate,
		Status:    parsed.Domain.Status,
	}

	// DNS details are best-effort decoration.
	if addrs, err := d.queryA(ctx, domain); err == nil {
		info.Addresses = addrs
	}
	if mx, err := d.queryMX(ctx, domain); err == nil {
		info.MailServers = mx
	}
	return info, nil
}

// queryA resolves the domain's A records via the configured resolver.
func (d *Domains) queryA(ctx context.Context, domain string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	r, err := exchange(ctx, m, d.resolver)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ans := range r.Answer {
		if a, ok := ans.(*dns.A); ok {
			out = append(out, a.A.String())
		}
	}
	return out, nil
}

// queryMX resolves the domain's MX records via the configured resolver.
func (d *Domains) queryMX(ctx context.Context, domain string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	r, err := exchange(ctx, m, d.resolver)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ans := range r.Answer {
		if mx, ok := ans.(*dns.MX); ok {
			out = append(out, strings.TrimSuffix(mx.Mx, "."))
		}
	}
	return out, nil
}

func exchange(ctx context.Context, m *dns.Msg, resolver string) (*dns.Msg, error) {
	c := &dns.Client{Timeout: 5 * time.Second}
	r, _, err := c.ExchangeContext(ctx, m, resolver)
	if err != nil {
		return nil, err
	}
	return r, nil
}
