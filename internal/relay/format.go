package relay

import (
	"fmt"
	"strings"

	"github.com/nibras/valet/internal/expense"
	"github.com/nibras/valet/internal/imgutil"
	"github.com/nibras/valet/internal/lookup"
	"github.com/nibras/valet/internal/models"
	"github.com/nibras/valet/internal/prayer"
)

// helpText is the /help and unknown-command response.
func helpText() string {
	return strings.TrimSpace(`Valet commands:

Expenses
  /addexpense amount desc | payer | participants | split
  /expenses — total and the 5 most recent

Notes
  /addnote text, /notes, /clearnotes

Prayer times
  /prayer, /next, /qibla
  /setlocation city country, /setmethod n

Files (attach a file with the command)
  /compress — smaller JPEG or optimized PDF
  /convert fmt — ` + strings.Join(imgutil.Formats, ", ") + `
  /resize w h, /watermark text, /ocr
  /merge — start collecting PDFs, then /merge done or /merge cancel

Lookups
  /whois domain, /ping site, /number phone
  /shorten url, /qr text`)
}

// formatExpenseAdded builds the /addexpense confirmation.
func formatExpenseAdded(res expense.AddResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved: %.2f — %s", res.Entry.Amount, res.Entry.Description)
	if res.Entry.Payer != "" {
		fmt.Fprintf(&b, " (paid by %s)", res.Entry.Payer)
	}
	if len(res.MissingNames) > 0 {
		fmt.Fprintf(&b, "\nUnknown participant(s) skipped: %s", strings.Join(res.MissingNames, ", "))
	}
	return b.String()
}

// formatExpenses builds the /expenses summary.
func formatExpenses(s expense.Summary) string {
	if len(s.Recent) == 0 {
		return "No expenses recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total: %.2f\n\nRecent:\n", s.Total)
	for _, e := range s.Recent {
		fmt.Fprintf(&b, "• %s — %.2f %s", e.Date, e.Amount, e.Description)
		if e.Payer != "" {
			fmt.Fprintf(&b, " (paid by %s)", e.Payer)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatNotes builds the /notes listing, oldest first.
func formatNotes(recent []models.Note) string {
	if len(recent) == 0 {
		return "No notes yet. Save one with /addnote."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your last %d note(s):\n", len(recent))
	for i, n := range recent {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatTimes builds the /prayer listing for one day.
func formatTimes(loc models.Location, t prayer.Times) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prayer times for %s, %s:\n", loc.City, loc.Country)
	for _, p := range []struct{ name, at string }{
		{"Fajr", t.Fajr},
		{"Sunrise", t.Sunrise},
		{"Dhuhr", t.Dhuhr},
		{"Asr", t.Asr},
		{"Maghrib", t.Maghrib},
		{"Isha", t.Isha},
	} {
		fmt.Fprintf(&b, "%-8s %s\n", p.name, prayer.Format12h(p.at))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMethods lists the known calculation methods for /setmethod.
func formatMethods() string {
	var b strings.Builder
	b.WriteString("Usage: /setmethod n\n\nKnown methods:\n")
	for _, id := range prayer.MethodIDs() {
		fmt.Fprintf(&b, "%2d. %s\n", id, prayer.Methods[id])
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatWhois builds the /whois reply.
func formatWhois(info lookup.DomainInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Whois for %s:\n", info.Domain)
	if info.Registrar != "" {
		fmt.Fprintf(&b, "Registrar: %s\n", info.Registrar)
	}
	if info.Created != "" {
		fmt.Fprintf(&b, "Created:   %s\n", info.Created)
	}
	if info.Expires != "" {
		fmt.Fprintf(&b, "Expires:   %s\n", info.Expires)
	}
	if len(info.Status) > 0 {
		fmt.Fprintf(&b, "Status:    %s\n", strings.Join(info.Status, ", "))
	}
	if len(info.Addresses) > 0 {
		fmt.Fprintf(&b, "A:         %s\n", strings.Join(info.Addresses, ", "))
	}
	if len(info.MailServers) > 0 {
		fmt.Fprintf(&b, "MX:        %s\n", strings.Join(info.MailServers, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatSite builds the /ping reply.
func formatSite(s lookup.SiteStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.URL)
	if !s.DNSOK {
		b.WriteString("DNS: failed to resolve\n")
		return strings.TrimRight(b.String(), "\n")
	}
	fmt.Fprintf(&b, "DNS: ok (%s)\n", s.IP)
	if s.StatusCode == 0 {
		b.WriteString("HTTP: unreachable\n")
	} else {
		fmt.Fprintf(&b, "HTTP: %d in %dms\n", s.StatusCode, s.Latency.Milliseconds())
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatNumber builds the /number reply.
func formatNumber(info lookup.PhoneInfo) string {
	if !info.Valid {
		return "That number does not look valid."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", info.International)
	fmt.Fprintf(&b, "Country:  %s\n", info.Country)
	if info.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", info.Location)
	}
	if info.Carrier != "" {
		fmt.Fprintf(&b, "Carrier:  %s\n", info.Carrier)
	}
	if info.LineType != "" {
		fmt.Fprintf(&b, "Type:     %s\n", info.LineType)
	}
	return strings.TrimRight(b.String(), "\n")
}
