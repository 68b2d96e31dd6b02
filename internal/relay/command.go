package relay

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/expense"
	"github.com/nibras/valet/internal/lookup"
	"github.com/nibras/valet/internal/notes"
	"github.com/nibras/valet/internal/prayer"
	"gorm.io/gorm"
)

// recentNotes is how many notes /notes shows.
const recentNotes = 10

// CommandHandler processes text-only "/" commands from chat: expenses,
// notes, prayer times, and lookups. Commands that stage or deliver files
// are handled by FileHandler instead.
type CommandHandler struct {
	db        *gorm.DB
	expenses  *expense.Client // nil when Airtable is not configured
	prayers   *prayer.Client
	geocoder  *prayer.Geocoder
	domains   *lookup.Domains
	numbers   *lookup.Numbers // nil when NumVerify is not configured
	http      *http.Client
	prayerCfg config.PrayerConfig
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	DB        *gorm.DB
	Expenses  *expense.Client // optional
	Prayers   *prayer.Client  // defaults to the public Aladhan API
	Geocoder  *prayer.Geocoder
	Domains   *lookup.Domains
	Numbers   *lookup.Numbers // optional
	HTTP      *http.Client    // for /ping and /shorten; defaults to 10s timeout
	PrayerCfg config.PrayerConfig
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("relay: command handler: db is required")
	}
	prayers := opts.Prayers
	if prayers == nil {
		prayers = prayer.NewClient(prayer.ClientOpts{})
	}
	geocoder := opts.Geocoder
	if geocoder == nil {
		geocoder = prayer.NewGeocoder("", nil)
	}
	domains := opts.Domains
	if domains == nil {
		domains = lookup.NewDomains("8.8.8.8:53", nil)
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &CommandHandler{
		db:        opts.DB,
		expenses:  opts.Expenses,
		prayers:   prayers,
		geocoder:  geocoder,
		domains:   domains,
		numbers:   opts.Numbers,
		http:      hc,
		prayerCfg: opts.PrayerCfg,
	}, nil
}

// Execute runs one text command and returns the reply text. cmd is the
// command word without the slash; args is the rest of the message.
func (ch *CommandHandler) Execute(ctx context.Context, conversation, userName, cmd, args string) string {
	switch cmd {
	case "help", "start":
		return helpText()
	case "addexpense":
		return ch.cmdAddExpense(ctx, args)
	case "expenses":
		return ch.cmdExpenses(ctx)
	case "addnote":
		return ch.cmdAddNote(conversation, userName, args)
	case "notes":
		return ch.cmdNotes(conversation)
	case "clearnotes":
		return ch.cmdClearNotes(conversation)
	case "prayer":
		return ch.cmdPrayer(ctx, conversation)
	case "next":
		return ch.cmdNext(ctx, conversation)
	case "setlocation":
		return ch.cmdSetLocation(ctx, conversation, args)
	case "setmethod":
		return ch.cmdSetMethod(conversation, args)
	case "qibla":
		return ch.cmdQibla(conversation)
	case "whois":
		return ch.cmdWhois(ctx, args)
	case "ping":
		return ch.cmdPing(ctx, args)
	case "number":
		return ch.cmdNumber(ctx, args)
	case "shorten":
		return ch.cmdShorten(ctx, args)
	default:
		return fmt.Sprintf("Unknown command: /%s\n\n%s", cmd, helpText())
	}
}

// --- Expenses ---

func (ch *CommandHandler) cmdAddExpense(ctx context.Context, args string) string {
	if ch.expenses == nil {
		return "Expense tracking is not configured."
	}
	entry, err := expense.ParseEntry(args)
	if err != nil {
		return "Usage: /addexpense amount description | payer | participants | split\nExample: /addexpense 12.50 lunch | Nibras | Yousuf,Furqan | Even"
	}
	res, err := ch.expenses.Add(ctx, entry)
	if err != nil {
		return fmt.Sprintf("Could not save the expense: %v", err)
	}
	return formatExpenseAdded(res)
}

func (ch *CommandHandler) cmdExpenses(ctx context.Context) string {
	if ch.expenses == nil {
		return "Expense tracking is not configured."
	}
	summary, err := ch.expenses.Recent(ctx, 5)
	if err != nil {
		return fmt.Sprintf("Could not fetch expenses: %v", err)
	}
	return formatExpenses(summary)
}

// --- Notes ---

func (ch *CommandHandler) cmdAddNote(conversation, userName, args string) string {
	text := strings.TrimSpace(args)
	if text == "" {
		return "Usage: /addnote your note text"
	}
	if err := notes.Add(ch.db, conversation, userName, text); err != nil {
		return fmt.Sprintf("Could not save the note: %v", err)
	}
	return "Note saved."
}

func (ch *CommandHandler) cmdNotes(conversation string) string {
	recent, err := notes.Recent(ch.db, conversation, recentNotes)
	if err != nil {
		return fmt.Sprintf("Could not fetch notes: %v", err)
	}
	return formatNotes(recent)
}

func (ch *CommandHandler) cmdClearNotes(conversation string) string {
	n, err := notes.Clear(ch.db, conversation)
	if err != nil {
		return fmt.Sprintf("Could not clear notes: %v", err)
	}
	if n == 0 {
		return "No notes to clear."
	}
	return fmt.Sprintf("Cleared %d note(s).", n)
}

// --- Prayer ---

func (ch *CommandHandler) cmdPrayer(ctx context.Context, conversation string) string {
	loc, err := prayer.LocationFor(ch.db, conversation, ch.prayerCfg)
	if err != nil {
		return fmt.Sprintf("Could not load your location: %v", err)
	}
	times, err := ch.prayers.Timings(ctx, loc.Latitude, loc.Longitude, loc.Method, time.Now())
	if err != nil {
		return fmt.Sprintf("Prayer times are unavailable right now: %v", err)
	}
	return formatTimes(loc, times)
}

func (ch *CommandHandler) cmdNext(ctx context.Context, conversation string) string {
	loc, err := prayer.LocationFor(ch.db, conversation, ch.prayerCfg)
	if err != nil {
		return fmt.Sprintf("Could not load your location: %v", err)
	}
	times, err := ch.prayers.Timings(ctx, loc.Latitude, loc.Longitude, loc.Method, time.Now())
	if err != nil {
		return fmt.Sprintf("Prayer times are unavailable right now: %v", err)
	}
	name, at := prayer.Next(times, time.Now())
	return fmt.Sprintf("Next prayer in %s: %s at %s", loc.City, name, prayer.Format12h(at))
}

func (ch *CommandHandler) cmdSetLocation(ctx context.Context, conversation, args string) string {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "Usage: /setlocation city country\nExample: /setlocation Dubai UAE"
	}
	city := fields[0]
	country := strings.Join(fields[1:], " ")
	lat, lon, err := ch.geocoder.Lookup(ctx, city, country)
	if err != nil {
		return fmt.Sprintf("Could not find %s, %s: %v", city, country, err)
	}
	loc, err := prayer.LocationFor(ch.db, conversation, ch.prayerCfg)
	if err != nil {
		return fmt.Sprintf("Could not load your location: %v", err)
	}
	loc.Conversation = conversation
	loc.City = city
	loc.Country = country
	loc.Latitude = lat
	loc.Longitude = lon
	if err := prayer.SaveLocation(ch.db, loc); err != nil {
		return fmt.Sprintf("Could not save the location: %v", err)
	}
	return fmt.Sprintf("Location set to %s, %s (%.4f, %.4f).", city, country, lat, lon)
}

func (ch *CommandHandler) cmdSetMethod(conversation, args string) string {
	method, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return formatMethods()
	}
	name, ok := prayer.Methods[method]
	if !ok {
		return formatMethods()
	}
	if err := prayer.SaveMethod(ch.db, conversation, method, ch.prayerCfg); err != nil {
		return fmt.Sprintf("Could not save the method: %v", err)
	}
	return fmt.Sprintf("Calculation method set to %d (%s).", method, name)
}

func (ch *CommandHandler) cmdQibla(conversation string) string {
	loc, err := prayer.LocationFor(ch.db, conversation, ch.prayerCfg)
	if err != nil {
		return fmt.Sprintf("Could not load your location: %v", err)
	}
	bearing := prayer.Qibla(loc.Latitude, loc.Longitude)
	return fmt.Sprintf("Qibla from %s: %.1f° (%s from true north)",
		loc.City, bearing, prayer.Cardinal(bearing))
}

// --- Lookups ---

func (ch *CommandHandler) cmdWhois(ctx context.Context, args string) string {
	domain := strings.TrimSpace(args)
	if domain == "" {
		return "Usage: /whois example.com"
	}
	info, err := ch.domains.Info(ctx, domain)
	if err != nil {
		return fmt.Sprintf("Whois lookup failed: %v", err)
	}
	return formatWhois(info)
}

func (ch *CommandHandler) cmdPing(ctx context.Context, args string) string {
	site := strings.TrimSpace(args)
	if site == "" {
		return "Usage: /ping example.com"
	}
	status, err := lookup.CheckSite(ctx, ch.http, site)
	if err != nil {
		return fmt.Sprintf("Site check failed: %v", err)
	}
	return formatSite(status)
}

func (ch *CommandHandler) cmdNumber(ctx context.Context, args string) string {
	if ch.numbers == nil {
		return "Phone number lookup is not configured."
	}
	number := strings.TrimSpace(args)
	if number == "" {
		return "Usage: /number +971501234567"
	}
	info, err := ch.numbers.Validate(ctx, number)
	if err != nil {
		return fmt.Sprintf("Number lookup failed: %v", err)
	}
	return formatNumber(info)
}

func (ch *CommandHandler) cmdShorten(ctx context.Context, args string) string {
	longURL := strings.TrimSpace(args)
	if longURL == "" {
		return "Usage: /shorten https://example.com/very/long/url"
	}
	short, err := lookup.Shorten(ctx, ch.http, "", lookup.NormalizeURL(longURL))
	if err != nil {
		return fmt.Sprintf("Could not shorten the URL: %v", err)
	}
	return short
}
