package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/expense"
	"github.com/nibras/valet/internal/lookup"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/prayer"
	"github.com/nibras/valet/internal/staging"
	"gorm.io/gorm"
)

// Daemon is the main valet process. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Router, and fires the daily
// prayer digest on schedule.
type Daemon struct {
	db      *gorm.DB
	cfg     *config.Config
	adapter Adapter
	store   *staging.Store
	merges  *merge.Manager
	out     io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon. Store and Merges
// are shared with the dashboard so both see the same live state.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Adapter Adapter
	Store   *staging.Store
	Merges  *merge.Manager
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("relay: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("relay: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: adapter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: store is required")
	}
	if opts.Merges == nil {
		return nil, fmt.Errorf("relay: merge manager is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:      opts.DB,
		cfg:     opts.Config,
		adapter: opts.Adapter,
		store:   opts.Store,
		merges:  opts.Merges,
		out:     out,
	}, nil
}

// Run starts the valet daemon. It connects the adapter, builds the
// handlers and router, and blocks until the context is cancelled. On
// shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Valet connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("relay: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	// Optional upstream clients.
	var expenses *expense.Client
	if d.cfg.Airtable.Token != "" && d.cfg.Airtable.BaseID != "" {
		var err error
		expenses, err = expense.NewClient(expense.ClientOpts{Config: d.cfg.Airtable})
		if err != nil {
			d.adapter.Close()
			return fmt.Errorf("relay: build airtable client: %w", err)
		}
	} else {
		fmt.Fprintf(d.out, "relay: no airtable credentials; expense commands disabled\n")
	}
	var numbers *lookup.Numbers
	if d.cfg.NumVerify.APIKey != "" {
		var err error
		numbers, err = lookup.NewNumbers(d.cfg.NumVerify.APIKey, "", nil)
		if err != nil {
			d.adapter.Close()
			return fmt.Errorf("relay: build numverify client: %w", err)
		}
	} else {
		fmt.Fprintf(d.out, "relay: no numverify key; /number disabled\n")
	}

	// Build CommandHandler.
	cmdHandler, err := NewCommandHandler(CommandHandlerOpts{
		DB:        d.db,
		Expenses:  expenses,
		Numbers:   numbers,
		Domains:   lookup.NewDomains(d.cfg.Resolver, nil),
		PrayerCfg: d.cfg.Prayer,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build command handler: %w", err)
	}

	// Build FileHandler.
	fileHandler, err := NewFileHandler(FileHandlerOpts{
		Store:      d.store,
		Merges:     d.merges,
		DB:         d.db,
		Downloader: d.adapter,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build file handler: %w", err)
	}

	// Build Router.
	router, err := NewRouter(RouterOpts{
		CmdHandler:  cmdHandler,
		FileHandler: fileHandler,
		Merges:      d.merges,
		Store:       d.store,
		Adapter:     d.adapter,
		BotUserID:   botUserID,
		Out:         d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: build router: %w", err)
	}

	// Start listening for inbound messages.
	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("relay: listen: %w", err)
	}

	// Start digest scheduler goroutine.
	go d.runDigestScheduler(ctx)

	fmt.Fprintf(d.out, "Valet online\n")

	// Main event loop: pump inbound messages until context is cancelled.
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Valet shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				log.Printf("relay: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Valet stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				// Adapter closed the channel.
				fmt.Fprintf(d.out, "Valet inbound channel closed\n")
				if err := d.adapter.Close(); err != nil {
					log.Printf("relay: close adapter: %v", err)
				}
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}

// runDigestScheduler fires the daily prayer-times digest on its cron
// schedule. It returns immediately if the digest is disabled or no
// channel is configured to receive it.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	digest := d.cfg.Prayer.Digest
	if !digest.Enabled || digest.Cron == "" {
		return
	}
	channelID := d.digestChannel()
	if channelID == "" {
		fmt.Fprintf(d.out, "relay: digest enabled but no channel configured; skipping\n")
		return
	}

	wait := nextCronDuration(digest.Cron)
	if wait <= 0 {
		log.Printf("relay: digest cron %q did not parse; digest disabled", digest.Cron)
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx, channelID)
			if wait := nextCronDuration(digest.Cron); wait > 0 {
				timer.Reset(wait)
			}
		}
	}
}

// digestChannel returns the channel the daily digest posts to.
func (d *Daemon) digestChannel() string {
	switch d.cfg.Platform {
	case "discord":
		return d.cfg.Discord.ChannelID
	case "slack":
		return d.cfg.Slack.ChannelID
	}
	return ""
}

// fireDigest builds and sends one daily prayer digest.
func (d *Daemon) fireDigest(ctx context.Context, channelID string) {
	loc, err := prayer.LocationFor(d.db, channelID, d.cfg.Prayer)
	if err != nil {
		log.Printf("relay: digest location: %v", err)
		return
	}
	client := prayer.NewClient(prayer.ClientOpts{})
	times, err := client.Timings(ctx, loc.Latitude, loc.Longitude, loc.Method, time.Now())
	if err != nil {
		log.Printf("relay: digest timings: %v", err)
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{
		ChannelID: channelID,
		Text:      "Good morning!\n\n" + formatTimes(loc, times),
	}); err != nil {
		log.Printf("relay: send digest: %v", err)
	}
}
