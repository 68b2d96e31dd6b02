package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/dashboard"
	"github.com/nibras/valet/internal/db"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/pdf"
	"github.com/nibras/valet/internal/relay"
	discordadapter "github.com/nibras/valet/internal/relay/discord"
	slackadapter "github.com/nibras/valet/internal/relay/slack"
	"github.com/nibras/valet/internal/staging"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the valet daemon",
		Long:  "Connects to the configured chat platform and answers commands until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "valet.yaml", "path to valet config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	store, err := staging.NewStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}
	merges, err := merge.NewManager(merge.ManagerOpts{
		Store:    store,
		Merger:   pdf.Merger{},
		MaxFiles: cfg.Merge.MaxFiles,
	})
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := relay.NewDaemon(relay.DaemonOpts{
		DB:      gormDB,
		Config:  cfg,
		Adapter: adapter,
		Store:   store,
		Merges:  merges,
		Out:     out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:     gormDB,
				Store:  store,
				Merges: merges,
				Port:   cfg.Dashboard.Port,
				Out:    out,
			})
			if err != nil {
				log.Printf("dashboard: %v", err)
			}
		}()
	}

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (relay.Adapter, error) {
	switch cfg.Platform {
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}
