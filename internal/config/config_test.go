package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalDiscord = `
platform: discord
discord:
  bot_token: token-123
`

func TestParse_MinimalDiscord(t *testing.T) {
	cfg, err := Parse([]byte(minimalDiscord))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Platform != "discord" {
		t.Errorf("platform = %q, want discord", cfg.Platform)
	}
	if cfg.Discord.BotToken != "token-123" {
		t.Errorf("bot token = %q", cfg.Discord.BotToken)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalDiscord))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Dir != "tmp" {
		t.Errorf("storage dir = %q, want tmp", cfg.Storage.Dir)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "valet.db" {
		t.Errorf("database = %+v, want sqlite valet.db", cfg.Database)
	}
	if cfg.Prayer.City != "Dubai" || cfg.Prayer.Method != 3 {
		t.Errorf("prayer defaults = %+v", cfg.Prayer)
	}
	if cfg.Merge.MaxFiles != 20 {
		t.Errorf("merge max files = %d, want 20", cfg.Merge.MaxFiles)
	}
	if cfg.Airtable.Table != "Expenses" || cfg.Airtable.Participants != "Participants" {
		t.Errorf("airtable defaults = %+v", cfg.Airtable)
	}
	if cfg.Resolver != "8.8.8.8:53" {
		t.Errorf("resolver = %q", cfg.Resolver)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
platform: discord
discord:
  bot_token: t
database:
  driver: mysql
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("mysql defaults = %+v", cfg.Database)
	}
	if cfg.Database.User != "root" || cfg.Database.Name != "valet" {
		t.Errorf("mysql defaults = %+v", cfg.Database)
	}
}

func TestParse_DigestCronDefault(t *testing.T) {
	cfg, err := Parse([]byte(`
platform: discord
discord:
  bot_token: t
prayer:
  digest:
    enabled: true
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Prayer.Digest.Cron != "0 5 * * *" {
		t.Errorf("digest cron = %q, want default", cfg.Prayer.Digest.Cron)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing platform",
			yaml: `storage: {dir: tmp}`,
			want: "platform is required",
		},
		{
			name: "unsupported platform",
			yaml: `platform: telegram`,
			want: "unsupported platform",
		},
		{
			name: "discord without token",
			yaml: `platform: discord`,
			want: "discord.bot_token is required",
		},
		{
			name: "slack without tokens",
			yaml: `platform: slack`,
			want: "slack.app_token is required",
		},
		{
			name: "unknown prayer method",
			yaml: "platform: discord\ndiscord:\n  bot_token: t\nprayer:\n  method: 42",
			want: "not a known calculation method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valet.yaml")
	if err := os.WriteFile(path, []byte(minimalDiscord), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Platform != "discord" {
		t.Errorf("platform = %q", cfg.Platform)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
