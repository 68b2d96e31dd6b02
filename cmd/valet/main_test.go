package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nibras/valet/internal/config"
)

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "valet dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestDBInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "valet.db")
	cfgPath := writeConfig(t, `
platform: discord
discord:
  bot_token: test-token
database:
  driver: sqlite
  path: `+dbPath+`
`)

	out, err := runCmd(t, "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Migrated 3 tables") {
		t.Errorf("db init output = %q", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDBInitMissingConfig(t *testing.T) {
	if _, err := runCmd(t, "db", "init", "--config", "/nonexistent/valet.yaml"); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestCreateAdapterUnknownPlatform(t *testing.T) {
	if _, err := createAdapter(&config.Config{Platform: "telegram"}); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestCreateAdapterDiscord(t *testing.T) {
	a, err := createAdapter(&config.Config{
		Platform: "discord",
		Discord:  config.DiscordConfig{BotToken: "t"},
	})
	if err != nil {
		t.Fatalf("discord adapter: %v", err)
	}
	if a == nil {
		t.Fatal("nil adapter")
	}
}
