package relay

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/db"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/models"
	"github.com/nibras/valet/internal/staging"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway sqlite database with all models migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "relay_test.db"),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// concatMerger implements merge.Merger by concatenating input files with
// a separator. Inputs starting with "CORRUPT" fail with a malformed error.
type concatMerger struct{}

func (concatMerger) Merge(ctx context.Context, paths []string, outPath string) error {
	var parts []string
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if strings.HasPrefix(string(data), "CORRUPT") {
			return &merge.MalformedInputError{Position: i + 1, Err: fmt.Errorf("bad header")}
		}
		parts = append(parts, string(data))
	}
	return os.WriteFile(outPath, []byte(strings.Join(parts, "|")), 0o644)
}

// testRig bundles the router with its collaborators for assertions.
type testRig struct {
	router  *Router
	adapter *MockAdapter
	store   *staging.Store
	merges  *merge.Manager
	db      *gorm.DB
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	gdb := newTestDB(t)
	store, err := staging.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	merges, err := merge.NewManager(merge.ManagerOpts{Store: store, Merger: concatMerger{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	adapter := NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("connect adapter: %v", err)
	}

	cmds, err := NewCommandHandler(CommandHandlerOpts{
		DB:        gdb,
		PrayerCfg: config.PrayerConfig{City: "Dubai", Country: "UAE", Latitude: 25.2, Longitude: 55.27, Method: 3},
	})
	if err != nil {
		t.Fatalf("new command handler: %v", err)
	}
	files, err := NewFileHandler(FileHandlerOpts{
		Store: store, Merges: merges, DB: gdb, Downloader: adapter,
	})
	if err != nil {
		t.Fatalf("new file handler: %v", err)
	}
	router, err := NewRouter(RouterOpts{
		CmdHandler:  cmds,
		FileHandler: files,
		Merges:      merges,
		Store:       store,
		Adapter:     adapter,
		BotUserID:   "bot-1",
		Out:         io.Discard,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &testRig{router: router, adapter: adapter, store: store, merges: merges, db: gdb}
}

func (r *testRig) handle(text string, atts ...Attachment) {
	r.router.Handle(context.Background(), InboundMessage{
		Platform:    "mock",
		ChannelID:   "C1",
		UserID:      "user-7",
		UserName:    "nibras",
		Text:        text,
		Attachments: atts,
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args string
		ok   bool
	}{
		{"/help", "help", "", true},
		{"/addnote buy milk", "addnote", "buy milk", true},
		{"/MERGE done", "merge", "done", true},
		{"hello there", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		cmd, args, ok := parseCommand(tt.text)
		if cmd != tt.cmd || args != tt.args || ok != tt.ok {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, cmd, args, ok, tt.cmd, tt.args, tt.ok)
		}
	}
}

func TestResolveConversation(t *testing.T) {
	if got := resolveConversation("C1", ""); got != "C1" {
		t.Errorf("top-level conversation = %q, want C1", got)
	}
	if got := resolveConversation("C1", "T9"); got != "C1:T9" {
		t.Errorf("threaded conversation = %q, want C1:T9", got)
	}
}

func TestRouterIgnoresSelfMessages(t *testing.T) {
	rig := newTestRig(t)
	rig.router.Handle(context.Background(), InboundMessage{
		ChannelID: "C1", UserID: "bot-1", Text: "/help",
	})
	if n := rig.adapter.SentCount(); n != 0 {
		t.Errorf("self-message produced %d replies, want 0", n)
	}
}

func TestRouterIgnoresPlainChatter(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("just talking, no command")
	if n := rig.adapter.SentCount(); n != 0 {
		t.Errorf("plain chatter produced %d replies, want 0", n)
	}
}

func TestRouterHelp(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/help")
	sent, ok := rig.adapter.LastSent()
	if !ok {
		t.Fatal("no reply sent")
	}
	if !strings.Contains(sent.Text, "/merge") {
		t.Errorf("help text missing /merge: %q", sent.Text)
	}
}

func TestRouterUnknownCommand(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/frobnicate")
	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "Unknown command") {
		t.Errorf("unexpected reply: %q", sent.Text)
	}
}

func TestRouterNotesRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/addnote buy milk")
	rig.handle("/addnote call mom")
	rig.handle("/notes")

	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "buy milk") || !strings.Contains(sent.Text, "call mom") {
		t.Errorf("notes listing missing entries: %q", sent.Text)
	}

	rig.handle("/clearnotes")
	sent, _ = rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "Cleared 2") {
		t.Errorf("unexpected clear reply: %q", sent.Text)
	}
}

func TestRouterSetMethod(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/setmethod 13")
	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "method set to 13") {
		t.Errorf("unexpected reply: %q", sent.Text)
	}

	rig.handle("/setmethod 99")
	sent, _ = rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "Known methods") {
		t.Errorf("unexpected reply for bad method: %q", sent.Text)
	}
}

func TestRouterMergeHappyPath(t *testing.T) {
	rig := newTestRig(t)
	rig.adapter.RegisterFile("u/a", []byte("first"))
	rig.adapter.RegisterFile("u/b", []byte("second"))

	rig.handle("/merge", Attachment{Name: "a.pdf", URL: "u/a"})
	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "1 file(s) collected") {
		t.Errorf("unexpected start reply: %q", sent.Text)
	}

	// A bare attachment while collecting joins the session.
	rig.handle("", Attachment{Name: "b.pdf", URL: "u/b"})
	sent, _ = rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "2 file(s) collected") {
		t.Errorf("unexpected add reply: %q", sent.Text)
	}

	rig.handle("/merge done")
	sent, _ = rig.adapter.LastSent()
	if sent.File == nil {
		t.Fatalf("merge done delivered no file: %q", sent.Text)
	}
	if !strings.Contains(sent.Text, "Merged 2") {
		t.Errorf("unexpected done reply: %q", sent.Text)
	}

	// Everything released once the reply is out.
	if stats := rig.store.Stats(); stats.Artifacts != 0 {
		t.Errorf("%d artifacts left after merge", stats.Artifacts)
	}
	if got := rig.merges.State("C1"); got != merge.StateIdle {
		t.Errorf("state after merge = %v, want idle", got)
	}

	var row models.MergeLog
	if err := rig.db.Last(&row).Error; err != nil {
		t.Fatalf("merge log: %v", err)
	}
	if row.Outcome != "merged" || row.InputCount != 2 {
		t.Errorf("merge log = %s/%d, want merged/2", row.Outcome, row.InputCount)
	}
}

func TestRouterMergeMalformedInput(t *testing.T) {
	rig := newTestRig(t)
	rig.adapter.RegisterFile("u/good", []byte("fine"))
	rig.adapter.RegisterFile("u/bad", []byte("CORRUPT bytes"))

	rig.handle("/merge", Attachment{Name: "good.pdf", URL: "u/good"})
	rig.handle("", Attachment{Name: "bad.pdf", URL: "u/bad"})
	rig.handle("/merge done")

	sent, _ := rig.adapter.LastSent()
	if sent.File != nil {
		t.Error("failed merge delivered a file")
	}
	if !strings.Contains(sent.Text, "file 2 (bad.pdf)") {
		t.Errorf("failure reply missing position and name: %q", sent.Text)
	}
	if stats := rig.store.Stats(); stats.Artifacts != 0 {
		t.Errorf("%d artifacts leaked after failed merge", stats.Artifacts)
	}

	var row models.MergeLog
	if err := rig.db.Last(&row).Error; err != nil {
		t.Fatalf("merge log: %v", err)
	}
	if row.Outcome != "failed" {
		t.Errorf("merge log outcome = %s, want failed", row.Outcome)
	}
}

func TestRouterMergeCancel(t *testing.T) {
	rig := newTestRig(t)
	rig.adapter.RegisterFile("u/a", []byte("first"))

	rig.handle("/merge", Attachment{Name: "a.pdf", URL: "u/a"})
	rig.handle("/merge cancel")

	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "cancelled") {
		t.Errorf("unexpected cancel reply: %q", sent.Text)
	}
	if stats := rig.store.Stats(); stats.Artifacts != 0 {
		t.Errorf("%d artifacts left after cancel", stats.Artifacts)
	}

	var row models.MergeLog
	if err := rig.db.Last(&row).Error; err != nil {
		t.Fatalf("merge log: %v", err)
	}
	if row.Outcome != "cancelled" || row.InputCount != 1 {
		t.Errorf("merge log = %s/%d, want cancelled/1", row.Outcome, row.InputCount)
	}
}

func TestRouterMergeDoneWithoutSession(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/merge done")
	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "No merge in progress") {
		t.Errorf("unexpected reply: %q", sent.Text)
	}
}

func TestRouterMergeDoneEmptySessionStaysOpen(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/merge")
	rig.handle("/merge done")

	sent, _ := rig.adapter.LastSent()
	if !strings.Contains(sent.Text, "Nothing to merge") {
		t.Errorf("unexpected reply: %q", sent.Text)
	}
	if got := rig.merges.State("C1"); got != merge.StateCollecting {
		t.Errorf("state after empty done = %v, want collecting", got)
	}
}

func TestRouterQRDeliversAndReleases(t *testing.T) {
	rig := newTestRig(t)
	rig.handle("/qr https://example.com")

	sent, _ := rig.adapter.LastSent()
	if sent.File == nil {
		t.Fatalf("no QR file delivered: %q", sent.Text)
	}
	if sent.File.Name != "qr.png" {
		t.Errorf("QR file name = %q", sent.File.Name)
	}
	if stats := rig.store.Stats(); stats.Artifacts != 0 {
		t.Errorf("%d artifacts left after QR delivery", stats.Artifacts)
	}
}
