package relay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/staging"
)

func newTestDaemon(t *testing.T) (*Daemon, *MockAdapter) {
	t.Helper()
	gdb := newTestDB(t)
	store, err := staging.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	merges, err := merge.NewManager(merge.ManagerOpts{
		Store:    store,
		Merger:   concatMerger{},
		MaxFiles: 10,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	adapter := NewMockAdapter()
	d, err := NewDaemon(DaemonOpts{
		DB:      gdb,
		Config:  &config.Config{Platform: "discord"},
		Adapter: adapter,
		Store:   store,
		Merges:  merges,
		Out:     io.Discard,
	})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, adapter
}

func TestDaemonClosesAdapterOnCancel(t *testing.T) {
	d, adapter := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
	if !adapter.Closed() {
		t.Error("adapter not closed after cancel")
	}
}

func TestDaemonClosesAdapterWhenInboundEnds(t *testing.T) {
	d, adapter := newTestDaemon(t)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	adapter.CloseInbound()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after inbound closed")
	}
	if !adapter.Closed() {
		t.Error("adapter not closed after inbound channel ended")
	}
}
