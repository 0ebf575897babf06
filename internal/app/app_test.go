package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/config"
)

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "app.db")
	cfg.ShutdownTimeout = time.Second

	logger := zerolog.Nop()
	application, err := New(&cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestOpenFeedPersists(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "feed.db")
	logger := zerolog.Nop()
	ctx := context.Background()

	feed, err := OpenFeed(&cfg, &logger)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	conv, err := feed.CreateConversation(ctx, "l1", "buyer", "seller")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFeed(&cfg, &logger)
	if err != nil {
		t.Fatalf("reopen feed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.BuyerID != "buyer" {
		t.Fatalf("unexpected conversation: %+v", got)
	}
}
