package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"supportbot/pkg/logx"
)

func writeConfig(t *testing.T, path, rate string) {
	t.Helper()
	body := "telegram:\n  token: t\n  admin_chat_id: 1\nbroadcast:\n  rate_per_minute: " + rate + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestManagerLoadAndGet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "600")

	m := NewManager(path, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broadcast.RatePerMinute != 600 {
		t.Fatalf("rate = %v", cfg.Broadcast.RatePerMinute)
	}
	if m.Get() != cfg {
		t.Fatal("Get() does not return the loaded config")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "600")

	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		_ = m.Watch(ctx)
	}()
	// Give the watcher a moment to install.
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, path, "30")

	select {
	case cfg := <-sub:
		if cfg.Broadcast.RatePerMinute != 30 {
			t.Fatalf("reloaded rate = %v", cfg.Broadcast.RatePerMinute)
		}
		if m.Get().Broadcast.RatePerMinute != 30 {
			t.Fatal("Get() not updated after reload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}

	cancel()
	<-watchDone
}

func TestManagerWatchKeepsOldConfigOnBadEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "600")

	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		_ = m.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	// Broken edit: token removed. The reload is rejected and nothing is
	// published.
	if err := os.WriteFile(path, []byte("telegram:\n  admin_chat_id: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}
	if m.Get().Broadcast.RatePerMinute != 600 {
		t.Fatal("previous config lost after bad edit")
	}

	cancel()
	<-watchDone
}
