package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hfi/postlink-bot/internal/config"
	"github.com/hfi/postlink-bot/internal/storage"
)

func TestOpenPersister(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := config.DefaultConfig().Storage

	cfg.Type = config.StorageMemory
	p, err := openPersister(ctx, cfg)
	if err != nil || p != nil {
		t.Errorf("memory backend = (%v, %v), want (nil, nil)", p, err)
	}

	cfg.Type = config.StorageFile
	cfg.File.Path = filepath.Join(dir, "links.json")
	p, err = openPersister(ctx, cfg)
	if err != nil {
		t.Fatalf("file backend error: %v", err)
	}
	if fp, ok := p.(*storage.FilePersister); !ok || fp.Path() != cfg.File.Path {
		t.Errorf("file backend = %#v", p)
	}

	cfg.Type = config.StorageSQLite
	cfg.SQLite.Path = filepath.Join(dir, "links.db")
	p, err = openPersister(ctx, cfg)
	if err != nil {
		t.Fatalf("sqlite backend error: %v", err)
	}
	if p.Name() != "sqlite" {
		t.Errorf("sqlite backend name = %q", p.Name())
	}
	p.Close()

	cfg.Type = config.StorageRedis
	cfg.Redis.Address = "127.0.0.1:1"
	if _, err := openPersister(ctx, cfg); err == nil {
		t.Error("redis backend with unreachable address should fail")
	}

	cfg.Type = "tape"
	if _, err := openPersister(ctx, cfg); err == nil {
		t.Error("unknown backend should fail")
	}
}
