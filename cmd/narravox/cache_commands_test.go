package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/narravoxlabs/narravox/internal/cache"
)

func cacheConfig(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	cfgPath := writeConfig(t, fmt.Sprintf("cache:\n  path: %q\n", dbPath))
	return cfgPath, dbPath
}

func seedSnapshot(t *testing.T, dbPath, scope, cacheKey string) {
	t.Helper()
	ctx := context.Background()
	store, err := cache.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()
	if err := store.SaveSnapshot(ctx, scope, cacheKey, []byte(`{}`)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
}

func TestCacheList_Empty(t *testing.T) {
	cfgPath, _ := cacheConfig(t)

	stdout, _, err := runCLI(t, "--config", cfgPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(stdout, "no cached snapshots") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestCacheListAndRm(t *testing.T) {
	cfgPath, dbPath := cacheConfig(t)
	seedSnapshot(t, dbPath, "/books/alpha", "ck-1")

	stdout, _, err := runCLI(t, "--config", cfgPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(stdout, "/books/alpha") || !strings.Contains(stdout, "ck-1") {
		t.Fatalf("stdout = %q", stdout)
	}

	stdout, _, err = runCLI(t, "--config", cfgPath, "cache", "rm", "/books/alpha")
	if err != nil {
		t.Fatalf("cache rm: %v", err)
	}
	if !strings.Contains(stdout, "deleted snapshot for /books/alpha") {
		t.Fatalf("stdout = %q", stdout)
	}

	stdout, _, err = runCLI(t, "--config", cfgPath, "cache", "rm", "/books/alpha")
	if err != nil {
		t.Fatalf("cache rm (absent): %v", err)
	}
	if !strings.Contains(stdout, "no snapshot for /books/alpha") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestCacheRmAll(t *testing.T) {
	cfgPath, dbPath := cacheConfig(t)
	seedSnapshot(t, dbPath, "/books/alpha", "ck-1")
	seedSnapshot(t, dbPath, "/books/beta", "ck-2")

	stdout, _, err := runCLI(t, "--config", cfgPath, "cache", "rm", "--all")
	if err != nil {
		t.Fatalf("cache rm --all: %v", err)
	}
	if !strings.Contains(stdout, "deleted 2 snapshots") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestCachePrune_KeepsFreshSnapshots(t *testing.T) {
	cfgPath, dbPath := cacheConfig(t)
	seedSnapshot(t, dbPath, "/books/alpha", "ck-1")

	stdout, _, err := runCLI(t, "--config", cfgPath, "cache", "prune", "--older-than", "720h")
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	if !strings.Contains(stdout, "pruned 0 snapshots") {
		t.Fatalf("stdout = %q", stdout)
	}
}
