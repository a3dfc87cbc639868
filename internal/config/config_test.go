package config

import (
	"strings"
	"testing"
	"time"
)

// setRequired sets the minimum environment for a loadable config.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_IDS", "99,100")
	t.Setenv("CHAT_API_URL", "http://chat-api:8081/")
}

func TestLoad_DefaultsAndRequired(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("default port: %q", cfg.Port)
	}
	if cfg.SafetyFactor != 1.1 {
		t.Fatalf("default safety factor: %v", cfg.SafetyFactor)
	}
	if cfg.DBPath != "database.db" || cfg.TempDir != "temp" {
		t.Fatalf("default paths: %q / %q", cfg.DBPath, cfg.TempDir)
	}
	if cfg.UpdateDedupTTL != 24*time.Hour {
		t.Fatalf("default dedup TTL: %v", cfg.UpdateDedupTTL)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[0] != 99 || cfg.AdminIDs[1] != 100 {
		t.Fatalf("admin ids: %+v", cfg.AdminIDs)
	}
	// Trailing slash must be stripped so route joining stays predictable.
	if strings.HasSuffix(cfg.ChatAPIURL, "/") {
		t.Fatalf("chat api url not normalized: %q", cfg.ChatAPIURL)
	}
}

func TestLoad_MissingAdminIDs(t *testing.T) {
	t.Setenv("CHAT_API_URL", "http://chat-api:8081")
	t.Setenv("ADMIN_IDS", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without ADMIN_IDS")
	}
}

func TestLoad_MalformedAdminIDs(t *testing.T) {
	t.Setenv("CHAT_API_URL", "http://chat-api:8081")
	t.Setenv("ADMIN_IDS", "99,abc")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed ADMIN_IDS")
	}
}

func TestLoad_MissingChatAPIURL(t *testing.T) {
	t.Setenv("ADMIN_IDS", "99")
	t.Setenv("CHAT_API_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without CHAT_API_URL")
	}
}

func TestLoad_RejectsSafetyFactorBelowOne(t *testing.T) {
	setRequired(t)
	t.Setenv("SAFETY_FACTOR", "0.9")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for SAFETY_FACTOR < 1")
	}
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown LOG_LEVEL")
	}
}

func TestLoad_NormalizesWarning(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "warning")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected warn, got %q", cfg.LogLevel)
	}
}

func TestLoad_GinModeFallsBackToRelease(t *testing.T) {
	setRequired(t)
	t.Setenv("GIN_MODE", "weird")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected release, got %q", cfg.GinMode)
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := Config{AdminIDs: []int64{99, 100}}
	if !cfg.IsAdmin(99) || cfg.IsAdmin(7) {
		t.Fatal("IsAdmin membership check broken")
	}
}
