package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://hl:hl@localhost/hl?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.FileTruncate != 20 {
		t.Errorf("FileTruncate = %d, want 20", cfg.FileTruncate)
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", cfg.PageSize)
	}
	if cfg.SearchLimit != 100 {
		t.Errorf("SearchLimit = %d, want 100", cfg.SearchLimit)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://hl:hl@localhost/hl")
	t.Setenv("FILE_TRUNCATE", "0")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FileTruncate != 0 {
		t.Errorf("FileTruncate = %d, want 0", cfg.FileTruncate)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q, want console", cfg.LogFormat)
	}
}

func TestLoadRejectsBadBounds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://hl:hl@localhost/hl")
	t.Setenv("FILE_TRUNCATE", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative FILE_TRUNCATE")
	}
}
