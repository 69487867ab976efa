package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeConfigPath(t *testing.T) {
	baseDir := t.TempDir()
	subDir := filepath.Join(baseDir, "conf")
	if err := os.MkdirAll(subDir, 0750); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "plain filename", path: "config.yaml"},
		{name: "nested file", path: "conf/bot.yaml"},
		{name: "dot prefix", path: "./config.yaml"},
		{name: "absolute inside base", path: filepath.Join(subDir, "bot.yaml")},
		{name: "parent escape", path: "../etc/passwd", wantErr: true},
		{name: "hidden escape", path: "conf/../../etc/passwd", wantErr: true},
		{name: "absolute outside base", path: "/etc/passwd", wantErr: true},
		{name: "bare dot dot", path: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sanitizeConfigPath(tt.path, baseDir)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("sanitizeConfigPath(%q) = %q, want traversal error", tt.path, result)
				}
				if !strings.Contains(err.Error(), "path traversal detected") {
					t.Errorf("error = %q, want it to mention path traversal", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeConfigPath(%q) unexpected error: %v", tt.path, err)
			}
			absBase, _ := filepath.Abs(baseDir)
			if rel, err := filepath.Rel(absBase, result); err != nil || strings.HasPrefix(rel, "..") {
				t.Errorf("sanitizeConfigPath(%q) = %q, outside base directory", tt.path, result)
			}
		})
	}

	t.Run("empty path resolves to base", func(t *testing.T) {
		result, err := sanitizeConfigPath("", baseDir+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		absBase, _ := filepath.Abs(baseDir)
		if result != absBase {
			t.Errorf("expected %q, got %q", absBase, result)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Links.BaseURL != "https://gplink.com/post/" {
		t.Errorf("BaseURL = %q", cfg.Links.BaseURL)
	}
	if cfg.Links.MaxPost != 10000 {
		t.Errorf("MaxPost = %d, want 10000", cfg.Links.MaxPost)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != StorageFile || cfg.Storage.File.Path != "links.json" {
		t.Errorf("Storage = %+v, want file links.json", cfg.Storage)
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
bot:
  token: file-token
  admin_ids: [1, 2]
  poll_timeout: 30s
links:
  base_url: https://file.test/p/
  max_post: 500
storage:
  type: sqlite
  sqlite:
    path: /var/lib/bot/links.db
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MAX_POST", "42")
	t.Setenv("ADMIN_IDS", "7655961867, 12,abc,,")
	t.Setenv("PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Bot.Token != "file-token" {
		t.Errorf("Token = %q, want from file", cfg.Bot.Token)
	}
	if cfg.Bot.PollTimeout != 30*time.Second {
		t.Errorf("PollTimeout = %v, want 30s", cfg.Bot.PollTimeout)
	}
	if cfg.Links.BaseURL != "https://file.test/p/" {
		t.Errorf("BaseURL = %q, want from file", cfg.Links.BaseURL)
	}
	if cfg.Links.MaxPost != 42 {
		t.Errorf("MaxPost = %d, want env override 42", cfg.Links.MaxPost)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if got := cfg.Bot.AdminIDs; len(got) != 2 || got[0] != 7655961867 || got[1] != 12 {
		t.Errorf("AdminIDs = %v, want [7655961867 12]", got)
	}
	if cfg.Storage.Type != StorageSQLite || cfg.Storage.SQLite.Path != "/var/lib/bot/links.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("links: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Bot.Token = "123:abc"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Bot.Token = "  " }},
		{"empty base url", func(c *Config) { c.Links.BaseURL = "" }},
		{"zero max post", func(c *Config) { c.Links.MaxPost = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"no workers", func(c *Config) { c.Bot.Workers = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }},
		{"redis without address", func(c *Config) {
			c.Storage.Type = StorageRedis
			c.Storage.Redis.Address = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}

	cfg := valid()
	cfg.Bot.Token = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Validate() = %v, want ErrMissingToken", err)
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		in   string
		want []int64
	}{
		{"", nil},
		{"1", []int64{1}},
		{" 1 , 2,3 ", []int64{1, 2, 3}},
		{"1,-2,x3,4", []int64{1, 4}},
	}
	for _, tt := range tests {
		got := ParseIDList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseIDList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseIDList(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 10000
	if got := cfg.ListenAddr(); got != ":10000" {
		t.Errorf("ListenAddr() = %q, want :10000", got)
	}
}
