package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInit(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")

	if err := Init(home, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Verify structure
	for _, d := range []string{"databases", "backups", "locales"} {
		p := filepath.Join(home, d)
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("expected directory %s to exist", d)
		} else if !info.IsDir() {
			t.Errorf("expected %s to be a directory", d)
		}
	}

	// config.yaml should exist
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err != nil {
		t.Error("expected config.yaml to exist")
	}

	// Second init should fail without force
	if err := Init(home, false); err == nil {
		t.Error("expected error on duplicate init")
	}

	// Force should succeed
	if err := Init(home, true); err != nil {
		t.Errorf("expected force init to succeed: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)

	s, err := Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Home != home {
		t.Errorf("expected Home=%s, got %s", home, s.Home)
	}
}

func TestPath(t *testing.T) {
	s := &Store{Home: "/tmp/.herald"}
	got := s.Path("databases", "registry.json")
	want := filepath.Join("/tmp/.herald", "databases", "registry.json")
	if got != want {
		t.Errorf("Path() = %s, want %s", got, want)
	}
}

func TestDatabasesDir(t *testing.T) {
	s := &Store{Home: "/tmp/.herald"}
	if got, want := s.DatabasesDir(), filepath.Join("/tmp/.herald", "databases"); got != want {
		t.Errorf("DatabasesDir() = %s, want %s", got, want)
	}

	s.Config.Databases.Directory = "/elsewhere/dbs"
	if got := s.DatabasesDir(); got != "/elsewhere/dbs" {
		t.Errorf("DatabasesDir() = %s, want /elsewhere/dbs", got)
	}
}

func TestCheckHealth(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)

	issues := CheckHealth(home)
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}

	// Remove a directory to trigger an issue
	os.RemoveAll(filepath.Join(home, "backups"))
	issues = CheckHealth(home)
	if len(issues) == 0 {
		t.Error("expected issues after removing backups dir")
	}
}

func TestHomeEnvVar(t *testing.T) {
	t.Setenv("HERALD_HOME", "/custom/path")
	if got := Home(); got != "/custom/path" {
		t.Errorf("Home() = %s, want /custom/path", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Language != "en" {
		t.Errorf("expected default language 'en', got %s", cfg.Language)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("expected default theme 'dark', got %s", cfg.UI.Theme)
	}
	if cfg.Sort.By != "name" || cfg.Sort.Order != "ascending" {
		t.Errorf("expected default sort name/ascending, got %s/%s", cfg.Sort.By, cfg.Sort.Order)
	}
	if cfg.Backup.Auto {
		t.Error("expected auto backup off by default")
	}
	if cfg.Backup.Interval != "5m" {
		t.Errorf("expected default interval 5m, got %s", cfg.Backup.Interval)
	}
	if cfg.Backup.MaxBackups != 10 {
		t.Errorf("expected max_backups 10, got %d", cfg.Backup.MaxBackups)
	}
	if cfg.WelcomeShown {
		t.Error("expected welcome_shown false by default")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)

	// Write a minimal config with only version
	os.WriteFile(filepath.Join(home, "config.yaml"), []byte("version: \"1\"\n"), 0644)

	s, err := Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Default values should be filled in
	if s.Config.Language != "en" {
		t.Errorf("expected default language, got %s", s.Config.Language)
	}
	if s.Config.Backup.MaxBackups != 10 {
		t.Errorf("expected default max_backups, got %d", s.Config.Backup.MaxBackups)
	}
}

func TestSetConfigValue(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	s, _ := Load(home)

	if err := s.SetConfigValue("sort.by", "modified"); err != nil {
		t.Fatal(err)
	}
	if s.Config.Sort.By != "modified" {
		t.Errorf("expected updated sort.by, got %s", s.Config.Sort.By)
	}

	// Reload and verify persistence
	s2, _ := Load(home)
	if s2.Config.Sort.By != "modified" {
		t.Errorf("config not persisted, got %s", s2.Config.Sort.By)
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	s, _ := Load(home)

	tests := []struct {
		key   string
		value string
	}{
		{"nonexistent.key", "value"},
		{"ui.theme", "solarized"},
		{"sort.by", "shoe_size"},
		{"sort.order", "sideways"},
		{"backup.interval", "7m"},
		{"backup.max_backups", "notanumber"},
		{"backup.max_backups", "0"},
		{"language", "   "},
	}
	for _, tt := range tests {
		if err := s.SetConfigValue(tt.key, tt.value); err == nil {
			t.Errorf("SetConfigValue(%q, %q) expected error", tt.key, tt.value)
		}
	}
}

func TestAddRecentDatabase(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	s, _ := Load(home)

	for _, name := range []string{"a", "b", "c", "b"} {
		if err := s.AddRecentDatabase(name); err != nil {
			t.Fatalf("AddRecentDatabase(%q) failed: %v", name, err)
		}
	}
	want := []string{"b", "c", "a"}
	if diff := cmp.Diff(want, s.Config.Databases.Recent); diff != "" {
		t.Errorf("recent list mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"d", "e", "f"} {
		s.AddRecentDatabase(name)
	}
	if len(s.Config.Databases.Recent) != maxRecent {
		t.Errorf("recent list length = %d, want %d", len(s.Config.Databases.Recent), maxRecent)
	}
	if s.Config.Databases.Recent[0] != "f" {
		t.Errorf("most recent = %s, want f", s.Config.Databases.Recent[0])
	}
}

func TestFixIssues(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)

	// Remove databases dir
	os.RemoveAll(filepath.Join(home, "databases"))

	fixed := FixIssues(home)
	if len(fixed) == 0 {
		t.Error("expected at least one fix")
	}

	// Verify directory was recreated
	if _, err := os.Stat(filepath.Join(home, "databases")); err != nil {
		t.Error("databases dir not recreated")
	}
}

func TestCheckDataIntegrity_NoRegistry(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)

	issues := CheckDataIntegrity(filepath.Join(home, "databases"))
	if len(issues) != 0 {
		t.Errorf("expected no issues before registry exists, got %v", issues)
	}
}

func TestCheckDataIntegrity_BrokenRegistry(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	dbDir := filepath.Join(home, "databases")

	os.WriteFile(filepath.Join(dbDir, "registry.json"), []byte("{not json"), 0644)
	issues := CheckDataIntegrity(dbDir)
	if len(issues) != 1 || issues[0].Severity != "error" {
		t.Errorf("expected a single error for corrupt registry, got %v", issues)
	}
}

func TestCheckDataIntegrity_MissingDirAndStalePointer(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	dbDir := filepath.Join(home, "databases")

	reg := `{"databases":{"default":{"type":"both"}},"current_character_db":"gone","current_coa_db":"default"}`
	os.WriteFile(filepath.Join(dbDir, "registry.json"), []byte(reg), 0644)

	issues := CheckDataIntegrity(dbDir)
	var missingDir, stalePointer bool
	for _, i := range issues {
		if i.Severity != "error" {
			continue
		}
		if strings.Contains(i.Message, "missing directory") {
			missingDir = true
		}
		if strings.Contains(i.Message, "unregistered database") {
			stalePointer = true
		}
	}
	if !missingDir {
		t.Errorf("expected missing directory error, got %v", issues)
	}
	if !stalePointer {
		t.Errorf("expected stale pointer error, got %v", issues)
	}
}

func TestCheckDataIntegrity_UnregisteredDir(t *testing.T) {
	tmp := t.TempDir()
	home := filepath.Join(tmp, ".herald")
	Init(home, false)
	dbDir := filepath.Join(home, "databases")

	reg := `{"databases":{},"current_character_db":"","current_coa_db":""}`
	os.WriteFile(filepath.Join(dbDir, "registry.json"), []byte(reg), 0644)
	os.MkdirAll(filepath.Join(dbDir, "Database_orphan"), 0755)

	issues := CheckDataIntegrity(dbDir)
	if len(issues) != 1 || issues[0].Severity != "warning" {
		t.Errorf("expected a single warning for unregistered dir, got %v", issues)
	}
}
