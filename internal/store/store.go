package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	Theme string `yaml:"theme"`
}

// DatabasesConfig holds database location settings.
type DatabasesConfig struct {
	Directory string   `yaml:"directory,omitempty"`
	Recent    []string `yaml:"recent,omitempty"`
}

// SortConfig holds default list ordering.
type SortConfig struct {
	By    string `yaml:"by"`
	Order string `yaml:"order"`
}

// BackupConfig holds automatic backup settings.
type BackupConfig struct {
	Auto       bool   `yaml:"auto"`
	Interval   string `yaml:"interval"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config holds herald configuration.
type Config struct {
	Version      string          `yaml:"version"`
	Language     string          `yaml:"language"`
	UI           UIConfig        `yaml:"ui,omitempty"`
	Databases    DatabasesConfig `yaml:"databases,omitempty"`
	Sort         SortConfig      `yaml:"sort,omitempty"`
	Backup       BackupConfig    `yaml:"backup,omitempty"`
	WelcomeShown bool            `yaml:"welcome_shown"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version:  "1",
		Language: "en",
		UI: UIConfig{
			Theme: "dark",
		},
		Sort: SortConfig{
			By:    "name",
			Order: "ascending",
		},
		Backup: BackupConfig{
			Auto:       false,
			Interval:   "5m",
			MaxBackups: 10,
		},
	}
}

// Store represents a loaded HERALD_HOME.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// maxRecent caps the recent-database list in config.
const maxRecent = 5

// Home returns the HERALD_HOME path, respecting the HERALD_HOME env var.
func Home() string {
	if h := os.Getenv("HERALD_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".herald")
	}
	return filepath.Join(home, ".herald")
}

// Init creates the HERALD_HOME directory structure.
func Init(home string, force bool) error {
	if _, err := os.Stat(home); err == nil && !force {
		return fmt.Errorf("HERALD_HOME already exists at %s (use --force to reinitialize)", home)
	}

	dirs := []string{
		home,
		filepath.Join(home, "databases"),
		filepath.Join(home, "backups"),
		filepath.Join(home, "locales"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Load reads and validates an existing HERALD_HOME.
// Missing config fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read HERALD_HOME config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfgPath := filepath.Join(s.Home, "config.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetConfigValue sets a config value by dot-path key (e.g. "sort.by").
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "language":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("language must not be empty")
		}
		s.Config.Language = value
	case "ui.theme":
		if value != "dark" && value != "light" {
			return fmt.Errorf("ui.theme must be dark or light")
		}
		s.Config.UI.Theme = value
	case "databases.directory":
		s.Config.Databases.Directory = value
	case "sort.by":
		if value != "name" && value != "created" && value != "modified" {
			return fmt.Errorf("sort.by must be one of: name, created, modified")
		}
		s.Config.Sort.By = value
	case "sort.order":
		if value != "ascending" && value != "descending" {
			return fmt.Errorf("sort.order must be ascending or descending")
		}
		s.Config.Sort.Order = value
	case "backup.auto":
		s.Config.Backup.Auto = value == "true"
	case "backup.interval":
		switch value {
		case "off", "1m", "5m", "10m", "30m":
			s.Config.Backup.Interval = value
		default:
			return fmt.Errorf("backup.interval must be one of: off, 1m, 5m, 10m, 30m")
		}
	case "backup.max_backups":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 1 {
			return fmt.Errorf("backup.max_backups must be a positive integer")
		}
		s.Config.Backup.MaxBackups = n
	case "welcome_shown":
		s.Config.WelcomeShown = value == "true"
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: language, ui.theme, databases.directory, sort.by, sort.order, backup.auto, backup.interval, backup.max_backups, welcome_shown", key)
	}
	return s.SaveConfig()
}

// Path resolves a path within HERALD_HOME.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// DatabasesDir returns the directory that holds all databases. An explicit
// databases.directory config value wins over the vault default.
func (s *Store) DatabasesDir() string {
	if s.Config.Databases.Directory != "" {
		return s.Config.Databases.Directory
	}
	return s.Path("databases")
}

// BackupsDir returns the directory that holds backup archives.
func (s *Store) BackupsDir() string {
	return s.Path("backups")
}

// AddRecentDatabase records name as the most recently used database and
// persists the config. The list is deduplicated and capped.
func (s *Store) AddRecentDatabase(name string) error {
	recent := []string{name}
	for _, r := range s.Config.Databases.Recent {
		if r != name {
			recent = append(recent, r)
		}
	}
	if len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}
	s.Config.Databases.Recent = recent
	return s.SaveConfig()
}

// CheckHealth verifies HERALD_HOME structure integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	for _, dir := range []string{"databases", "backups", "locales"} {
		p := filepath.Join(home, dir)
		info, err := os.Stat(p)
		if err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", p)})
		} else if !info.IsDir() {
			issues = append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", p)})
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
	} else {
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		}
	}

	return issues
}

// CheckDataIntegrity validates the database registry and the data files of
// every registered database.
func CheckDataIntegrity(databasesDir string) []Issue {
	var issues []Issue

	regPath := filepath.Join(databasesDir, "registry.json")
	data, err := os.ReadFile(regPath)
	if err != nil {
		// Registry is created lazily; absence alone is not a defect.
		return issues
	}

	var reg struct {
		Databases          map[string]json.RawMessage `json:"databases"`
		CurrentCharacterDB string                     `json:"current_character_db"`
		CurrentCoaDB       string                     `json:"current_coa_db"`
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("registry.json is not valid JSON: %v", err)})
		return issues
	}

	registered := make(map[string]bool)
	for name := range reg.Databases {
		registered[name] = true
		dbDir := filepath.Join(databasesDir, "Database_"+name)
		if info, err := os.Stat(dbDir); err != nil || !info.IsDir() {
			issues = append(issues, Issue{"error", fmt.Sprintf("database %s: missing directory %s", name, dbDir)})
			continue
		}
		for _, rel := range []string{
			filepath.Join("character_data", "characters.json"),
			filepath.Join("coa_data", "coats_of_arms.json"),
		} {
			p := filepath.Join(dbDir, rel)
			raw, err := os.ReadFile(p)
			if err != nil {
				continue // data files are created on first save
			}
			var parsed []json.RawMessage
			if err := json.Unmarshal(raw, &parsed); err != nil {
				issues = append(issues, Issue{"warning", fmt.Sprintf("database %s: %s is not a valid JSON list: %v", name, rel, err)})
			}
		}
	}

	for _, ptr := range []struct{ label, name string }{
		{"current_character_db", reg.CurrentCharacterDB},
		{"current_coa_db", reg.CurrentCoaDB},
	} {
		if ptr.name != "" && !registered[ptr.name] {
			issues = append(issues, Issue{"error", fmt.Sprintf("%s points at unregistered database %s", ptr.label, ptr.name)})
		}
	}

	entries, err := os.ReadDir(databasesDir)
	if err != nil {
		return issues
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "Database_") {
			continue
		}
		name := strings.TrimPrefix(e.Name(), "Database_")
		if !registered[name] {
			issues = append(issues, Issue{"warning", fmt.Sprintf("directory %s is not in the registry", e.Name())})
		}
	}

	return issues
}

// FixIssues attempts to repair simple issues in HERALD_HOME.
func FixIssues(home string) []string {
	var fixed []string

	for _, dir := range []string{"databases", "backups", "locales"} {
		p := filepath.Join(home, dir)
		if _, err := os.Stat(p); err != nil {
			if err := os.MkdirAll(p, 0755); err == nil {
				fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", dir))
			}
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		cfg := DefaultConfig()
		data, _ := yaml.Marshal(cfg)
		if os.WriteFile(cfgPath, data, 0644) == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	return fixed
}
