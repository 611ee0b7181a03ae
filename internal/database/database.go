// Package database manages the vault's database registry. Each database is
// a Database_<name> directory under the databases dir holding character
// data, coat-of-arms data, or both; registry.json records the set and which
// databases are currently active.
package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/morrowstudios/herald/internal/coa"
	"github.com/morrowstudios/herald/internal/gallery"
)

const (
	registryFileName = "registry.json"
	dirPrefix        = "Database_"

	// DefaultName is the built-in database. It always exists and can never
	// be deleted or renamed.
	DefaultName = "default"
)

// Type says what a database may hold.
type Type string

const (
	TypeBoth      Type = "both"
	TypeCharacter Type = "character"
	TypeCoA       Type = "coa"
)

// Valid reports whether t is a known database type.
func (t Type) Valid() bool {
	return t == TypeBoth || t == TypeCharacter || t == TypeCoA
}

// HasCharacters reports whether databases of this type hold character data.
func (t Type) HasCharacters() bool { return t == TypeBoth || t == TypeCharacter }

// HasCoats reports whether databases of this type hold coat-of-arms data.
func (t Type) HasCoats() bool { return t == TypeBoth || t == TypeCoA }

var nameRe = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// Info is one registry entry.
type Info struct {
	Name    string    `json:"name"`
	Type    Type      `json:"type"`
	Created time.Time `json:"created"`
}

// Registry is the content of registry.json.
type Registry struct {
	Databases          map[string]Info `json:"databases"`
	CurrentCharacterDB string          `json:"current_character_db"`
	CurrentCoADB       string          `json:"current_coa_db"`
}

// Sorted returns the registry entries ordered by name.
func (r *Registry) Sorted() []Info {
	infos := make([]Info, 0, len(r.Databases))
	for _, info := range r.Databases {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Dir returns a database's directory.
func Dir(databasesDir, name string) string {
	return filepath.Join(databasesDir, dirPrefix+name)
}

// CharacterDataDir returns a database's character data directory.
func CharacterDataDir(databasesDir, name string) string {
	return filepath.Join(Dir(databasesDir, name), "character_data")
}

// CoaDataDir returns a database's coat-of-arms data directory.
func CoaDataDir(databasesDir, name string) string {
	return filepath.Join(Dir(databasesDir, name), "coa_data")
}

func registryFile(databasesDir string) string {
	return filepath.Join(databasesDir, registryFileName)
}

// Load reads the registry as it is on disk.
func Load(databasesDir string) (*Registry, error) {
	data, err := os.ReadFile(registryFile(databasesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &reg, nil
}

func save(databasesDir string, reg *Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.WriteFile(registryFile(databasesDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// Ensure loads the registry, creating it when missing, and normalizes it:
// the default database always exists, and active pointers that are empty or
// refer to unregistered databases fall back to default. The normalized form
// is written back only when something changed.
func Ensure(databasesDir string) (*Registry, error) {
	if err := os.MkdirAll(databasesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create databases directory: %w", err)
	}

	reg := &Registry{}
	if data, err := os.ReadFile(registryFile(databasesDir)); err == nil {
		if err := json.Unmarshal(data, reg); err != nil {
			return nil, fmt.Errorf("failed to parse registry: %w", err)
		}
	}

	changed := false
	if reg.Databases == nil {
		reg.Databases = make(map[string]Info)
		changed = true
	}
	if _, ok := reg.Databases[DefaultName]; !ok {
		reg.Databases[DefaultName] = Info{Name: DefaultName, Type: TypeBoth, Created: time.Now().UTC()}
		if err := os.MkdirAll(CharacterDataDir(databasesDir, DefaultName), 0755); err != nil {
			return nil, fmt.Errorf("failed to create default database: %w", err)
		}
		if err := os.MkdirAll(CoaDataDir(databasesDir, DefaultName), 0755); err != nil {
			return nil, fmt.Errorf("failed to create default database: %w", err)
		}
		changed = true
	}
	if _, ok := reg.Databases[reg.CurrentCharacterDB]; !ok {
		reg.CurrentCharacterDB = DefaultName
		changed = true
	}
	if _, ok := reg.Databases[reg.CurrentCoADB]; !ok {
		reg.CurrentCoADB = DefaultName
		changed = true
	}

	if changed {
		if err := save(databasesDir, reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Create registers a new database and creates its directory structure.
func Create(databasesDir, name string, typ Type) error {
	name = strings.TrimSpace(name)
	if !nameRe.MatchString(name) {
		return fmt.Errorf("database name may only contain letters, digits, spaces, hyphens and underscores")
	}
	if typ == "" {
		typ = TypeBoth
	}
	if !typ.Valid() {
		return fmt.Errorf("database type must be both, character or coa")
	}

	reg, err := Ensure(databasesDir)
	if err != nil {
		return err
	}
	for existing := range reg.Databases {
		if strings.EqualFold(existing, name) {
			return fmt.Errorf("database already exists: %s", existing)
		}
	}

	if typ.HasCharacters() {
		if err := os.MkdirAll(CharacterDataDir(databasesDir, name), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if typ.HasCoats() {
		if err := os.MkdirAll(CoaDataDir(databasesDir, name), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	reg.Databases[name] = Info{Name: name, Type: typ, Created: time.Now().UTC()}
	return save(databasesDir, reg)
}

// Delete unregisters a database and removes its directory tree. The default
// database cannot be deleted; active pointers fall back to it.
func Delete(databasesDir, name string) error {
	if name == DefaultName {
		return fmt.Errorf("the default database cannot be deleted")
	}
	reg, err := Ensure(databasesDir)
	if err != nil {
		return err
	}
	if _, ok := reg.Databases[name]; !ok {
		return fmt.Errorf("database not found: %s", name)
	}

	delete(reg.Databases, name)
	if reg.CurrentCharacterDB == name {
		reg.CurrentCharacterDB = DefaultName
	}
	if reg.CurrentCoADB == name {
		reg.CurrentCoADB = DefaultName
	}
	if err := save(databasesDir, reg); err != nil {
		return err
	}

	if err := os.RemoveAll(Dir(databasesDir, name)); err != nil {
		return fmt.Errorf("failed to remove database directory: %w", err)
	}
	return nil
}

// Rename changes a database's registry name and moves its directory. The
// default database cannot be renamed; active pointers follow.
func Rename(databasesDir, oldName, newName string) error {
	if oldName == DefaultName {
		return fmt.Errorf("the default database cannot be renamed")
	}
	newName = strings.TrimSpace(newName)
	if !nameRe.MatchString(newName) {
		return fmt.Errorf("database name may only contain letters, digits, spaces, hyphens and underscores")
	}

	reg, err := Ensure(databasesDir)
	if err != nil {
		return err
	}
	info, ok := reg.Databases[oldName]
	if !ok {
		return fmt.Errorf("database not found: %s", oldName)
	}
	for existing := range reg.Databases {
		if existing != oldName && strings.EqualFold(existing, newName) {
			return fmt.Errorf("database already exists: %s", existing)
		}
	}

	if err := os.Rename(Dir(databasesDir, oldName), Dir(databasesDir, newName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to move database directory: %w", err)
	}

	delete(reg.Databases, oldName)
	info.Name = newName
	reg.Databases[newName] = info
	if reg.CurrentCharacterDB == oldName {
		reg.CurrentCharacterDB = newName
	}
	if reg.CurrentCoADB == oldName {
		reg.CurrentCoADB = newName
	}
	return save(databasesDir, reg)
}

// Use sets the active database for a target: "character", "coa" or "both".
// The database's type must support the target.
func Use(databasesDir, name, target string) error {
	reg, err := Ensure(databasesDir)
	if err != nil {
		return err
	}
	info, ok := reg.Databases[name]
	if !ok {
		return fmt.Errorf("database not found: %s", name)
	}

	switch target {
	case "character":
		if !info.Type.HasCharacters() {
			return fmt.Errorf("database %s is typed %q and cannot be the character database", name, info.Type)
		}
		reg.CurrentCharacterDB = name
	case "coa":
		if !info.Type.HasCoats() {
			return fmt.Errorf("database %s is typed %q and cannot be the coat-of-arms database", name, info.Type)
		}
		reg.CurrentCoADB = name
	case "both", "":
		if info.Type != TypeBoth {
			return fmt.Errorf("database %s is typed %q; pick a target with --for character or --for coa", name, info.Type)
		}
		reg.CurrentCharacterDB = name
		reg.CurrentCoADB = name
	default:
		return fmt.Errorf("target must be character, coa or both")
	}
	return save(databasesDir, reg)
}

// MoveItem moves a character or coat-of-arms record, with its image, from
// one database to another.
func MoveItem(databasesDir, fromDB, toDB, itemType, ref string) error {
	if fromDB == toDB {
		return fmt.Errorf("source and destination databases are the same")
	}
	reg, err := Ensure(databasesDir)
	if err != nil {
		return err
	}
	from, ok := reg.Databases[fromDB]
	if !ok {
		return fmt.Errorf("database not found: %s", fromDB)
	}
	to, ok := reg.Databases[toDB]
	if !ok {
		return fmt.Errorf("database not found: %s", toDB)
	}

	switch itemType {
	case "character":
		if !from.Type.HasCharacters() || !to.Type.HasCharacters() {
			return fmt.Errorf("both databases must hold character data")
		}
		_, err := gallery.Transfer(CharacterDataDir(databasesDir, fromDB), CharacterDataDir(databasesDir, toDB), ref)
		return err
	case "coa":
		if !from.Type.HasCoats() || !to.Type.HasCoats() {
			return fmt.Errorf("both databases must hold coat-of-arms data")
		}
		_, err := coa.Transfer(CoaDataDir(databasesDir, fromDB), CoaDataDir(databasesDir, toDB), ref)
		return err
	default:
		return fmt.Errorf("item type must be character or coa")
	}
}
