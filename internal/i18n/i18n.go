// Package i18n resolves user-facing strings against a built-in English
// catalog plus any locale files dropped into the vault's locales directory.
//
// Locale files are flat JSON maps named <code>.json. Three metadata keys
// describe the language itself (language, language_code, language_native);
// every other key is a translation. Files missing the metadata are skipped.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Vars carries values for {placeholder} interpolation.
type Vars = map[string]string

// Language describes one available locale.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// Catalog holds every loaded locale and the active selection.
type Catalog struct {
	current   string
	tables    map[string]map[string]string
	languages []Language
}

const defaultLang = "en"

// Builtin returns a catalog holding only the compiled-in English strings.
func Builtin() *Catalog {
	return &Catalog{
		current: defaultLang,
		tables:  map[string]map[string]string{defaultLang: builtinEnglish()},
		languages: []Language{
			{Code: defaultLang, Name: "English", Native: "English"},
		},
	}
}

// Load builds a catalog from the built-in English strings plus every
// locale file under localesDir. A missing directory is not an error; the
// built-in catalog alone is enough to run.
func Load(localesDir string) (*Catalog, error) {
	c := Builtin()

	entries, err := os.ReadDir(localesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read locales directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		code := strings.TrimSuffix(entry.Name(), ".json")
		// A file that cannot be read or parsed is skipped rather than
		// taking the whole catalog down with it.
		c.loadLocale(code, filepath.Join(localesDir, entry.Name()))
	}

	sort.Slice(c.languages, func(i, j int) bool {
		return c.languages[i].Name < c.languages[j].Name
	})
	return c, nil
}

func (c *Catalog) loadLocale(code, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Tolerate a UTF-8 BOM left behind by Windows editors.
	data = []byte(strings.TrimPrefix(string(data), "\uFEFF"))

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	// Files without language metadata are not locale files.
	name, hasName := raw["language"]
	if _, hasCode := raw["language_code"]; !hasName || !hasCode {
		return nil
	}
	native := raw["language_native"]
	if native == "" {
		native = name
	}

	table := c.tables[code]
	if table == nil {
		table = make(map[string]string, len(raw))
		c.tables[code] = table
		c.languages = append(c.languages, Language{Code: code, Name: name, Native: native})
	}
	for k, v := range raw {
		switch k {
		case "language", "language_code", "language_native":
			continue
		}
		table[k] = v
	}
	return nil
}

// SetLanguage switches the active locale.
func (c *Catalog) SetLanguage(code string) error {
	if _, ok := c.tables[code]; !ok {
		return fmt.Errorf("language %q is not available", code)
	}
	c.current = code
	return nil
}

// Current returns the active locale code.
func (c *Catalog) Current() string {
	return c.current
}

// Languages lists every loaded locale, sorted by English name.
func (c *Catalog) Languages() []Language {
	out := make([]Language, len(c.languages))
	copy(out, c.languages)
	return out
}

// T resolves key in the active locale, falling back to English and
// finally to the key itself. An empty translation counts as missing.
// Placeholders written as {name} are replaced from vars; placeholders
// without a value stay literal.
func (c *Catalog) T(key string, vars ...Vars) string {
	s := c.tables[c.current][key]
	if s == "" && c.current != defaultLang {
		s = c.tables[defaultLang][key]
	}
	if s == "" {
		s = key
	}
	if len(vars) == 0 {
		return s
	}
	return interpolate(s, vars[0])
}

func interpolate(s string, vars Vars) string {
	if len(vars) == 0 || !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
