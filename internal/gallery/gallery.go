// Package gallery manages named character galleries inside a database.
// Galleries live in a single characters.json list; portraits live next to
// it under images/.
package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morrowstudios/herald/internal/portrait"
	"github.com/morrowstudios/herald/internal/tags"
)

const (
	dataFileName  = "characters.json"
	imagesDirName = "images"
	defaultName   = "Default"
)

// Character is one saved character. Image is a portrait filename under the
// database's images directory, empty when the character has no portrait.
type Character struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	DNA      string    `json:"dna"`
	Tags     []string  `json:"tags"`
	Image    string    `json:"image,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Gallery is a named list of characters.
type Gallery struct {
	Name       string      `json:"name"`
	Characters []Character `json:"characters"`
	Created    time.Time   `json:"created"`
	Modified   time.Time   `json:"modified"`
}

// ImagesDir returns the portrait directory for a character data dir.
func ImagesDir(dataDir string) string {
	return filepath.Join(dataDir, imagesDirName)
}

// ImagePath resolves a character's portrait path, or "" when it has none.
func ImagePath(dataDir string, c Character) string {
	if c.Image == "" {
		return ""
	}
	return filepath.Join(ImagesDir(dataDir), c.Image)
}

func dataFile(dataDir string) string {
	return filepath.Join(dataDir, dataFileName)
}

func seed() []Gallery {
	now := time.Now().UTC()
	return []Gallery{{Name: defaultName, Characters: []Character{}, Created: now, Modified: now}}
}

// Load reads all galleries from dataDir. A missing or unreadable file yields
// the default single empty gallery rather than an error; user data is never
// a reason to refuse to start.
func Load(dataDir string) []Gallery {
	data, err := os.ReadFile(dataFile(dataDir))
	if err != nil {
		return seed()
	}
	// Tolerate a UTF-8 BOM left behind by Windows editors.
	data = []byte(strings.TrimPrefix(string(data), "\uFEFF"))

	var gs []Gallery
	if err := json.Unmarshal(data, &gs); err != nil || len(gs) == 0 {
		return seed()
	}
	return gs
}

// Save writes all galleries to dataDir, creating it as needed.
func Save(dataDir string, gs []Gallery) error {
	if err := os.MkdirAll(ImagesDir(dataDir), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal galleries: %w", err)
	}
	if err := os.WriteFile(dataFile(dataDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dataFileName, err)
	}
	return nil
}

// Names returns the gallery names in file order.
func Names(dataDir string) []string {
	gs := Load(dataDir)
	names := make([]string, len(gs))
	for i, g := range gs {
		names[i] = g.Name
	}
	return names
}

// Get returns a gallery by exact name.
func Get(dataDir, name string) (*Gallery, error) {
	gs := Load(dataDir)
	for i := range gs {
		if gs[i].Name == name {
			return &gs[i], nil
		}
	}
	return nil, fmt.Errorf("gallery not found: %s", name)
}

// Create adds a new empty gallery.
func Create(dataDir, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("gallery name must not be empty")
	}
	gs := Load(dataDir)
	for _, g := range gs {
		if g.Name == name {
			return fmt.Errorf("gallery already exists: %s", name)
		}
	}
	now := time.Now().UTC()
	gs = append(gs, Gallery{Name: name, Characters: []Character{}, Created: now, Modified: now})
	return Save(dataDir, gs)
}

// Rename changes a gallery's name.
func Rename(dataDir, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("gallery name must not be empty")
	}
	gs := Load(dataDir)
	for _, g := range gs {
		if g.Name == newName {
			return fmt.Errorf("gallery already exists: %s", newName)
		}
	}
	for i := range gs {
		if gs[i].Name == oldName {
			gs[i].Name = newName
			gs[i].Modified = time.Now().UTC()
			return Save(dataDir, gs)
		}
	}
	return fmt.Errorf("gallery not found: %s", oldName)
}

// Delete removes a gallery and its characters' portrait files. The last
// remaining gallery cannot be deleted.
func Delete(dataDir, name string) error {
	gs := Load(dataDir)
	if len(gs) <= 1 {
		return fmt.Errorf("cannot delete the last gallery")
	}
	for i := range gs {
		if gs[i].Name != name {
			continue
		}
		for _, c := range gs[i].Characters {
			if c.Image != "" {
				portrait.Remove(ImagesDir(dataDir), c.Image)
			}
		}
		gs = append(gs[:i], gs[i+1:]...)
		return Save(dataDir, gs)
	}
	return fmt.Errorf("gallery not found: %s", name)
}

// CharacterOption customizes a character being added.
type CharacterOption func(*newCharacter)

type newCharacter struct {
	dna          string
	tags         []string
	portraitPath string
	cropPortrait bool
}

// WithDNA sets the character's DNA text.
func WithDNA(dna string) CharacterOption {
	return func(n *newCharacter) { n.dna = dna }
}

// WithTags sets the character's tags.
func WithTags(t []string) CharacterOption {
	return func(n *newCharacter) { n.tags = t }
}

// WithPortrait copies the image at path into the gallery's images dir.
func WithPortrait(path string, crop bool) CharacterOption {
	return func(n *newCharacter) {
		n.portraitPath = path
		n.cropPortrait = crop
	}
}

// AddCharacter appends a character to the named gallery and returns it.
func AddCharacter(dataDir, galleryName, name string, opts ...CharacterOption) (*Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("character name must not be empty")
	}

	var n newCharacter
	for _, opt := range opts {
		opt(&n)
	}

	gs := Load(dataDir)
	gi := galleryIndex(gs, galleryName)
	if gi < 0 {
		return nil, fmt.Errorf("gallery not found: %s", galleryName)
	}

	now := time.Now().UTC()
	c := Character{
		ID:       uuid.NewString(),
		Name:     name,
		DNA:      n.dna,
		Tags:     tags.Dedupe(n.tags),
		Created:  now,
		Modified: now,
	}

	if n.portraitPath != "" {
		filename, err := portrait.Attach(ImagesDir(dataDir), portrait.SanitizeName(name), n.portraitPath, n.cropPortrait)
		if err != nil {
			return nil, fmt.Errorf("failed to attach portrait: %w", err)
		}
		c.Image = filename
	}

	gs[gi].Characters = append(gs[gi].Characters, c)
	gs[gi].Modified = now
	if err := Save(dataDir, gs); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update describes the character fields to change. Nil pointers leave the
// field alone.
type Update struct {
	Name *string
	DNA  *string
	Tags *[]string
}

// UpdateCharacter applies an update to a character in the named gallery.
// Renaming a character renames its portrait file to match.
func UpdateCharacter(dataDir, galleryName, id string, u Update) error {
	gs := Load(dataDir)
	gi := galleryIndex(gs, galleryName)
	if gi < 0 {
		return fmt.Errorf("gallery not found: %s", galleryName)
	}

	for ci := range gs[gi].Characters {
		c := &gs[gi].Characters[ci]
		if c.ID != id {
			continue
		}

		if u.Name != nil && *u.Name != c.Name && c.Image != "" {
			if renamed, err := portrait.Rename(ImagesDir(dataDir), c.Image, portrait.SanitizeName(*u.Name)); err == nil {
				c.Image = renamed
			}
			// A failed rename keeps the old file; the record stays consistent.
		}
		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.DNA != nil {
			c.DNA = *u.DNA
		}
		if u.Tags != nil {
			c.Tags = tags.Dedupe(*u.Tags)
		}

		now := time.Now().UTC()
		c.Modified = now
		gs[gi].Modified = now
		return Save(dataDir, gs)
	}
	return fmt.Errorf("character not found: %s", id)
}

// SetPortrait copies a new portrait for the character, replacing any old one.
func SetPortrait(dataDir, galleryName, id, imagePath string, crop bool) error {
	gs := Load(dataDir)
	gi := galleryIndex(gs, galleryName)
	if gi < 0 {
		return fmt.Errorf("gallery not found: %s", galleryName)
	}

	for ci := range gs[gi].Characters {
		c := &gs[gi].Characters[ci]
		if c.ID != id {
			continue
		}

		if c.Image != "" {
			portrait.Remove(ImagesDir(dataDir), c.Image)
		}
		filename, err := portrait.Attach(ImagesDir(dataDir), portrait.SanitizeName(c.Name), imagePath, crop)
		if err != nil {
			return fmt.Errorf("failed to attach portrait: %w", err)
		}
		c.Image = filename

		now := time.Now().UTC()
		c.Modified = now
		gs[gi].Modified = now
		return Save(dataDir, gs)
	}
	return fmt.Errorf("character not found: %s", id)
}

// RemoveCharacter deletes a character and its portrait file.
func RemoveCharacter(dataDir, galleryName, id string) error {
	gs := Load(dataDir)
	gi := galleryIndex(gs, galleryName)
	if gi < 0 {
		return fmt.Errorf("gallery not found: %s", galleryName)
	}

	for ci := range gs[gi].Characters {
		c := gs[gi].Characters[ci]
		if c.ID != id {
			continue
		}
		if c.Image != "" {
			portrait.Remove(ImagesDir(dataDir), c.Image)
		}
		gs[gi].Characters = append(gs[gi].Characters[:ci], gs[gi].Characters[ci+1:]...)
		gs[gi].Modified = time.Now().UTC()
		return Save(dataDir, gs)
	}
	return fmt.Errorf("character not found: %s", id)
}

// GetCharacter returns a character by id within one gallery.
func GetCharacter(dataDir, galleryName, id string) (*Character, error) {
	g, err := Get(dataDir, galleryName)
	if err != nil {
		return nil, err
	}
	for i := range g.Characters {
		if g.Characters[i].ID == id {
			return &g.Characters[i], nil
		}
	}
	return nil, fmt.Errorf("character not found: %s", id)
}

// FindCharacter locates a character across all galleries by id, or by name
// when the name is unambiguous.
func FindCharacter(dataDir, ref string) (string, *Character, error) {
	gs := Load(dataDir)

	for gi := range gs {
		for ci := range gs[gi].Characters {
			if gs[gi].Characters[ci].ID == ref {
				return gs[gi].Name, &gs[gi].Characters[ci], nil
			}
		}
	}

	var foundGallery string
	var found *Character
	matches := 0
	for gi := range gs {
		for ci := range gs[gi].Characters {
			if strings.EqualFold(gs[gi].Characters[ci].Name, ref) {
				foundGallery = gs[gi].Name
				found = &gs[gi].Characters[ci]
				matches++
			}
		}
	}
	switch matches {
	case 0:
		return "", nil, fmt.Errorf("character not found: %s", ref)
	case 1:
		return foundGallery, found, nil
	default:
		return "", nil, fmt.Errorf("character name %q is ambiguous (%d matches); use the id", ref, matches)
	}
}

// MoveCharacter moves a character between galleries in the same database.
func MoveCharacter(dataDir, fromGallery, toGallery, id string) error {
	if fromGallery == toGallery {
		return fmt.Errorf("source and destination galleries are the same")
	}
	gs := Load(dataDir)
	from := galleryIndex(gs, fromGallery)
	if from < 0 {
		return fmt.Errorf("gallery not found: %s", fromGallery)
	}
	to := galleryIndex(gs, toGallery)
	if to < 0 {
		return fmt.Errorf("gallery not found: %s", toGallery)
	}

	for ci := range gs[from].Characters {
		if gs[from].Characters[ci].ID != id {
			continue
		}
		c := gs[from].Characters[ci]
		gs[from].Characters = append(gs[from].Characters[:ci], gs[from].Characters[ci+1:]...)
		gs[to].Characters = append(gs[to].Characters, c)

		now := time.Now().UTC()
		gs[from].Modified = now
		gs[to].Modified = now
		return Save(dataDir, gs)
	}
	return fmt.Errorf("character not found: %s", id)
}

// Transfer moves a character, found by id or unique name, from one
// database's data dir to another. The character lands in a gallery of the
// same name in the destination, created when missing, and the portrait file
// moves with it. The destination is written before the source so a failure
// part way can duplicate the record but never lose it.
func Transfer(fromDataDir, toDataDir, ref string) (*Character, error) {
	fromGallery, found, err := FindCharacter(fromDataDir, ref)
	if err != nil {
		return nil, err
	}
	c := *found

	dest := Load(toDataDir)
	for gi := range dest {
		for ci := range dest[gi].Characters {
			if dest[gi].Characters[ci].ID == c.ID {
				return nil, fmt.Errorf("character %s already exists in the destination database", c.ID)
			}
		}
	}

	oldImagePath := ""
	if c.Image != "" {
		oldImagePath = filepath.Join(ImagesDir(fromDataDir), c.Image)
		base := strings.TrimSuffix(c.Image, filepath.Ext(c.Image))
		filename, err := portrait.Adopt(ImagesDir(toDataDir), base, oldImagePath)
		if err != nil {
			// The portrait file is gone or unreadable; move the record alone.
			c.Image = ""
			oldImagePath = ""
		} else {
			c.Image = filename
		}
	}

	now := time.Now().UTC()
	di := galleryIndex(dest, fromGallery)
	if di < 0 {
		dest = append(dest, Gallery{Name: fromGallery, Characters: []Character{}, Created: now, Modified: now})
		di = len(dest) - 1
	}
	c.Modified = now
	dest[di].Characters = append(dest[di].Characters, c)
	dest[di].Modified = now
	if err := Save(toDataDir, dest); err != nil {
		return nil, err
	}

	src := Load(fromDataDir)
	si := galleryIndex(src, fromGallery)
	if si >= 0 {
		for ci := range src[si].Characters {
			if src[si].Characters[ci].ID == c.ID {
				src[si].Characters = append(src[si].Characters[:ci], src[si].Characters[ci+1:]...)
				break
			}
		}
		src[si].Modified = now
		if err := Save(fromDataDir, src); err != nil {
			return nil, err
		}
	}

	if oldImagePath != "" {
		os.Remove(oldImagePath)
	}
	return &c, nil
}

// SortCharacters orders characters by the configured key and direction.
// Unknown keys fall back to name.
func SortCharacters(chars []Character, by, order string) {
	less := func(i, j int) bool {
		switch by {
		case "created":
			return chars[i].Created.Before(chars[j].Created)
		case "modified":
			return chars[i].Modified.Before(chars[j].Modified)
		default:
			return strings.ToLower(chars[i].Name) < strings.ToLower(chars[j].Name)
		}
	}
	if order == "descending" {
		sort.SliceStable(chars, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(chars, less)
}

// FilterCharacters returns the characters matching a name substring or tag
// query. An empty query matches everything.
func FilterCharacters(chars []Character, query string) []Character {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return chars
	}
	var out []Character
	for _, c := range chars {
		if strings.Contains(strings.ToLower(c.Name), q) || tags.Matches(c.Tags, q) {
			out = append(out, c)
		}
	}
	return out
}

func galleryIndex(gs []Gallery, name string) int {
	for i := range gs {
		if gs[i].Name == name {
			return i
		}
	}
	return -1
}
