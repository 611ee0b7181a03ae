// Package coa manages named coat-of-arms collections inside a database.
// Collections live in a single coats_of_arms.json list; preview images live
// next to it under images/, one <id>.png per coat.
package coa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morrowstudios/herald/internal/portrait"
	"github.com/morrowstudios/herald/internal/tags"
)

const (
	dataFileName  = "coats_of_arms.json"
	imagesDirName = "images"
	defaultName   = "Default"
)

// CoA is one saved coat of arms. Code holds the CK3 coat-of-arms script
// block; HasImage tracks whether images/<id>.png exists.
type CoA struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Tags     []string  `json:"tags"`
	HasImage bool      `json:"has_image"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Collection is a named list of coats of arms.
type Collection struct {
	Name     string    `json:"name"`
	Coats    []CoA     `json:"coats_of_arms"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

var nameRe = regexp.MustCompile(`coa_rd_(\w+)_(\d+)`)

// ParseName derives a display name from a coat-of-arms code. Ruler designer
// exports carry identifiers like coa_rd_dynasty_123; anything else is
// unnamed.
func ParseName(code string) string {
	m := nameRe.FindStringSubmatch(code)
	if m == nil {
		return "Unnamed CoA"
	}
	words := strings.Split(m[1], "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + " #" + m[2]
}

// ImagesDir returns the preview directory for a coa data dir.
func ImagesDir(dataDir string) string {
	return filepath.Join(dataDir, imagesDirName)
}

// ImagePath returns the preview path for a coat id. The file may not exist;
// check HasImage first.
func ImagePath(dataDir, id string) string {
	return filepath.Join(ImagesDir(dataDir), id+".png")
}

func dataFile(dataDir string) string {
	return filepath.Join(dataDir, dataFileName)
}

func seed() []Collection {
	now := time.Now().UTC()
	return []Collection{{Name: defaultName, Coats: []CoA{}, Created: now, Modified: now}}
}

// Load reads all collections from dataDir. A missing or unreadable file
// yields the default single empty collection rather than an error.
func Load(dataDir string) []Collection {
	data, err := os.ReadFile(dataFile(dataDir))
	if err != nil {
		return seed()
	}
	data = []byte(strings.TrimPrefix(string(data), "\uFEFF"))

	var cs []Collection
	if err := json.Unmarshal(data, &cs); err != nil || len(cs) == 0 {
		return seed()
	}
	return cs
}

// Save writes all collections to dataDir, creating it as needed.
func Save(dataDir string, cs []Collection) error {
	if err := os.MkdirAll(ImagesDir(dataDir), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collections: %w", err)
	}
	if err := os.WriteFile(dataFile(dataDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dataFileName, err)
	}
	return nil
}

// Names returns the collection names in file order.
func Names(dataDir string) []string {
	cs := Load(dataDir)
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

// Get returns a collection by exact name.
func Get(dataDir, name string) (*Collection, error) {
	cs := Load(dataDir)
	for i := range cs {
		if cs[i].Name == name {
			return &cs[i], nil
		}
	}
	return nil, fmt.Errorf("collection not found: %s", name)
}

// Create adds a new empty collection.
func Create(dataDir, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	cs := Load(dataDir)
	for _, c := range cs {
		if c.Name == name {
			return fmt.Errorf("collection already exists: %s", name)
		}
	}
	now := time.Now().UTC()
	cs = append(cs, Collection{Name: name, Coats: []CoA{}, Created: now, Modified: now})
	return Save(dataDir, cs)
}

// Rename changes a collection's name.
func Rename(dataDir, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	cs := Load(dataDir)
	for _, c := range cs {
		if c.Name == newName {
			return fmt.Errorf("collection already exists: %s", newName)
		}
	}
	for i := range cs {
		if cs[i].Name == oldName {
			cs[i].Name = newName
			cs[i].Modified = time.Now().UTC()
			return Save(dataDir, cs)
		}
	}
	return fmt.Errorf("collection not found: %s", oldName)
}

// Delete removes a collection and its coats' preview files. The last
// remaining collection cannot be deleted.
func Delete(dataDir, name string) error {
	cs := Load(dataDir)
	if len(cs) <= 1 {
		return fmt.Errorf("cannot delete the last collection")
	}
	for i := range cs {
		if cs[i].Name != name {
			continue
		}
		for _, c := range cs[i].Coats {
			if c.HasImage {
				os.Remove(ImagePath(dataDir, c.ID))
			}
		}
		cs = append(cs[:i], cs[i+1:]...)
		return Save(dataDir, cs)
	}
	return fmt.Errorf("collection not found: %s", name)
}

// Add appends a coat of arms to the named collection. Code is required; an
// empty name is derived from the code. An image, when given, is converted to
// images/<id>.png.
func Add(dataDir, collectionName, name, code string, tagList []string, imagePath string) (*CoA, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("coat of arms code must not be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = ParseName(code)
	}

	cs := Load(dataDir)
	ci := collectionIndex(cs, collectionName)
	if ci < 0 {
		return nil, fmt.Errorf("collection not found: %s", collectionName)
	}

	now := time.Now().UTC()
	c := CoA{
		ID:       uuid.NewString(),
		Name:     name,
		Code:     code,
		Tags:     tags.Dedupe(tagList),
		Created:  now,
		Modified: now,
	}

	if imagePath != "" {
		if err := os.MkdirAll(ImagesDir(dataDir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create images directory: %w", err)
		}
		if err := portrait.Convert(imagePath, ImagePath(dataDir, c.ID)); err != nil {
			return nil, fmt.Errorf("failed to save coat of arms image: %w", err)
		}
		c.HasImage = true
	}

	cs[ci].Coats = append(cs[ci].Coats, c)
	cs[ci].Modified = now
	if err := Save(dataDir, cs); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update describes the coat fields to change. Nil pointers leave the field
// alone.
type Update struct {
	Name *string
	Code *string
	Tags *[]string
}

// UpdateCoA applies an update to a coat in the named collection.
func UpdateCoA(dataDir, collectionName, id string, u Update) error {
	cs := Load(dataDir)
	ci := collectionIndex(cs, collectionName)
	if ci < 0 {
		return fmt.Errorf("collection not found: %s", collectionName)
	}

	for i := range cs[ci].Coats {
		c := &cs[ci].Coats[i]
		if c.ID != id {
			continue
		}

		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.Code != nil {
			c.Code = *u.Code
		}
		if u.Tags != nil {
			c.Tags = tags.Dedupe(*u.Tags)
		}

		now := time.Now().UTC()
		c.Modified = now
		cs[ci].Modified = now
		return Save(dataDir, cs)
	}
	return fmt.Errorf("coat of arms not found: %s", id)
}

// SetImage converts a new preview for the coat, replacing any old one.
func SetImage(dataDir, collectionName, id, imagePath string) error {
	cs := Load(dataDir)
	ci := collectionIndex(cs, collectionName)
	if ci < 0 {
		return fmt.Errorf("collection not found: %s", collectionName)
	}

	for i := range cs[ci].Coats {
		c := &cs[ci].Coats[i]
		if c.ID != id {
			continue
		}

		if err := os.MkdirAll(ImagesDir(dataDir), 0755); err != nil {
			return fmt.Errorf("failed to create images directory: %w", err)
		}
		if err := portrait.Convert(imagePath, ImagePath(dataDir, id)); err != nil {
			return fmt.Errorf("failed to save coat of arms image: %w", err)
		}
		c.HasImage = true

		now := time.Now().UTC()
		c.Modified = now
		cs[ci].Modified = now
		return Save(dataDir, cs)
	}
	return fmt.Errorf("coat of arms not found: %s", id)
}

// Remove deletes a coat of arms and its preview file.
func Remove(dataDir, collectionName, id string) error {
	cs := Load(dataDir)
	ci := collectionIndex(cs, collectionName)
	if ci < 0 {
		return fmt.Errorf("collection not found: %s", collectionName)
	}

	for i := range cs[ci].Coats {
		c := cs[ci].Coats[i]
		if c.ID != id {
			continue
		}
		if c.HasImage {
			os.Remove(ImagePath(dataDir, id))
		}
		cs[ci].Coats = append(cs[ci].Coats[:i], cs[ci].Coats[i+1:]...)
		cs[ci].Modified = time.Now().UTC()
		return Save(dataDir, cs)
	}
	return fmt.Errorf("coat of arms not found: %s", id)
}

// GetCoA returns a coat by id within one collection.
func GetCoA(dataDir, collectionName, id string) (*CoA, error) {
	c, err := Get(dataDir, collectionName)
	if err != nil {
		return nil, err
	}
	for i := range c.Coats {
		if c.Coats[i].ID == id {
			return &c.Coats[i], nil
		}
	}
	return nil, fmt.Errorf("coat of arms not found: %s", id)
}

// Find locates a coat across all collections by id, or by name when the
// name is unambiguous.
func Find(dataDir, ref string) (string, *CoA, error) {
	cs := Load(dataDir)

	for ci := range cs {
		for i := range cs[ci].Coats {
			if cs[ci].Coats[i].ID == ref {
				return cs[ci].Name, &cs[ci].Coats[i], nil
			}
		}
	}

	var foundCollection string
	var found *CoA
	matches := 0
	for ci := range cs {
		for i := range cs[ci].Coats {
			if strings.EqualFold(cs[ci].Coats[i].Name, ref) {
				foundCollection = cs[ci].Name
				found = &cs[ci].Coats[i]
				matches++
			}
		}
	}
	switch matches {
	case 0:
		return "", nil, fmt.Errorf("coat of arms not found: %s", ref)
	case 1:
		return foundCollection, found, nil
	default:
		return "", nil, fmt.Errorf("coat of arms name %q is ambiguous (%d matches); use the id", ref, matches)
	}
}

// Move moves a coat between collections in the same database. The preview
// file stays in place; it is keyed by id, not collection.
func Move(dataDir, fromCollection, toCollection, id string) error {
	if fromCollection == toCollection {
		return fmt.Errorf("source and destination collections are the same")
	}
	cs := Load(dataDir)
	from := collectionIndex(cs, fromCollection)
	if from < 0 {
		return fmt.Errorf("collection not found: %s", fromCollection)
	}
	to := collectionIndex(cs, toCollection)
	if to < 0 {
		return fmt.Errorf("collection not found: %s", toCollection)
	}

	for i := range cs[from].Coats {
		if cs[from].Coats[i].ID != id {
			continue
		}
		c := cs[from].Coats[i]
		cs[from].Coats = append(cs[from].Coats[:i], cs[from].Coats[i+1:]...)
		cs[to].Coats = append(cs[to].Coats, c)

		now := time.Now().UTC()
		cs[from].Modified = now
		cs[to].Modified = now
		return Save(dataDir, cs)
	}
	return fmt.Errorf("coat of arms not found: %s", id)
}

// Transfer moves a coat, found by id or unique name, from one database's
// data dir to another. The coat lands in a collection of the same name in
// the destination, created when missing, and its preview file moves with it.
// The destination is written before the source so a failure part way can
// duplicate the record but never lose it.
func Transfer(fromDataDir, toDataDir, ref string) (*CoA, error) {
	fromCollection, found, err := Find(fromDataDir, ref)
	if err != nil {
		return nil, err
	}
	c := *found

	dest := Load(toDataDir)
	for ci := range dest {
		for i := range dest[ci].Coats {
			if dest[ci].Coats[i].ID == c.ID {
				return nil, fmt.Errorf("coat of arms %s already exists in the destination database", c.ID)
			}
		}
	}

	movedImage := false
	if c.HasImage {
		if err := os.MkdirAll(ImagesDir(toDataDir), 0755); err == nil {
			if err := portrait.Copy(ImagePath(fromDataDir, c.ID), ImagePath(toDataDir, c.ID)); err == nil {
				movedImage = true
			}
		}
		if !movedImage {
			c.HasImage = false
		}
	}

	now := time.Now().UTC()
	di := collectionIndex(dest, fromCollection)
	if di < 0 {
		dest = append(dest, Collection{Name: fromCollection, Coats: []CoA{}, Created: now, Modified: now})
		di = len(dest) - 1
	}
	c.Modified = now
	dest[di].Coats = append(dest[di].Coats, c)
	dest[di].Modified = now
	if err := Save(toDataDir, dest); err != nil {
		return nil, err
	}

	src := Load(fromDataDir)
	si := collectionIndex(src, fromCollection)
	if si >= 0 {
		for i := range src[si].Coats {
			if src[si].Coats[i].ID == c.ID {
				src[si].Coats = append(src[si].Coats[:i], src[si].Coats[i+1:]...)
				break
			}
		}
		src[si].Modified = now
		if err := Save(fromDataDir, src); err != nil {
			return nil, err
		}
	}

	if movedImage {
		os.Remove(ImagePath(fromDataDir, c.ID))
	}
	return &c, nil
}

// Tags returns every tag used in a collection, deduplicated and sorted.
func Tags(dataDir, collectionName string) ([]string, error) {
	c, err := Get(dataDir, collectionName)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, coat := range c.Coats {
		all = append(all, coat.Tags...)
	}
	out := tags.Dedupe(all)
	sort.Strings(out)
	return out, nil
}

func collectionIndex(cs []Collection, name string) int {
	for i := range cs {
		if cs[i].Name == name {
			return i
		}
	}
	return -1
}
