package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/morrowstudios/herald/internal/portrait"
)

// Export writes a gallery to destDir/<gallery>/ as a characters.json plus an
// images/ directory with portraits named by character id.
func Export(dataDir, galleryName, destDir string) error {
	g, err := Get(dataDir, galleryName)
	if err != nil {
		return err
	}

	out := filepath.Join(destDir, galleryName)
	imagesOut := filepath.Join(out, imagesDirName)
	if err := os.MkdirAll(imagesOut, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(g.Characters, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal characters: %w", err)
	}
	if err := os.WriteFile(filepath.Join(out, dataFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dataFileName, err)
	}

	for _, c := range g.Characters {
		if c.Image == "" {
			continue
		}
		src := ImagePath(dataDir, c)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := portrait.Copy(src, filepath.Join(imagesOut, c.ID+".png")); err != nil {
			return fmt.Errorf("failed to export portrait for %s: %w", c.Name, err)
		}
	}
	return nil
}

// Import reads a directory produced by Export into a new gallery and returns
// the number of characters imported. Records keep their ids unless an id is
// missing or already present in this database.
func Import(dataDir, srcDir, galleryName string) (int, error) {
	data, err := os.ReadFile(filepath.Join(srcDir, dataFileName))
	if err != nil {
		return 0, fmt.Errorf("no %s in %s: %w", dataFileName, srcDir, err)
	}
	var chars []Character
	if err := json.Unmarshal(data, &chars); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", dataFileName, err)
	}

	gs := Load(dataDir)
	for _, g := range gs {
		if g.Name == galleryName {
			return 0, fmt.Errorf("gallery already exists: %s", galleryName)
		}
	}

	existing := make(map[string]bool)
	for _, g := range gs {
		for _, c := range g.Characters {
			existing[c.ID] = true
		}
	}

	now := time.Now().UTC()
	imported := Gallery{Name: galleryName, Characters: []Character{}, Created: now, Modified: now}

	for _, c := range chars {
		srcImage := filepath.Join(srcDir, imagesDirName, c.ID+".png")

		if c.ID == "" || existing[c.ID] {
			c.ID = uuid.NewString()
		}
		existing[c.ID] = true

		c.Image = ""
		if _, err := os.Stat(srcImage); err == nil {
			dest := filepath.Join(ImagesDir(dataDir), c.ID+".png")
			if err := os.MkdirAll(ImagesDir(dataDir), 0755); err == nil {
				if err := portrait.Copy(srcImage, dest); err == nil {
					c.Image = c.ID + ".png"
				}
			}
		}

		if c.Created.IsZero() {
			c.Created = now
		}
		c.Modified = now
		imported.Characters = append(imported.Characters, c)
	}

	gs = append(gs, imported)
	if err := Save(dataDir, gs); err != nil {
		return 0, err
	}
	return len(imported.Characters), nil
}
