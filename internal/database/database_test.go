package database

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/morrowstudios/herald/internal/coa"
	"github.com/morrowstudios/herald/internal/gallery"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{B: 220, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestEnsureFreshDir(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")

	reg, err := Ensure(databasesDir)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	info, ok := reg.Databases[DefaultName]
	if !ok {
		t.Fatal("default database not registered")
	}
	if info.Type != TypeBoth {
		t.Errorf("default type = %s, want both", info.Type)
	}
	if reg.CurrentCharacterDB != DefaultName || reg.CurrentCoADB != DefaultName {
		t.Errorf("pointers = (%s, %s), want default", reg.CurrentCharacterDB, reg.CurrentCoADB)
	}
	for _, dir := range []string{
		CharacterDataDir(databasesDir, DefaultName),
		CoaDataDir(databasesDir, DefaultName),
	} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(databasesDir, "registry.json")); err != nil {
		t.Error("registry.json not written")
	}
}

func TestEnsureNormalizesStalePointer(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	os.MkdirAll(databasesDir, 0755)
	os.WriteFile(filepath.Join(databasesDir, "registry.json"),
		[]byte(`{"databases":{"default":{"name":"default","type":"both"}},"current_character_db":"gone","current_coa_db":""}`), 0644)

	reg, err := Ensure(databasesDir)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if reg.CurrentCharacterDB != DefaultName || reg.CurrentCoADB != DefaultName {
		t.Errorf("stale pointers not reset: (%s, %s)", reg.CurrentCharacterDB, reg.CurrentCoADB)
	}
}

func TestEnsureBrokenRegistry(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	os.MkdirAll(databasesDir, 0755)
	os.WriteFile(filepath.Join(databasesDir, "registry.json"), []byte("{nope"), 0644)

	if _, err := Ensure(databasesDir); err == nil {
		t.Error("expected error for broken registry")
	}
}

func TestCreate(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")

	if err := Create(databasesDir, "Norse Saga", TypeBoth); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	reg, _ := Ensure(databasesDir)
	if _, ok := reg.Databases["Norse Saga"]; !ok {
		t.Error("database not registered")
	}
	if _, err := os.Stat(CharacterDataDir(databasesDir, "Norse Saga")); err != nil {
		t.Error("character_data not created")
	}
	if _, err := os.Stat(CoaDataDir(databasesDir, "Norse Saga")); err != nil {
		t.Error("coa_data not created")
	}
}

func TestCreateTypedDirs(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")

	if err := Create(databasesDir, "chars", TypeCharacter); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := os.Stat(CharacterDataDir(databasesDir, "chars")); err != nil {
		t.Error("character_data not created")
	}
	if _, err := os.Stat(CoaDataDir(databasesDir, "chars")); err == nil {
		t.Error("coa_data created for character-typed database")
	}
}

func TestCreateValidation(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")

	tests := []struct {
		name   string
		dbName string
		typ    Type
	}{
		{"empty", "", TypeBoth},
		{"slash", "a/b", TypeBoth},
		{"dots", "..", TypeBoth},
		{"bad type", "ok", Type("mixed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Create(databasesDir, tt.dbName, tt.typ); err == nil {
				t.Errorf("Create(%q, %q) should fail", tt.dbName, tt.typ)
			}
		})
	}

	if err := Create(databasesDir, "Norse", TypeBoth); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := Create(databasesDir, "norse", TypeBoth); err == nil {
		t.Error("expected case-insensitive duplicate to fail")
	}
}

func TestDelete(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Create(databasesDir, "Norse", TypeBoth)
	Use(databasesDir, "Norse", "both")

	if err := Delete(databasesDir, DefaultName); err == nil {
		t.Error("expected error deleting default")
	}
	if err := Delete(databasesDir, "missing"); err == nil {
		t.Error("expected error for unknown database")
	}

	if err := Delete(databasesDir, "Norse"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	reg, _ := Ensure(databasesDir)
	if _, ok := reg.Databases["Norse"]; ok {
		t.Error("database still registered")
	}
	if reg.CurrentCharacterDB != DefaultName || reg.CurrentCoADB != DefaultName {
		t.Error("pointers did not fall back to default")
	}
	if _, err := os.Stat(Dir(databasesDir, "Norse")); err == nil {
		t.Error("database directory still exists")
	}
}

func TestRename(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Create(databasesDir, "Norse", TypeBoth)
	Use(databasesDir, "Norse", "both")

	if err := Rename(databasesDir, DefaultName, "primary"); err == nil {
		t.Error("expected error renaming default")
	}

	if err := Rename(databasesDir, "Norse", "Varangian"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	reg, _ := Ensure(databasesDir)
	if _, ok := reg.Databases["Varangian"]; !ok {
		t.Error("renamed database not registered")
	}
	if _, ok := reg.Databases["Norse"]; ok {
		t.Error("old name still registered")
	}
	if reg.CurrentCharacterDB != "Varangian" || reg.CurrentCoADB != "Varangian" {
		t.Error("pointers did not follow rename")
	}
	if _, err := os.Stat(Dir(databasesDir, "Varangian")); err != nil {
		t.Error("renamed directory missing")
	}

	Create(databasesDir, "Other", TypeBoth)
	if err := Rename(databasesDir, "Other", "varangian"); err == nil {
		t.Error("expected case-insensitive collision to fail")
	}
}

func TestUse(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Create(databasesDir, "chars", TypeCharacter)
	Create(databasesDir, "crests", TypeCoA)
	Create(databasesDir, "mixed", TypeBoth)

	if err := Use(databasesDir, "chars", "character"); err != nil {
		t.Errorf("Use character failed: %v", err)
	}
	if err := Use(databasesDir, "chars", "coa"); err == nil {
		t.Error("character-typed database accepted as coa target")
	}
	if err := Use(databasesDir, "crests", "coa"); err != nil {
		t.Errorf("Use coa failed: %v", err)
	}
	if err := Use(databasesDir, "crests", "both"); err == nil {
		t.Error("coa-typed database accepted as both target")
	}
	if err := Use(databasesDir, "mixed", "both"); err != nil {
		t.Errorf("Use both failed: %v", err)
	}
	if err := Use(databasesDir, "missing", "both"); err == nil {
		t.Error("expected error for unknown database")
	}
	if err := Use(databasesDir, "mixed", "everything"); err == nil {
		t.Error("expected error for unknown target")
	}

	reg, _ := Ensure(databasesDir)
	if reg.CurrentCharacterDB != "mixed" || reg.CurrentCoADB != "mixed" {
		t.Errorf("pointers = (%s, %s), want mixed", reg.CurrentCharacterDB, reg.CurrentCoADB)
	}
}

func TestMoveItemCharacter(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Ensure(databasesDir)
	Create(databasesDir, "Norse", TypeBoth)

	src := filepath.Join(t.TempDir(), "p.png")
	writeTestPNG(t, src)
	fromData := CharacterDataDir(databasesDir, DefaultName)
	c, err := gallery.AddCharacter(fromData, "Default", "Ragnar", gallery.WithPortrait(src, false))
	if err != nil {
		t.Fatalf("AddCharacter failed: %v", err)
	}

	if err := MoveItem(databasesDir, DefaultName, "Norse", "character", c.ID); err != nil {
		t.Fatalf("MoveItem failed: %v", err)
	}

	toData := CharacterDataDir(databasesDir, "Norse")
	_, moved, err := gallery.FindCharacter(toData, c.ID)
	if err != nil {
		t.Fatalf("moved character not found: %v", err)
	}
	if moved.Image == "" {
		t.Error("portrait reference lost in move")
	}
	if _, err := os.Stat(filepath.Join(gallery.ImagesDir(toData), moved.Image)); err != nil {
		t.Error("portrait file not moved to destination")
	}
	if _, err := os.Stat(filepath.Join(gallery.ImagesDir(fromData), c.Image)); err == nil {
		t.Error("portrait file still in source")
	}
	if _, _, err := gallery.FindCharacter(fromData, c.ID); err == nil {
		t.Error("character still in source database")
	}
}

func TestMoveItemCoA(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Ensure(databasesDir)
	Create(databasesDir, "crests", TypeCoA)

	fromData := CoaDataDir(databasesDir, DefaultName)
	c, err := coa.Add(fromData, "Default", "Lion", "coa_rd_dynasty_1", nil, "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := MoveItem(databasesDir, DefaultName, "crests", "coa", c.ID); err != nil {
		t.Fatalf("MoveItem failed: %v", err)
	}
	if _, _, err := coa.Find(CoaDataDir(databasesDir, "crests"), c.ID); err != nil {
		t.Errorf("moved coat not found: %v", err)
	}
	if _, _, err := coa.Find(fromData, c.ID); err == nil {
		t.Error("coat still in source database")
	}
}

func TestMoveItemTypeChecks(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Ensure(databasesDir)
	Create(databasesDir, "crests", TypeCoA)

	if err := MoveItem(databasesDir, DefaultName, "crests", "character", "x"); err == nil {
		t.Error("character move into coa-typed database should fail")
	}
	if err := MoveItem(databasesDir, DefaultName, DefaultName, "character", "x"); err == nil {
		t.Error("expected error for same source and destination")
	}
	if err := MoveItem(databasesDir, DefaultName, "crests", "artifact", "x"); err == nil {
		t.Error("expected error for unknown item type")
	}
}

func TestBuildStats(t *testing.T) {
	databasesDir := filepath.Join(t.TempDir(), "databases")
	Ensure(databasesDir)

	charData := CharacterDataDir(databasesDir, DefaultName)
	src := filepath.Join(t.TempDir(), "p.png")
	writeTestPNG(t, src)
	gallery.Create(charData, "Norse")
	gallery.AddCharacter(charData, "Norse", "Ragnar",
		gallery.WithTags([]string{"king", "norse"}), gallery.WithPortrait(src, false))
	gallery.AddCharacter(charData, "Default", "Brian", gallery.WithTags([]string{"king"}))

	coaData := CoaDataDir(databasesDir, DefaultName)
	coa.Add(coaData, "Default", "Lion", "coa_rd_dynasty_1", []string{"king"}, "")

	s, err := BuildStats(databasesDir, DefaultName)
	if err != nil {
		t.Fatalf("BuildStats failed: %v", err)
	}
	if s.Characters != 2 {
		t.Errorf("Characters = %d, want 2", s.Characters)
	}
	if s.Coats != 1 {
		t.Errorf("Coats = %d, want 1", s.Coats)
	}
	if s.WithPortrait != 1 {
		t.Errorf("WithPortrait = %d, want 1", s.WithPortrait)
	}
	if len(s.TopTags) == 0 || s.TopTags[0] != "king" {
		t.Errorf("TopTags = %v, want king first", s.TopTags)
	}
	if s.TagCounts["king"] != 3 {
		t.Errorf(`TagCounts["king"] = %d, want 3`, s.TagCounts["king"])
	}

	if !strings.Contains(s.ASCII, "Database_default (both)") {
		t.Errorf("tree missing root line:\n%s", s.ASCII)
	}
	if !strings.Contains(s.ASCII, "characters: 2 (1 with portrait)") {
		t.Errorf("tree missing character branch:\n%s", s.ASCII)
	}
	if !strings.Contains(s.Markdown, "# Database: default") {
		t.Errorf("markdown missing title:\n%s", s.Markdown)
	}

	if _, err := BuildStats(databasesDir, "missing"); err == nil {
		t.Error("expected error for unknown database")
	}
}
