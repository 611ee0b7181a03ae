package backup

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func writeFakeArchive(t *testing.T, backupsDir, name string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(backupsDir, 0755); err != nil {
		t.Fatalf("mkdir backups: %v", err)
	}
	path := filepath.Join(backupsDir, name)
	if err := os.WriteFile(path, []byte("zip"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

func TestCreateAndList(t *testing.T) {
	src := filepath.Join(t.TempDir(), "db")
	writeTree(t, src, map[string]string{
		"character_data/characters.json": `[]`,
		"coa_data/coats_of_arms.json":    `[]`,
	})
	backupsDir := filepath.Join(t.TempDir(), "backups")

	path, err := Create(backupsDir, src, "default")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "default_backup_") || !strings.HasSuffix(path, ".zip") {
		t.Errorf("unexpected archive name: %s", path)
	}

	archives, err := List(backupsDir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("List returned %d archives, want 1", len(archives))
	}
	if archives[0].Size == 0 {
		t.Error("archive size is zero")
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Errorf("archive holds %d files, want 2", len(zr.File))
	}
}

func TestCreateMissingSource(t *testing.T) {
	backupsDir := filepath.Join(t.TempDir(), "backups")
	if _, err := Create(backupsDir, filepath.Join(t.TempDir(), "nope"), "default"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestCreateSkipsBackupsDir(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"data.json": "{}"})
	// Backups live inside the tree being archived.
	backupsDir := filepath.Join(src, "backups")
	writeFakeArchive(t, backupsDir, "auto_backup_20250101_000000.zip", time.Now())

	path, err := Create(backupsDir, src, "all")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "backups/") {
			t.Errorf("archive contains backups entry: %s", f.Name)
		}
	}
}

func TestListEmpty(t *testing.T) {
	archives, err := List(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(archives) != 0 {
		t.Errorf("expected no archives, got %d", len(archives))
	}
}

func TestRestoreRoundtrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "db")
	writeTree(t, src, map[string]string{
		"character_data/characters.json": `[{"name":"Default","characters":[]}]`,
		"coa_data/images/a.png":          "png-bytes",
	})
	backupsDir := filepath.Join(t.TempDir(), "backups")

	path, err := Create(backupsDir, src, "default")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Tamper with the live data.
	os.RemoveAll(filepath.Join(src, "coa_data"))
	os.WriteFile(filepath.Join(src, "character_data", "characters.json"), []byte("tampered"), 0644)

	if err := Restore(backupsDir, path, src); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(src, "character_data", "characters.json"))
	if err != nil || string(data) != `[{"name":"Default","characters":[]}]` {
		t.Errorf("characters.json not restored: %q, %v", data, err)
	}
	if _, err := os.ReadFile(filepath.Join(src, "coa_data", "images", "a.png")); err != nil {
		t.Errorf("nested file not restored: %v", err)
	}

	// A safety copy of the tampered state must exist.
	archives, _ := List(backupsDir)
	foundSafety := false
	for _, a := range archives {
		if strings.HasPrefix(a.Name, "before_restore_") {
			foundSafety = true
		}
	}
	if !foundSafety {
		t.Error("no before_restore safety backup taken")
	}
}

func TestRestoreRejectsEscapingEntries(t *testing.T) {
	evil := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(evil)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	w.Write([]byte("gotcha"))
	zw.Close()
	f.Close()

	dest := filepath.Join(t.TempDir(), "db")
	writeTree(t, dest, map[string]string{"marker.json": "{}"})
	backupsDir := filepath.Join(t.TempDir(), "backups")

	if err := Restore(backupsDir, evil, dest); err == nil {
		t.Fatal("expected error for escaping entry")
	}
	// The target must be untouched; validation runs before the wipe.
	if _, err := os.Stat(filepath.Join(dest, "marker.json")); err != nil {
		t.Error("target directory was wiped despite rejected archive")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt")); err == nil {
		t.Error("escaping entry was extracted")
	}
}

func TestRestoreMissingArchive(t *testing.T) {
	backupsDir := filepath.Join(t.TempDir(), "backups")
	err := Restore(backupsDir, filepath.Join(backupsDir, "nope.zip"), t.TempDir())
	if err == nil {
		t.Error("expected error for missing archive")
	}
}

func TestPrune(t *testing.T) {
	backupsDir := filepath.Join(t.TempDir(), "backups")
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		writeFakeArchive(t, backupsDir,
			// Lexical order deliberately differs from mtime order.
			strings.Replace("auto_backup_2025010N_000000.zip", "N", string(rune('5'-i)), 1),
			base.Add(time.Duration(i)*time.Minute))
	}
	writeFakeArchive(t, backupsDir, "default_backup_20250101_000000.zip", base)
	writeFakeArchive(t, backupsDir, "before_restore_20250101_000000.zip", base)

	removed, err := Prune(backupsDir, 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed %d archives, want 3", removed)
	}

	archives, _ := List(backupsDir)
	var autoLeft []string
	for _, a := range archives {
		if strings.HasPrefix(a.Name, "auto_backup_") {
			autoLeft = append(autoLeft, a.Name)
		}
	}
	// The two newest by mtime survive, regardless of lexical order.
	want := []string{"auto_backup_20250101_000000.zip", "auto_backup_20250102_000000.zip"}
	sort.Strings(autoLeft)
	if !cmp.Equal(autoLeft, want) {
		t.Errorf("surviving auto backups mismatch (-want +got):\n%s", cmp.Diff(want, autoLeft))
	}
	// Manual and safety archives survive pruning.
	if len(archives) != 4 {
		t.Errorf("%d archives left in total, want 4", len(archives))
	}
}

func TestPruneNothingToDo(t *testing.T) {
	backupsDir := filepath.Join(t.TempDir(), "backups")
	writeFakeArchive(t, backupsDir, "auto_backup_20250101_000000.zip", time.Now())

	removed, err := Prune(backupsDir, 10)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed %d, want 0", removed)
	}

	if _, err := Prune(backupsDir, 0); err == nil {
		t.Error("expected error for keep < 1")
	}
}
