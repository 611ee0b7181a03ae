// Package backup zips database directories into the vault's backups
// directory and restores them. Archive names carry a timestamp:
// <label>_backup_<ts>.zip for on-demand and scheduled backups,
// before_restore_<ts>.zip for the safety copy a restore takes first.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	timestampLayout = "20060102_150405"
	autoPrefix      = "auto_backup_"
)

// Archive describes one backup file on disk.
type Archive struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Create zips srcDir into backupsDir as <label>_backup_<ts>.zip and returns
// the archive path. The backups directory itself is never archived, even
// when it sits under srcDir.
func Create(backupsDir, srcDir, label string) (string, error) {
	name := fmt.Sprintf("%s_backup_%s.zip", label, time.Now().Format(timestampLayout))
	path := filepath.Join(backupsDir, name)
	if err := writeZip(path, srcDir, backupsDir); err != nil {
		return "", err
	}
	return path, nil
}

// List returns the archives in backupsDir, newest first.
func List(backupsDir string) ([]Archive, error) {
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	var archives []Archive
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		archives = append(archives, Archive{
			Name:    e.Name(),
			Path:    filepath.Join(backupsDir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].ModTime.After(archives[j].ModTime) })
	return archives, nil
}

// Restore replaces destDir with the contents of the archive. A safety copy
// of the current destDir is zipped to before_restore_<ts>.zip first, and
// every entry name is checked before anything is wiped.
func Restore(backupsDir, archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	root := filepath.Clean(destDir)
	for _, f := range zr.File {
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes the target directory: %s", f.Name)
		}
	}

	if _, err := os.Stat(destDir); err == nil {
		safety := filepath.Join(backupsDir, fmt.Sprintf("before_restore_%s.zip", time.Now().Format(timestampLayout)))
		if err := writeZip(safety, destDir, backupsDir); err != nil {
			return fmt.Errorf("failed to take safety backup: %w", err)
		}
	}

	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("failed to clear target directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate target directory: %w", err)
	}

	for _, f := range zr.File {
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
		}
		if err := extractFile(f, dest); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes auto backups beyond the newest keep, by modification time.
// Manual backups and safety copies are left alone. Returns how many archives
// were removed.
func Prune(backupsDir string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be positive")
	}
	archives, err := List(backupsDir)
	if err != nil {
		return 0, err
	}

	var auto []Archive
	for _, a := range archives {
		if strings.HasPrefix(a.Name, autoPrefix) {
			auto = append(auto, a)
		}
	}
	if len(auto) <= keep {
		return 0, nil
	}

	removed := 0
	for _, a := range auto[keep:] {
		if err := os.Remove(a.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", a.Name, err)
		}
		removed++
	}
	return removed, nil
}

func writeZip(archivePath, srcDir, skipDir string) error {
	if fi, err := os.Stat(srcDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("nothing to back up at %s", srcDir)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return fmt.Errorf("failed to create backups directory: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skipDir != "" && filepath.Clean(path) == filepath.Clean(skipDir) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		defer f.Close()
		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		return nil
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to archive %s: %w", srcDir, walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return out.Close()
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
