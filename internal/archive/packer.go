package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Pack compresses the contents of srcDir into a single zip archive at
// zipPath. The archive's internal structure mirrors srcDir: one
// top-level entry per immediate subdirectory.
func Pack(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", zipPath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("pack %s: %w", srcDir, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize archive %s: %w", zipPath, err)
	}

	return nil
}
