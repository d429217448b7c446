package builder

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// packDirectory writes everything under dir into a fresh zip archive at
// outputPath, all entries prefixed with a single top-level directory.
// Directories get their own headers so empty ones from the template
// survive the repack. Entries are visited in lexical order and headers
// carry no timestamps, so identical inputs produce byte-identical
// archives.
func packDirectory(dir, outputPath, prefix string) error {
	outputFile, err := os.Create(filepath.Clean(outputPath))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zipWriter := zip.NewWriter(outputFile)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == dir {
				return nil
			}

			return addDir(zipWriter, dir, path, prefix, d)
		}

		return addFile(zipWriter, dir, path, prefix, d)
	})

	if closeErr := zipWriter.Close(); walkErr == nil {
		walkErr = closeErr
	}

	if closeErr := outputFile.Close(); walkErr == nil {
		walkErr = closeErr
	}

	if walkErr != nil {
		// Do not leave a truncated archive behind.
		_ = os.Remove(outputPath)

		return fmt.Errorf("pack %s: %w", dir, walkErr)
	}

	return nil
}

// addDir writes a directory header under the prefixed relative path.
func addDir(zipWriter *zip.Writer, dir, path, prefix string, d fs.DirEntry) error {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return err
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name: prefix + "/" + filepath.ToSlash(rel) + "/",
	}
	header.SetMode(info.Mode())

	_, err = zipWriter.CreateHeader(header)

	return err
}

// addFile streams one file into the archive under the prefixed relative path.
func addFile(zipWriter *zip.Writer, dir, path, prefix string, d fs.DirEntry) error {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return err
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:   prefix + "/" + filepath.ToSlash(rel),
		Method: zip.Deflate,
	}
	header.SetMode(info.Mode())

	entryWriter, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	_, err = io.Copy(entryWriter, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	return err
}
