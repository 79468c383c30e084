package manifest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractedBytes caps the total size of an extracted archive so a
// malicious CID cannot exhaust the disk.
const maxExtractedBytes = 256 << 20

// extractArchive unpacks archive bytes (zip, tar, or tar.gz, detected by
// magic bytes) into dest. Entries escaping dest are rejected.
func extractArchive(data []byte, dest string) error {
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return extractZip(data, dest)
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		return extractTar(gz, dest)
	default:
		return extractTar(bytes.NewReader(data), dest)
	}
}

func extractZip(data []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}

	var total int64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		n, err := writeEntry(path, rc, maxExtractedBytes-total)
		rc.Close()
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)

	var total int64
	sawEntry := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar archive: %w", err)
		}
		sawEntry = true

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
			path, err := securePath(dest, hdr.Name)
			if err != nil {
				return err
			}
			n, err := writeEntry(path, tr, maxExtractedBytes-total)
			if err != nil {
				return err
			}
			total += n
		default:
			// Symlinks and devices have no place in an arbitration archive.
			return fmt.Errorf("unsupported tar entry type %c for %s", hdr.Typeflag, hdr.Name)
		}
	}
	if !sawEntry {
		return fmt.Errorf("archive contains no entries")
	}
	return nil
}

// securePath resolves an archive entry name under dest, rejecting absolute
// paths and traversal.
func securePath(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return filepath.Join(dest, cleaned), nil
}

func writeEntry(path string, r io.Reader, budget int64) (int64, error) {
	if budget <= 0 {
		return 0, fmt.Errorf("archive exceeds extraction size limit")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create entry directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, budget+1))
	if err != nil {
		return n, fmt.Errorf("write entry %s: %w", path, err)
	}
	if n > budget {
		return n, fmt.Errorf("archive exceeds extraction size limit")
	}
	return n, nil
}
