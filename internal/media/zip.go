package media

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// ZipEntry names one file in a folder bundle. Open is called exactly once,
// when the entry is written.
type ZipEntry struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// WriteZip streams a ZIP bundle of the given entries. Entries are written
// in sorted name order so the same folder always bundles identically, and
// duplicate names get a numeric suffix before the extension.
func WriteZip(w io.Writer, entries []ZipEntry) error {
	sorted := make([]ZipEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	zw := zip.NewWriter(w)
	seen := make(map[string]bool)

	for _, entry := range sorted {
		name := uniqueName(seen, sanitizeName(entry.Name))

		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", name, err)
		}
		_, copyErr := io.Copy(fw, rc)
		closeErr := rc.Close()
		if copyErr != nil {
			return fmt.Errorf("write zip entry %s: %w", name, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close zip entry %s: %w", name, closeErr)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

// sanitizeName strips any path components so entries extract flat.
func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return base
}

// uniqueName disambiguates repeats: "photo.jpg", "photo (2).jpg", ...
// Every returned name is registered, so a generated suffix cannot collide
// with a literal "photo (2).jpg" entry later in the folder.
func uniqueName(seen map[string]bool, name string) string {
	if !seen[name] {
		seen[name] = true
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
