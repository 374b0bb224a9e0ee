package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// File is one document going into or coming out of a bundle.
type File struct {
	Name    string
	Content []byte
}

// Build packs the given files into a fresh zip archive. Duplicate names are
// disambiguated with a numeric suffix so no entry is silently dropped.
func Build(files []File) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to bundle")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	seen := make(map[string]int, len(files))
	for _, f := range files {
		if err := writeEntry(w, seen, f); err != nil {
			w.Close() //nolint:errcheck
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// Append rebuilds the archive with the existing entries followed by the new
// files. zip archives cannot be appended in place, so the prior contents are
// copied entry by entry.
func Append(existing []byte, files []File) ([]byte, error) {
	if len(files) == 0 {
		return existing, nil
	}
	r, err := zip.NewReader(bytes.NewReader(existing), int64(len(existing)))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	seen := make(map[string]int, len(r.File)+len(files))
	for _, entry := range r.File {
		rc, err := entry.Open()
		if err != nil {
			w.Close() //nolint:errcheck
			return nil, fmt.Errorf("open bundle entry %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			w.Close() //nolint:errcheck
			return nil, fmt.Errorf("read bundle entry %s: %w", entry.Name, err)
		}
		if err := writeEntry(w, seen, File{Name: entry.Name, Content: content}); err != nil {
			w.Close() //nolint:errcheck
			return nil, err
		}
	}
	for _, f := range files {
		if err := writeEntry(w, seen, f); err != nil {
			w.Close() //nolint:errcheck
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// List returns the entry names of a bundle in archive order.
func List(data []byte) ([]string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	names := make([]string, 0, len(r.File))
	for _, entry := range r.File {
		names = append(names, entry.Name)
	}
	return names, nil
}

func writeEntry(w *zip.Writer, seen map[string]int, f File) error {
	name := sanitize(f.Name)
	if n, ok := seen[name]; ok {
		seen[name] = n + 1
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
	} else {
		seen[name] = 0
	}
	entry, err := w.Create(name)
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", name, err)
	}
	if _, err := entry.Write(f.Content); err != nil {
		return fmt.Errorf("write bundle entry %s: %w", name, err)
	}
	return nil
}

func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	return base
}
