package media

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func stringEntry(name, content string) ZipEntry {
	return ZipEntry{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out
}

func TestWriteZipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		stringEntry("b.txt", "bravo"),
		stringEntry("a.txt", "alpha"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	files := readZip(t, buf.Bytes())
	if files["a.txt"] != "alpha" || files["b.txt"] != "bravo" {
		t.Errorf("unexpected contents: %v", files)
	}
}

func TestWriteZipSortedOrder(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		stringEntry("zeta.txt", "z"),
		stringEntry("alpha.txt", "a"),
		stringEntry("mid.txt", "m"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"alpha.txt", "mid.txt", "zeta.txt"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestWriteZipDuplicateNames(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		stringEntry("photo.jpg", "one"),
		stringEntry("photo.jpg", "two"),
		stringEntry("photo.jpg", "three"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	files := readZip(t, buf.Bytes())
	if len(files) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(files), files)
	}
	if _, ok := files["photo.jpg"]; !ok {
		t.Error("expected first entry to keep its name")
	}
	if _, ok := files["photo (2).jpg"]; !ok {
		t.Errorf("expected second entry photo (2).jpg, got %v", files)
	}
	if _, ok := files["photo (3).jpg"]; !ok {
		t.Errorf("expected third entry photo (3).jpg, got %v", files)
	}
}

func TestWriteZipSuffixCollidesWithLiteralName(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		stringEntry("photo.jpg", "one"),
		stringEntry("photo.jpg", "two"),
		stringEntry("photo (2).jpg", "literal"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := make(map[string]int)
	for _, f := range zr.File {
		names[f.Name]++
	}
	if len(zr.File) != 3 || len(names) != 3 {
		t.Fatalf("expected 3 distinct entry names, got %v", names)
	}
	for name, count := range names {
		if count != 1 {
			t.Fatalf("entry name %q appears %d times", name, count)
		}
	}

	files := readZip(t, buf.Bytes())
	got := map[string]bool{}
	for _, content := range files {
		got[content] = true
	}
	for _, want := range []string{"one", "two", "literal"} {
		if !got[want] {
			t.Fatalf("missing content %q in %v", want, files)
		}
	}
}

func TestWriteZipStripsPaths(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		stringEntry("../../etc/passwd", "nope"),
		stringEntry("sub\\dir\\file.txt", "win"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	files := readZip(t, buf.Bytes())
	if _, ok := files["passwd"]; !ok {
		t.Errorf("expected flattened passwd entry, got %v", files)
	}
	if _, ok := files["file.txt"]; !ok {
		t.Errorf("expected flattened file.txt entry, got %v", files)
	}
}

func TestWriteZipEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, nil); err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("empty zip should still be readable: %v", err)
	}
	if len(zr.File) != 0 {
		t.Errorf("expected no entries, got %d", len(zr.File))
	}
}
