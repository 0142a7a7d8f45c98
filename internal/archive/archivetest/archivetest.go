// Package archivetest builds small comic archives for tests.
package archivetest

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// File is one entry of a generated archive.
type File struct {
	Name string
	Data []byte
}

// PNG encodes a solid w x h image.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Pages returns one small distinct PNG per name.
func Pages(t testing.TB, names ...string) []File {
	t.Helper()
	files := make([]File, 0, len(names))
	for i, name := range names {
		shade := uint8(40 + (i*20)%200)
		files = append(files, File{Name: name, Data: PNG(t, 6, 8, color.RGBA{shade, shade, 255 - shade, 255})})
	}
	return files
}

// WriteZip writes files as a zip archive at dir/name and returns its path.
// Names ending in "/" become directory entries.
func WriteZip(t testing.TB, dir, name string, files []File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, file := range files {
		w, err := zw.Create(file.Name)
		if err != nil {
			t.Fatalf("create entry %s: %v", file.Name, err)
		}
		if _, err := w.Write(file.Data); err != nil {
			t.Fatalf("write entry %s: %v", file.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}
