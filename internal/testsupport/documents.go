package testsupport

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ScanPNG writes a NoisyScan page of the given size as a PNG and returns its path.
func ScanPNG(t testing.TB, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, NoisyScan(t, width, height).Gray()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ScanPDF writes a PDF with pages NoisyScan images and returns its path.
func ScanPDF(t testing.TB, dir, name string, pages int) string {
	t.Helper()
	scratch := t.TempDir()
	images := make([]string, pages)
	for i := range images {
		images[i] = ScanPNG(t, scratch, "page"+string(rune('a'+i))+".png", 160, 120)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := api.ImportImagesFile(images, path, pdfcpu.DefaultImportConfig(), nil); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return path
}
