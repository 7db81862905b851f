package pageio_test

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"omrpipe/internal/pageio"
	"omrpipe/internal/testsupport"
)

func TestWritePageFormats(t *testing.T) {
	staff := testsupport.StaffPage(t, 200, 300)
	staff.Index = 4
	dir := t.TempDir()

	pngPath, err := pageio.WritePage(dir, "sonata", staff, pageio.FormatPNG)
	if err != nil {
		t.Fatalf("WritePage png: %v", err)
	}
	if filepath.Base(pngPath) != "sonata_page005.png" {
		t.Fatalf("unexpected name %q", filepath.Base(pngPath))
	}
	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 300 {
		t.Fatalf("unexpected png bounds %v", img.Bounds())
	}

	tifPath, err := pageio.WritePage(dir, "sonata", staff, pageio.FormatTIFF)
	if err != nil {
		t.Fatalf("WritePage tiff: %v", err)
	}
	data, err := os.ReadFile(tifPath)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode tiff: %v", err)
	}
	r, g, b, _ := decoded.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatal("expected white background pixel in tiff")
	}
}

func TestBundleOrdersPages(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 3; i++ {
		p := testsupport.StaffPage(t, 160, 240)
		p.Index = i
		path, err := pageio.WritePage(dir, "suite", p, pageio.FormatPNG)
		if err != nil {
			t.Fatalf("WritePage: %v", err)
		}
		files = append(files, path)
	}
	out := filepath.Join(dir, pageio.BundleName("suite"))
	if err := pageio.Bundle(files, out); err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	n, err := pageio.PageCount(out)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, ".partial-"+filepath.Base(out))); !os.IsNotExist(err) {
		t.Fatal("partial bundle left behind")
	}
}

func TestBundleRejectsEmpty(t *testing.T) {
	if err := pageio.Bundle(nil, filepath.Join(t.TempDir(), "x.pdf")); err == nil {
		t.Fatal("expected error for empty bundle")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := pageio.ParseFormat("TIF"); err != nil || f != pageio.FormatTIFF {
		t.Fatalf("ParseFormat(TIF) = %v, %v", f, err)
	}
	if _, err := pageio.ParseFormat("gif"); err == nil {
		t.Fatal("expected error for gif")
	}
	if got := pageio.PageFileName("x", 0, pageio.FormatTIFF); got != "x_page001.tif" {
		t.Fatalf("unexpected name %q", got)
	}
}
