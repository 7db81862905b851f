// Package pageio writes cleaned pages to disk and bundles them into the
// document handed to the recognition engine.
package pageio

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/image/tiff"

	"omrpipe/internal/fileutil"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
)

// Format is an on-disk page image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "png", "":
		return FormatPNG, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "pageio", "format", fmt.Sprintf("unsupported page format %q", value), nil)
	}
}

// Extension returns the file extension without a leading dot.
func (f Format) Extension() string {
	if f == FormatTIFF {
		return "tif"
	}
	return "png"
}

// PageFileName returns the name used for the zero-based page index.
func PageFileName(stem string, index int, format Format) string {
	return fmt.Sprintf("%s_page%03d.%s", stem, index+1, format.Extension())
}

// WritePage encodes the page into dir and returns the written path.
func WritePage(dir, stem string, p page.Binary, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrValidation, "pageio", "write", "create page directory", err)
	}
	path := filepath.Join(dir, PageFileName(stem, p.Index, format))
	img := p.Gray()
	err := fileutil.WriteAtomicFunc(path, 0o644, func(w io.Writer) error {
		if format == FormatTIFF {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
		return png.Encode(w, img)
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "pageio", "write", filepath.Base(path), err)
	}
	return path, nil
}

// BundleName returns the bundled document name for a source stem.
func BundleName(stem string) string {
	return "cleaned_" + stem + ".pdf"
}

// Bundle assembles page images, in order, into a single multi-page PDF. The
// bundle's page count is checked before it replaces out.
func Bundle(pages []string, out string) error {
	if len(pages) == 0 {
		return services.Wrap(services.ErrValidation, "pageio", "bundle", "no pages to bundle", nil)
	}
	tmp := filepath.Join(filepath.Dir(out), ".partial-"+filepath.Base(out))
	_ = os.Remove(tmp)
	if err := api.ImportImagesFile(pages, tmp, pdfcpu.DefaultImportConfig(), nil); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrValidation, "pageio", "bundle", filepath.Base(out), err)
	}
	n, err := PageCount(tmp)
	if err == nil && n != len(pages) {
		err = services.Wrap(services.ErrValidation, "pageio", "bundle",
			fmt.Sprintf("bundle has %d pages, expected %d", n, len(pages)), nil)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrValidation, "pageio", "bundle", "rename bundle", err)
	}
	return nil
}

// PageCount reports the number of pages in a PDF on disk.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "pageio", "page count", filepath.Base(path), err)
	}
	return n, nil
}
