package raster

import (
	"bytes"
	"fmt"

	"omrpipe/internal/services"
)

// ContentType identifies a supported input format.
type ContentType string

const (
	TypeUnknown ContentType = ""
	TypePDF     ContentType = "application/pdf"
	TypeJPEG    ContentType = "image/jpeg"
	TypePNG     ContentType = "image/png"
	TypeTIFF    ContentType = "image/tiff"
	TypeBMP     ContentType = "image/bmp"
)

var signatures = []struct {
	magic []byte
	kind  ContentType
}{
	{[]byte("%PDF"), TypePDF},
	{[]byte{0xFF, 0xD8, 0xFF}, TypeJPEG},
	{[]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, TypePNG},
	{[]byte{'I', 'I', 0x2A, 0x00}, TypeTIFF},
	{[]byte{'M', 'M', 0x00, 0x2A}, TypeTIFF},
	{[]byte("BM"), TypeBMP},
}

// Detect returns the content type indicated by the leading magic bytes.
func Detect(data []byte) ContentType {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.kind
		}
	}
	return TypeUnknown
}

// Sniff checks that data is an accepted upload: a PDF, JPEG, PNG, or TIFF no
// larger than maxBytes. A non-positive maxBytes disables the size check.
func Sniff(data []byte, maxBytes int64) (ContentType, error) {
	if len(data) == 0 {
		return TypeUnknown, services.Wrap(services.ErrValidation, "raster", "sniff", "empty document", nil)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return TypeUnknown, services.Wrap(services.ErrValidation, "raster", "sniff",
			fmt.Sprintf("document is %d bytes, limit is %d", len(data), maxBytes), nil)
	}
	kind := Detect(data)
	switch kind {
	case TypePDF, TypeJPEG, TypePNG, TypeTIFF:
		return kind, nil
	default:
		return TypeUnknown, services.Wrap(services.ErrValidation, "raster", "sniff", "unsupported document type", nil)
	}
}
