package page

import (
	"fmt"
	"image"

	"omrpipe/internal/services"
)

const (
	// Black is the foreground sample value of a binary page.
	Black byte = 0
	// White is the background sample value of a binary page.
	White byte = 255
)

// Raster is a single grayscale page image.
type Raster struct {
	Width  int
	Height int
	// Pix holds Width*Height samples, row-major, one byte per pixel.
	Pix []byte
	// Index is the zero-based page position within the source document.
	Index int
	// DPI is the nominal resolution the page was rendered or scanned at.
	DPI int
}

// NewRaster validates dimensions and takes ownership of pix.
func NewRaster(width, height int, pix []byte, index, dpi int) (Raster, error) {
	r := Raster{Width: width, Height: height, Pix: pix, Index: index, DPI: dpi}
	if err := r.Validate(); err != nil {
		return Raster{}, err
	}
	return r, nil
}

// Validate reports whether the raster satisfies its size invariants.
func (r Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return services.Wrap(services.ErrImageDecode, "page", "validate",
			fmt.Sprintf("zero-area page %dx%d", r.Width, r.Height), nil)
	}
	if len(r.Pix) != r.Width*r.Height {
		return services.Wrap(services.ErrImageDecode, "page", "validate",
			fmt.Sprintf("sample buffer has %d bytes, want %d for %dx%d", len(r.Pix), r.Width*r.Height, r.Width, r.Height), nil)
	}
	return nil
}

// Clone returns a deep copy.
func (r Raster) Clone() Raster {
	out := r
	out.Pix = append([]byte(nil), r.Pix...)
	return out
}

// At returns the sample at column x, row y.
func (r Raster) At(x, y int) byte {
	return r.Pix[y*r.Width+x]
}

// Gray exposes the raster as an image.Gray sharing the sample buffer.
func (r Raster) Gray() *image.Gray {
	return &image.Gray{
		Pix:    r.Pix,
		Stride: r.Width,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// FromGray copies an image.Gray into a new Raster.
func FromGray(img *image.Gray, index, dpi int) (Raster, error) {
	if img == nil {
		return Raster{}, services.Wrap(services.ErrImageDecode, "page", "from gray", "nil image", nil)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]byte, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		start := img.PixOffset(bounds.Min.X, y)
		pix = append(pix, img.Pix[start:start+w]...)
	}
	return NewRaster(w, h, pix, index, dpi)
}

// Binary is a Raster whose samples are restricted to Black and White.
type Binary struct {
	Raster
}

// NewBinary checks that every sample is Black or White.
func NewBinary(r Raster) (Binary, error) {
	if err := r.Validate(); err != nil {
		return Binary{}, err
	}
	for i, v := range r.Pix {
		if v != Black && v != White {
			return Binary{}, services.Wrap(services.ErrImageDecode, "page", "binarize",
				fmt.Sprintf("sample %d at (%d,%d) is not binary", v, i%r.Width, i/r.Width), nil)
		}
	}
	return Binary{Raster: r}, nil
}

// Clone returns a deep copy.
func (b Binary) Clone() Binary {
	return Binary{Raster: b.Raster.Clone()}
}

// ForegroundRatio returns the fraction of Black samples.
func (b Binary) ForegroundRatio() float64 {
	if len(b.Pix) == 0 {
		return 0
	}
	black := 0
	for _, v := range b.Pix {
		if v == Black {
			black++
		}
	}
	return float64(black) / float64(len(b.Pix))
}
