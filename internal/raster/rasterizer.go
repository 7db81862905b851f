package raster

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"gocv.io/x/gocv"

	"omrpipe/internal/logging"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
)

// DefaultDPI is the rendering resolution for PDF pages.
const DefaultDPI = 300

// Rasterizer renders documents into grayscale pages.
type Rasterizer struct {
	dpi    int
	logger *slog.Logger
}

// Option configures a Rasterizer.
type Option func(*Rasterizer)

// WithDPI overrides the PDF rendering resolution.
func WithDPI(dpi int) Option {
	return func(r *Rasterizer) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

// WithLogger attaches a logger for render diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rasterizer) {
		r.logger = logging.NewComponentLogger(logger, "raster")
	}
}

// New constructs a Rasterizer.
func New(opts ...Option) *Rasterizer {
	r := &Rasterizer{dpi: DefaultDPI, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Count reports how many pages the document contains.
func (r *Rasterizer) Count(data []byte) (int, error) {
	if Detect(data) != TypePDF {
		if _, err := r.decodeImage(data); err != nil {
			return 0, err
		}
		return 1, nil
	}
	doc, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// PageFunc receives each rendered page, or the error that kept it from
// rendering. Returning a non-nil error stops the iteration.
type PageFunc func(index int, p page.Raster, err error) error

// Each opens the document once and calls fn for every page in order. Errors
// from opening the document or from decoding a single image are returned
// directly; per-page render errors go to fn. It returns the page count.
func (r *Rasterizer) Each(ctx context.Context, data []byte, fn PageFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if Detect(data) != TypePDF {
		img, err := r.decodeImage(data)
		if err != nil {
			return 0, err
		}
		return 1, fn(0, img, nil)
	}

	doc, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	count := doc.NumPage()
	for index := 0; index < count; index++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		p, renderErr := r.renderPDFPage(doc, index)
		if err := fn(index, p, renderErr); err != nil {
			return count, err
		}
	}
	r.logger.Debug("document rendered", logging.Int("pages", count), logging.Int("dpi", r.dpi))
	return count, nil
}

// Pages renders every page of the document in order.
func (r *Rasterizer) Pages(ctx context.Context, data []byte) ([]page.Raster, error) {
	var pages []page.Raster
	count, err := r.Each(ctx, data, func(_ int, p page.Raster, err error) error {
		if err != nil {
			return err
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, services.Wrap(services.ErrRasterization, "raster", "render", "document has no pages", nil)
	}
	return pages, nil
}

// Page renders a single zero-based page.
func (r *Rasterizer) Page(ctx context.Context, data []byte, index int) (page.Raster, error) {
	if err := ctx.Err(); err != nil {
		return page.Raster{}, err
	}
	if Detect(data) != TypePDF {
		if index != 0 {
			return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "render",
				fmt.Sprintf("page index %d out of range for single image", index), nil)
		}
		return r.decodeImage(data)
	}
	doc, err := openPDF(data)
	if err != nil {
		return page.Raster{}, err
	}
	defer doc.Close()
	if index < 0 || index >= doc.NumPage() {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "render",
			fmt.Sprintf("page index %d out of range (document has %d pages)", index, doc.NumPage()), nil)
	}
	return r.renderPDFPage(doc, index)
}

func openPDF(data []byte) (*fitz.Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, services.Wrap(services.ErrRasterization, "raster", "open", "unreadable PDF", err)
	}
	return doc, nil
}

func (r *Rasterizer) renderPDFPage(doc *fitz.Document, index int) (page.Raster, error) {
	rgba, err := doc.ImageDPI(index, float64(r.dpi))
	if err != nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "render",
			fmt.Sprintf("page %d", index+1), err)
	}
	gray, err := rgbaToGray(rgba)
	if err != nil {
		return page.Raster{}, err
	}
	gray.Index = index
	gray.DPI = r.dpi
	return gray, nil
}

func rgbaToGray(rgba *image.RGBA) (page.Raster, error) {
	if rgba == nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "convert", "renderer returned no image", nil)
	}
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w <= 0 || h <= 0 {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "convert",
			fmt.Sprintf("zero-area render %dx%d", w, h), nil)
	}
	if rgba.Stride != w*4 || len(rgba.Pix) != w*h*4 {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "convert",
			fmt.Sprintf("render buffer has %d bytes, want %d for %dx%d RGBA", len(rgba.Pix), w*h*4, w, h), nil)
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "convert", "wrap render buffer", err)
	}
	defer src.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	out, err := page.FromMat(gray, 0, 0)
	if err != nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "convert", "gray conversion", err)
	}
	return out, nil
}

func (r *Rasterizer) decodeImage(data []byte) (page.Raster, error) {
	if len(data) == 0 {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "decode", "empty document", nil)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "decode", "unreadable image", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "decode", "unsupported or corrupt image", nil)
	}
	out, err := page.FromMat(mat, 0, imageDPI(data))
	if err != nil {
		return page.Raster{}, services.Wrap(services.ErrRasterization, "raster", "decode", "gray conversion", err)
	}
	r.logger.Debug("image decoded",
		logging.Int("width", out.Width),
		logging.Int("height", out.Height),
		logging.Int("dpi", out.DPI),
	)
	return out, nil
}
