// Package cleaning turns a grayscale page into a binary page suitable for
// optical music recognition.
package cleaning

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"omrpipe/internal/logging"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
)

// Params controls the denoise and threshold passes.
type Params struct {
	// BilateralDiameter is the pixel neighbourhood of the edge-preserving blur.
	BilateralDiameter int
	SigmaColor        float64
	SigmaSpace        float64
	// BlockSize is the odd window used for the local Gaussian-weighted mean.
	BlockSize int
	// Offset is subtracted from the local mean before comparison.
	Offset float64
}

// DefaultParams returns the standard denoise and binarization settings.
func DefaultParams() Params {
	return Params{BilateralDiameter: 9, SigmaColor: 75, SigmaSpace: 75, BlockSize: 11, Offset: 2}
}

// Validate checks that the parameters describe a usable filter.
func (p Params) Validate() error {
	if p.BilateralDiameter <= 0 {
		return fmt.Errorf("bilateral diameter must be positive, got %d", p.BilateralDiameter)
	}
	if p.SigmaColor <= 0 || p.SigmaSpace <= 0 {
		return fmt.Errorf("bilateral sigmas must be positive")
	}
	if p.BlockSize < 3 || p.BlockSize%2 == 0 {
		return fmt.Errorf("block size must be odd and at least 3, got %d", p.BlockSize)
	}
	return nil
}

// Cleaner applies an edge-preserving blur followed by adaptive thresholding.
type Cleaner struct {
	params Params
	logger *slog.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger attaches a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logging.NewComponentLogger(logger, "cleaning")
	}
}

// New returns a Cleaner for the given parameters.
func New(params Params, opts ...Option) (*Cleaner, error) {
	if err := params.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cleaning", "configure", "invalid parameters", err)
	}
	c := &Cleaner{params: params, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Clean returns a new binary page; the input is not modified.
func (c *Cleaner) Clean(in page.Raster) (page.Binary, error) {
	if len(in.Pix) == 0 {
		return page.Binary{}, services.Wrap(services.ErrImageDecode, "cleaning", "clean", "empty page buffer", nil)
	}
	src, err := in.Mat()
	if err != nil {
		return page.Binary{}, err
	}
	defer src.Close()

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BilateralFilter(src, &smoothed, c.params.BilateralDiameter, c.params.SigmaColor, c.params.SigmaSpace)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(smoothed, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
		c.params.BlockSize, float32(c.params.Offset))

	out, err := page.FromMat(binary, in.Index, in.DPI)
	if err != nil {
		return page.Binary{}, err
	}
	result, err := page.NewBinary(out)
	if err != nil {
		return page.Binary{}, err
	}
	c.logger.Debug("page cleaned",
		logging.Int("width", result.Width),
		logging.Int("height", result.Height),
		logging.Float64("foreground_ratio", result.ForegroundRatio()),
	)
	return result, nil
}
