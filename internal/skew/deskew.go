package skew

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"gocv.io/x/gocv"

	"omrpipe/internal/logging"
	"omrpipe/internal/page"
)

// minRotation is the smallest angle, in degrees, that triggers a rotation.
// Smaller estimates come from float noise on the Hough theta grid.
const minRotation = 1e-3

// Deskewer rotates a binary page by a skew estimate.
type Deskewer struct {
	border byte
	logger *slog.Logger
}

// NewDeskewer returns a Deskewer that fills uncovered corners with border.
func NewDeskewer(border byte, opts ...Option) *Deskewer {
	o := buildOptions(opts)
	return &Deskewer{border: border, logger: logging.NewComponentLogger(o.logger, "deskew")}
}

// Apply rotates the page about its integer center by est.Angle degrees using
// bilinear interpolation, keeping the original dimensions. An absent or
// negligible estimate returns an unchanged copy of the input. The rotated result is
// re-thresholded at 127 so it remains binary.
func (d *Deskewer) Apply(in page.Binary, est Estimate) (page.Binary, error) {
	if !est.Present || math.Abs(est.Angle) < minRotation {
		return in.Clone(), nil
	}
	src, err := in.Mat()
	if err != nil {
		return page.Binary{}, err
	}
	defer src.Close()

	center := image.Pt(in.Width/2, in.Height/2)
	rotation := gocv.GetRotationMatrix2D(center, est.Angle, 1.0)
	defer rotation.Close()

	rotated := gocv.NewMat()
	defer rotated.Close()
	fill := color.RGBA{R: d.border, G: d.border, B: d.border, A: 255}
	gocv.WarpAffineWithParams(src, &rotated, rotation, image.Pt(in.Width, in.Height),
		gocv.InterpolationLinear, gocv.BorderConstant, fill)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(rotated, &binary, 127, 255, gocv.ThresholdBinary)

	out, err := page.FromMat(binary, in.Index, in.DPI)
	if err != nil {
		return page.Binary{}, err
	}
	result, err := page.NewBinary(out)
	if err != nil {
		return page.Binary{}, err
	}
	d.logger.Debug("page rotated",
		logging.Int("page_index", in.Index),
		logging.Float64("angle", est.Angle),
	)
	return result, nil
}
