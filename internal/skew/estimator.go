package skew

import (
	"log/slog"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"omrpipe/internal/logging"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
)

// Estimate is the measured page rotation in degrees.
type Estimate struct {
	Angle float64
	// Present is false when no line was detected; Angle is then meaningless.
	Present bool
	// Lines is the number of detected lines that contributed to the median.
	Lines int
}

// Absent is the estimate for a page with no detectable lines.
var Absent = Estimate{}

// Params controls edge and line detection.
type Params struct {
	CannyLow       float64
	CannyHigh      float64
	HoughThreshold int
}

// DefaultEstimatorParams returns the standard detection settings.
func DefaultEstimatorParams() Params {
	return Params{CannyLow: 50, CannyHigh: 150, HoughThreshold: 200}
}

// Estimator measures page skew from detected straight lines.
type Estimator struct {
	params Params
	logger *slog.Logger
}

// Option configures an Estimator or Deskewer.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewEstimator returns an Estimator for the given parameters.
func NewEstimator(params Params, opts ...Option) *Estimator {
	o := buildOptions(opts)
	return &Estimator{params: params, logger: logging.NewComponentLogger(o.logger, "skew")}
}

// Estimate detects lines on the page and returns their median angle.
// A page without lines yields Absent and a nil error.
func (e *Estimator) Estimate(in page.Binary) (Estimate, error) {
	src, err := in.Mat()
	if err != nil {
		return Absent, err
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	// Canny runs with a 3x3 Sobel aperture.
	gocv.Canny(src, &edges, float32(e.params.CannyLow), float32(e.params.CannyHigh))

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, float32(math.Pi/180), e.params.HoughThreshold)

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		line := lines.GetVecfAt(i, 0)
		if len(line) < 2 {
			return Absent, services.Wrap(services.ErrImageDecode, "skew", "estimate", "malformed hough output", nil)
		}
		angles = append(angles, float64(line[1])*180/math.Pi)
	}
	if len(angles) == 0 {
		e.logger.Debug("no lines detected", logging.Int("page_index", in.Index))
		return Absent, nil
	}

	estimate := Estimate{Angle: median(angles) - 90, Present: true, Lines: len(angles)}
	e.logger.Debug("skew estimated",
		logging.Int("page_index", in.Index),
		logging.Float64("angle", estimate.Angle),
		logging.Int("lines", estimate.Lines),
	)
	return estimate, nil
}

// median sorts values in place. Even counts average the two middle values.
func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
