package page

import (
	"fmt"

	"gocv.io/x/gocv"

	"omrpipe/internal/services"
)

// Mat copies the raster into a new single-channel 8-bit Mat. The caller must
// Close the result.
func (r Raster) Mat() (gocv.Mat, error) {
	if err := r.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	// NewMatFromBytes aliases the Go slice; clone so the Mat owns its memory.
	view, err := gocv.NewMatFromBytes(r.Height, r.Width, gocv.MatTypeCV8UC1, r.Pix)
	if err != nil {
		return gocv.NewMat(), services.Wrap(services.ErrImageDecode, "page", "to mat", "wrap samples", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// FromMat copies a single-channel 8-bit Mat into a new Raster.
func FromMat(m gocv.Mat, index, dpi int) (Raster, error) {
	if m.Empty() {
		return Raster{}, services.Wrap(services.ErrImageDecode, "page", "from mat", "empty image", nil)
	}
	if m.Type() != gocv.MatTypeCV8UC1 {
		return Raster{}, services.Wrap(services.ErrImageDecode, "page", "from mat",
			fmt.Sprintf("unsupported mat type %v with %d channels", m.Type(), m.Channels()), nil)
	}
	src := m
	if !m.IsContinuous() {
		src = m.Clone()
		defer src.Close()
	}
	return NewRaster(src.Cols(), src.Rows(), src.ToBytes(), index, dpi)
}
