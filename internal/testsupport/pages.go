package testsupport

import (
	"testing"

	"omrpipe/internal/page"
)

// StaffPage draws horizontal five-line staves on a white binary page. Each
// staff line is three pixels thick and spans the page minus a 60px margin on
// either side, which comfortably exceeds the default Hough vote threshold.
func StaffPage(t testing.TB, width, height int) page.Binary {
	t.Helper()
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = page.White
	}
	const (
		margin     = 60
		thickness  = 3
		lineGap    = 14
		staffGap   = 110
		firstStaff = 80
	)
	for top := firstStaff; top+4*lineGap+thickness < height-margin; top += staffGap {
		for line := 0; line < 5; line++ {
			y0 := top + line*lineGap
			for y := y0; y < y0+thickness; y++ {
				for x := margin; x < width-margin; x++ {
					pix[y*width+x] = page.Black
				}
			}
		}
	}
	return mustBinary(t, width, height, pix)
}

// BlankPage returns a uniformly white binary page.
func BlankPage(t testing.TB, width, height int) page.Binary {
	t.Helper()
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = page.White
	}
	return mustBinary(t, width, height, pix)
}

// NoisyScan returns a deterministic grayscale page resembling a dim scan:
// light gray paper with pseudo-random speckle and a few dark bars.
func NoisyScan(t testing.TB, width, height int) page.Raster {
	t.Helper()
	pix := make([]byte, width*height)
	state := uint32(2463534242)
	for i := range pix {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		pix[i] = byte(200 + state%40)
	}
	for y := height / 4; y < height/4+4 && y < height; y++ {
		for x := width / 8; x < width-width/8; x++ {
			pix[y*width+x] = 30
		}
	}
	r, err := page.NewRaster(width, height, pix, 0, 300)
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	return r
}

func mustBinary(t testing.TB, width, height int, pix []byte) page.Binary {
	t.Helper()
	r, err := page.NewRaster(width, height, pix, 0, 300)
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	b, err := page.NewBinary(r)
	if err != nil {
		t.Fatalf("NewBinary: %v", err)
	}
	return b
}
