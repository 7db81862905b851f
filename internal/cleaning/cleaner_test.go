package cleaning_test

import (
	"bytes"
	"errors"
	"testing"

	"omrpipe/internal/cleaning"
	"omrpipe/internal/page"
	"omrpipe/internal/services"
	"omrpipe/internal/testsupport"
)

func newCleaner(t *testing.T) *cleaning.Cleaner {
	t.Helper()
	c, err := cleaning.New(cleaning.DefaultParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCleanProducesBinarySameSize(t *testing.T) {
	in := testsupport.NoisyScan(t, 320, 240)
	out, err := newCleaner(t).Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if out.Width != in.Width || out.Height != in.Height {
		t.Fatalf("size changed: %dx%d -> %dx%d", in.Width, in.Height, out.Width, out.Height)
	}
	for _, v := range out.Pix {
		if v != page.Black && v != page.White {
			t.Fatalf("non-binary sample %d", v)
		}
	}
	if out.Index != in.Index || out.DPI != in.DPI {
		t.Fatal("page metadata not carried through")
	}
}

func TestCleanIsDeterministic(t *testing.T) {
	in := testsupport.NoisyScan(t, 200, 160)
	c := newCleaner(t)
	first, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	second, err := c.Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Fatal("cleaning the same page twice gave different output")
	}
}

func TestCleanDoesNotModifyInput(t *testing.T) {
	in := testsupport.NoisyScan(t, 64, 64)
	before := append([]byte(nil), in.Pix...)
	if _, err := newCleaner(t).Clean(in); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !bytes.Equal(before, in.Pix) {
		t.Fatal("input buffer was modified")
	}
}

func TestCleanKeepsDarkBars(t *testing.T) {
	in := testsupport.NoisyScan(t, 320, 240)
	out, err := newCleaner(t).Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	// The bar edge row is darker than its surroundings and must survive thresholding.
	if out.At(160, 240/4) != page.Black {
		t.Fatal("expected dark bar to binarize to black")
	}
}

func TestCleanUniformPageIsWhite(t *testing.T) {
	in := testsupport.BlankPage(t, 50, 40).Raster
	out, err := newCleaner(t).Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if out.ForegroundRatio() != 0 {
		t.Fatalf("expected no foreground on a uniform page, got %v", out.ForegroundRatio())
	}
}

func TestCleanRejectsInvalidPages(t *testing.T) {
	c := newCleaner(t)
	tests := []struct {
		name string
		in   page.Raster
	}{
		{"empty", page.Raster{}},
		{"zero width", page.Raster{Width: 0, Height: 2, Pix: []byte{1, 2}}},
		{"length mismatch", page.Raster{Width: 4, Height: 4, Pix: make([]byte, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Clean(tt.in); !errors.Is(err, services.ErrImageDecode) {
				t.Fatalf("expected ErrImageDecode, got %v", err)
			}
		})
	}
}

func TestNewRejectsEvenBlockSize(t *testing.T) {
	params := cleaning.DefaultParams()
	params.BlockSize = 12
	if _, err := cleaning.New(params); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
