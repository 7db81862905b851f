package page_test

import (
	"bytes"
	"errors"
	"testing"

	"omrpipe/internal/page"
	"omrpipe/internal/services"
)

func TestNewRasterRejectsBadDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		pix  []byte
	}{
		{"zero width", 0, 4, nil},
		{"zero height", 4, 0, nil},
		{"short buffer", 4, 4, make([]byte, 15)},
		{"long buffer", 2, 2, make([]byte, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := page.NewRaster(tt.w, tt.h, tt.pix, 0, 300)
			if !errors.Is(err, services.ErrImageDecode) {
				t.Fatalf("expected ErrImageDecode, got %v", err)
			}
		})
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	r, err := page.NewRaster(2, 1, []byte{10, 20}, 0, 72)
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	c := r.Clone()
	c.Pix[0] = 99
	if r.Pix[0] != 10 {
		t.Fatal("clone shares sample buffer")
	}
}

func TestNewBinaryRejectsGray(t *testing.T) {
	r, _ := page.NewRaster(3, 1, []byte{0, 128, 255}, 0, 72)
	if _, err := page.NewBinary(r); !errors.Is(err, services.ErrImageDecode) {
		t.Fatalf("expected ErrImageDecode, got %v", err)
	}
	ok, _ := page.NewRaster(2, 1, []byte{0, 255}, 0, 72)
	b, err := page.NewBinary(ok)
	if err != nil {
		t.Fatalf("NewBinary: %v", err)
	}
	if got := b.ForegroundRatio(); got != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", got)
	}
}

func TestGrayRoundTrip(t *testing.T) {
	r, _ := page.NewRaster(3, 2, []byte{1, 2, 3, 4, 5, 6}, 2, 150)
	back, err := page.FromGray(r.Gray(), r.Index, r.DPI)
	if err != nil {
		t.Fatalf("FromGray: %v", err)
	}
	if !bytes.Equal(back.Pix, r.Pix) || back.Width != 3 || back.Height != 2 || back.Index != 2 {
		t.Fatalf("unexpected round trip result %+v", back)
	}
	back.Pix[0] = 42
	if r.Pix[0] != 1 {
		t.Fatal("FromGray must copy samples")
	}
}
