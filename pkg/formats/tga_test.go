package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tgaHeader(imageType byte, w, h int, bpp, descriptor byte) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bpp
	hdr[17] = descriptor
	return hdr
}

func TestParseTGA_TrueColor(t *testing.T) {
	// 2x2, bottom-up: first row in the file is the bottom row.
	data := tgaHeader(TGATypeTrueColor, 2, 2, 24, 0)
	data = append(data,
		0, 0, 255, 0, 255, 0, // red, green
		255, 0, 0, 255, 255, 255, // blue, white
	)

	buf, err := ParseTGA(data)
	if err != nil {
		t.Fatalf("ParseTGA failed: %v", err)
	}
	if buf.Width != 2 || buf.Height != 2 {
		t.Fatalf("expected 2x2, got %dx%d", buf.Width, buf.Height)
	}

	tests := []struct {
		x, y int
		want [4]float64
	}{
		{0, 0, [4]float64{1, 0, 0, 1}},
		{1, 0, [4]float64{0, 1, 0, 1}},
		{0, 1, [4]float64{0, 0, 1, 1}},
		{1, 1, [4]float64{1, 1, 1, 1}},
	}
	for _, tt := range tests {
		if got := buf.At(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestParseTGA_TopDownAlpha(t *testing.T) {
	data := tgaHeader(TGATypeTrueColor, 1, 2, 32, 0x20)
	data = append(data,
		0, 0, 255, 255, // red, opaque, top row
		0, 0, 0, 0, // transparent black, bottom row
	)

	buf, err := ParseTGA(data)
	if err != nil {
		t.Fatalf("ParseTGA failed: %v", err)
	}
	if got := buf.At(0, 1); got != [4]float64{1, 0, 0, 1} {
		t.Errorf("top row = %v, want red", got)
	}
	if got := buf.At(0, 0); got != [4]float64{0, 0, 0, 0} {
		t.Errorf("bottom row = %v, want transparent", got)
	}
}

func TestParseTGA_RLE(t *testing.T) {
	// 4x1: a run of three gray 51 pixels, then one raw pixel of 255.
	data := tgaHeader(TGATypeGrayRLE, 4, 1, 8, 0)
	data = append(data, 0x82, 51, 0x00, 255)

	buf, err := ParseTGA(data)
	if err != nil {
		t.Fatalf("ParseTGA failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := buf.At(x, 0); got != [4]float64{0.2, 0.2, 0.2, 1} {
			t.Errorf("pixel %d = %v, want gray 0.2", x, got)
		}
	}
	if got := buf.At(3, 0); got != [4]float64{1, 1, 1, 1} {
		t.Errorf("pixel 3 = %v, want white", got)
	}
}

func TestParseTGA_Errors(t *testing.T) {
	colorMapped := tgaHeader(TGATypeTrueColor, 1, 1, 24, 0)
	colorMapped[1] = 1

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{0, 0, 2}, ErrTruncatedTGAData},
		{"color mapped", colorMapped, ErrUnsupportedTGA},
		{"palette type", tgaHeader(1, 1, 1, 8, 0), ErrUnsupportedTGA},
		{"16-bit color", tgaHeader(TGATypeTrueColor, 1, 1, 16, 0), ErrUnsupportedTGA},
		{"empty", tgaHeader(TGATypeTrueColor, 0, 1, 24, 0), ErrUnsupportedTGA},
		{"raw truncated", append(tgaHeader(TGATypeTrueColor, 2, 1, 24, 0), 1, 2, 3), ErrTruncatedTGAData},
		{"rle truncated", append(tgaHeader(TGATypeTrueColorRLE, 4, 1, 24, 0), 0x81, 1, 2, 3), ErrTruncatedTGAData},
		{"huge raw", append(tgaHeader(TGATypeTrueColor, 8192, 8192, 24, 0), 1, 2, 3), ErrTruncatedTGAData},
		{"huge rle", append(tgaHeader(TGATypeTrueColorRLE, 8192, 8192, 24, 0), 0xff, 1, 2, 3), ErrTruncatedTGAData},
		{"too many pixels", tgaHeader(TGATypeGray, 65535, 65535, 8, 0), ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTGA(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadTGA(t *testing.T) {
	data := tgaHeader(TGATypeGray, 1, 1, 8, 0)
	data = append(data, 255)
	path := filepath.Join(t.TempDir(), "sky.TGA")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if !IsSupported(path) {
		t.Fatal("expected .TGA to be supported")
	}

	buf, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := buf.At(0, 0); got != [4]float64{1, 1, 1, 1} {
		t.Errorf("pixel = %v, want white", got)
	}
}
