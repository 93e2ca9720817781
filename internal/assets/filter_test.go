package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func whitePixel(x, y int) color.Color { return color.RGBA{255, 255, 255, 255} }
func darkPixel(x, y int) color.Color  { return color.RGBA{30, 30, 30, 255} }

// halfDark paints the left half dark and the right half white.
func halfDark(x, y int) color.Color {
	if x < 50 {
		return darkPixel(x, y)
	}
	return whitePixel(x, y)
}

func TestDecode_ReportsDimensions(t *testing.T) {
	data := encodePNG(t, 120, 80, whitePixel)
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Width != 120 || info.Height != 80 {
		t.Errorf("expected 120x80, got %dx%d", info.Width, info.Height)
	}
}

func TestDecode_NonWhiteShare(t *testing.T) {
	data := encodePNG(t, 100, 100, halfDark)
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NonWhite < 0.49 || info.NonWhite > 0.51 {
		t.Errorf("expected non-white share near 0.5, got %f", info.NonWhite)
	}
}

func TestDecode_OffWhiteCountsAsWhite(t *testing.T) {
	// 250 is above the 240 cutoff on every channel.
	data := encodePNG(t, 60, 60, func(x, y int) color.Color {
		return color.RGBA{250, 250, 250, 255}
	})
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NonWhite != 0 {
		t.Errorf("expected 0 non-white share, got %f", info.NonWhite)
	}
}

func TestDecode_CutoffBoundary(t *testing.T) {
	// 239 sits just under the cutoff, so every pixel is non-white.
	data := encodePNG(t, 60, 60, func(x, y int) color.Color {
		return color.RGBA{239, 239, 239, 255}
	})
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NonWhite != 1 {
		t.Errorf("expected full non-white share, got %f", info.NonWhite)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("expected error for garbage input, got nil")
	}
}

func TestFilter_RejectsNearBlank(t *testing.T) {
	// 2% dark pixels, under the 5% threshold.
	data := encodePNG(t, 100, 100, func(x, y int) color.Color {
		if y < 2 {
			return darkPixel(x, y)
		}
		return whitePixel(x, y)
	})
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := DefaultFilter()
	reason := f.Check(info)
	if reason == "" {
		t.Fatal("expected a skip reason for a near-blank image")
	}
	if !strings.Contains(reason, "non-white") {
		t.Errorf("expected blank reason, got %q", reason)
	}
}

func TestFilter_RejectsSmallImage(t *testing.T) {
	data := encodePNG(t, 20, 20, darkPixel)
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := DefaultFilter()
	reason := f.Check(info)
	if reason == "" {
		t.Fatal("expected a skip reason for a 20x20 image")
	}
	if !strings.Contains(reason, "minimum dimension") {
		t.Errorf("expected dimension reason, got %q", reason)
	}
}

func TestFilter_KeepsBusyImage(t *testing.T) {
	data := encodePNG(t, 100, 100, halfDark)
	info, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := DefaultFilter()
	if reason := f.Check(info); reason != "" {
		t.Errorf("expected busy image to pass, got reason %q", reason)
	}
}
