package assets

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// whiteCutoff is the 16-bit equivalent of an 8-bit channel value of 240.
// A pixel counts as non-white when any channel falls below it.
const whiteCutoff = 240 * 257

// ImageInfo describes a decoded image.
type ImageInfo struct {
	Width    int
	Height   int
	NonWhite float64 // share of pixels below the near-white cutoff
}

// Decode reads image dimensions and the non-white pixel share.
func Decode(data []byte) (ImageInfo, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy()}
	total := info.Width * info.Height
	if total == 0 {
		return info, nil
	}

	nonWhite := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < whiteCutoff || g < whiteCutoff || bl < whiteCutoff {
				nonWhite++
			}
		}
	}
	info.NonWhite = float64(nonWhite) / float64(total)
	return info, nil
}

// Filter rejects images too small or too close to blank to be worth
// describing.
type Filter struct {
	MinDim     int     // Reject images narrower or shorter than this.
	BlankRatio float64 // Reject images whose non-white share is below this.
}

// DefaultFilter returns the standard thresholds.
func DefaultFilter() Filter {
	return Filter{MinDim: 50, BlankRatio: 0.05}
}

// Check returns a non-empty skip reason when the image fails a filter.
func (f Filter) Check(info ImageInfo) string {
	if info.Width < f.MinDim || info.Height < f.MinDim {
		return fmt.Sprintf("image %dx%d below minimum dimension %d", info.Width, info.Height, f.MinDim)
	}
	if info.NonWhite < f.BlankRatio {
		return fmt.Sprintf("image %.1f%% non-white, under blank threshold", info.NonWhite*100)
	}
	return ""
}
