package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the uploaded bytes are not a decodable image
var ErrDecode = errors.New("failed to decode image")

// Options bound the re-encoded payload. MaxDimension caps both width and
// height; Quality is the JPEG quality used for the re-encode.
type Options struct {
	MaxDimension int
	Quality      int
}

// DefaultOptions keep the request payload small enough for the
// completion service while staying legible to the model.
var DefaultOptions = Options{MaxDimension: 1200, Quality: 70}

// orientation extracts the EXIF orientation tag, defaulting to 1 when
// absent or unreadable.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// reorient applies the EXIF orientation to the decoded image
func reorient(img image.Image, orient int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch orient {
	case 3: // rotate 180
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(width-1-x, height-1-y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	case 6: // rotate 90 clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(height-1-y, x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	case 8: // rotate 90 counter-clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(y, width-1-x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	default:
		return img
	}
}

// Compress decodes an uploaded screenshot, corrects its orientation,
// downscales it so neither dimension exceeds opts.MaxDimension while
// preserving aspect ratio, and re-encodes it as JPEG. The transform is
// one-way and lossy; the output is always JPEG regardless of the input
// format.
func Compress(imageData []byte, opts Options) ([]byte, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultOptions.MaxDimension
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultOptions.Quality
	}

	orient := orientation(imageData)

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if orient != 1 {
		img = reorient(img, orient)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	newWidth, newHeight := width, height
	if width > opts.MaxDimension || height > opts.MaxDimension {
		scaleX := float64(opts.MaxDimension) / float64(width)
		scaleY := float64(opts.MaxDimension) / float64(height)
		scale := scaleX
		if scaleY < scaleX {
			scale = scaleY
		}
		newWidth = int(float64(width) * scale)
		newHeight = int(float64(height) * scale)
		if newWidth > opts.MaxDimension {
			newWidth = opts.MaxDimension
		}
		if newHeight > opts.MaxDimension {
			newHeight = opts.MaxDimension
		}
	}

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode compressed image: %w", err)
	}

	log.Debug().
		Int("originalBytes", len(imageData)).
		Int("compressedBytes", buf.Len()).
		Int("width", newWidth).
		Int("height", newHeight).
		Int("orientation", orient).
		Msg("image compressed")

	return buf.Bytes(), nil
}
