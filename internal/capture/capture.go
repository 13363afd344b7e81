// Package capture turns screenshots into the data URLs sent with a question.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"os"

	"github.com/apex/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	// DefaultMaxDimension keeps the longest side within what vision models accept without tiling
	DefaultMaxDimension = 1568
	// DefaultJPEGQuality is used when a JPEG is re-encoded
	DefaultJPEGQuality = 85
	// MaxFileSize rejects inputs that are clearly not screenshots
	MaxFileSize = 20 << 20
	// DefaultMaxPixels bounds width*height before anything is decoded.
	// A small file can declare dimensions that need gigabytes once decoded.
	DefaultMaxPixels = 64_000_000
)

var (
	// ErrNotImage is returned for input that is not a supported image
	ErrNotImage = errors.New("not a supported image")
	// ErrTooManyPixels is returned when the declared dimensions exceed MaxPixels
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// passthrough lists formats the API accepts as-is
var passthrough = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Options controls how an image is prepared
type Options struct {
	MaxDimension int
	JPEGQuality  int
	MaxPixels    int64
	Logger       log.Interface
}

// DefaultOptions returns the options used by the overlay and the CLI
func DefaultOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		JPEGQuality:  DefaultJPEGQuality,
		MaxPixels:    DefaultMaxPixels,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	if o.Logger == nil {
		o.Logger = log.Log
	}
	return o
}

// Attachment is an encoded image ready to send
type Attachment struct {
	DataURL string
	MIME    string
	Width   int
	Height  int
	Bytes   int
	Resized bool
}

// FromFile reads and prepares an image file
func FromFile(path string, opts Options) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotImage, path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data, opts)
}

// FromBytes prepares raw image bytes. JPEG orientation is applied and images
// larger than MaxDimension are scaled down, keeping the aspect ratio.
func FromBytes(data []byte, opts Options) (*Attachment, error) {
	opts = opts.withDefaults()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNotImage)
	}

	mime := mimetype.Detect(data)
	if !isImage(mime) {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mime.String())
	}
	mimeType := baseType(mime)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d (max %d pixels)", ErrTooManyPixels, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	orientation := 1
	if mimeType == "image/jpeg" {
		orientation = Orientation(data)
	}

	width, height := cfg.Width, cfg.Height
	if orientation >= 5 {
		width, height = height, width
	}

	if passthrough[mimeType] && orientation == 1 && !exceeds(width, height, opts.MaxDimension) {
		return newAttachment(data, mimeType, width, height, false), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if orientation != 1 {
		img = ApplyOrientation(img, orientation)
	}

	resized := false
	if b := img.Bounds(); exceeds(b.Dx(), b.Dy(), opts.MaxDimension) {
		img = Scale(img, opts.MaxDimension)
		resized = true
	}

	var buf bytes.Buffer
	outType := "image/png"
	if mimeType == "image/jpeg" {
		outType = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.JPEGQuality})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	opts.Logger.WithFields(log.Fields{
		"in_bytes":    len(data),
		"out_bytes":   buf.Len(),
		"orientation": orientation,
		"width":       b.Dx(),
		"height":      b.Dy(),
		"resized":     resized,
	}).Debug("image prepared")

	return newAttachment(buf.Bytes(), outType, b.Dx(), b.Dy(), resized), nil
}

func newAttachment(data []byte, mimeType string, width, height int, resized bool) *Attachment {
	return &Attachment{
		DataURL: DataURL(mimeType, data),
		MIME:    mimeType,
		Width:   width,
		Height:  height,
		Bytes:   len(data),
		Resized: resized,
	}
}

// DataURL encodes data as a base64 data URL
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isImage(m *mimetype.MIME) bool {
	for _, t := range []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp"} {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// baseType maps aliases such as image/x-ms-bmp to the canonical type
func baseType(m *mimetype.MIME) string {
	for _, t := range []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp"} {
		if m.Is(t) {
			return t
		}
	}
	return m.String()
}

func exceeds(width, height, limit int) bool {
	return width > limit || height > limit
}

// Scale shrinks img so its longest side is maxDimension
func Scale(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if !exceeds(w, h, maxDimension) {
		return img
	}

	scale := float64(maxDimension) / float64(w)
	if s := float64(maxDimension) / float64(h); s < scale {
		scale = s
	}

	nw := max(1, min(maxDimension, int(float64(w)*scale)))
	nh := max(1, min(maxDimension, int(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Orientation reads the EXIF orientation tag, defaulting to 1
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ApplyOrientation returns img transformed so that it displays upright
// for the given EXIF orientation value.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var to func(x, y int) (int, int)
	dw, dh := w, h

	switch orientation {
	case 2: // mirror horizontal
		to = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3: // rotate 180
		to = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4: // mirror vertical
		to = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5: // transpose
		dw, dh = h, w
		to = func(x, y int) (int, int) { return y, x }
	case 6: // rotate 90 clockwise
		dw, dh = h, w
		to = func(x, y int) (int, int) { return h - 1 - y, x }
	case 7: // transverse
		dw, dh = h, w
		to = func(x, y int) (int, int) { return h - 1 - y, w - 1 - x }
	case 8: // rotate 90 counter-clockwise
		dw, dh = h, w
		to = func(x, y int) (int, int) { return y, w - 1 - x }
	default:
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := to(x, y)
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
