// Package images decodes, sniffs and resizes uploaded design screenshots.
package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxUploadBytes caps a single uploaded image
const MaxUploadBytes = 10 * 1024 * 1024

// DefaultMaxEdge is the longest side an image keeps before it is sent to the model
const DefaultMaxEdge = 2048

// MaxPixels caps width*height of anything we are willing to decode
const MaxPixels = 40_000_000

var (
	ErrEmpty         = errors.New("empty image data")
	ErrNotImage      = errors.New("data is not a png, jpeg, gif or webp image")
	ErrTooLarge      = fmt.Errorf("image too large (max %d MB)", MaxUploadBytes/1024/1024)
	ErrTooManyPixels = fmt.Errorf("image dimensions too large (max %d megapixels)", MaxPixels/1_000_000)
)

// rasterTypes are the formats the pipeline can decode and resize
var rasterTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// SniffMIME detects the MIME type from the first bytes of the data
func SniffMIME(data []byte) string {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// FromBytes wraps raw upload bytes into a buffer. The type always comes from
// the bytes; the declared type is only logged. Only raster formats within
// MaxPixels are accepted.
func FromBytes(data []byte, declared string) (models.ImageBuffer, error) {
	if len(data) == 0 {
		return models.ImageBuffer{}, ErrEmpty
	}
	if len(data) > MaxUploadBytes {
		return models.ImageBuffer{}, ErrTooLarge
	}
	mime := SniffMIME(data)
	if !rasterTypes[mime] {
		slog.Debug("Rejected upload", "sniffed", mime, "declared", declared)
		return models.ImageBuffer{}, ErrNotImage
	}
	img := models.ImageBuffer{MIMEType: mime, Data: data}
	if err := checkPixels(img); err != nil {
		return models.ImageBuffer{}, err
	}
	return img, nil
}

// checkPixels reads only the header, so a crafted size is caught before any
// pixel buffer is allocated
func checkPixels(img models.ImageBuffer) error {
	w, h, err := Dimensions(img)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if w <= 0 || h <= 0 {
		return ErrNotImage
	}
	if int64(w)*int64(h) > MaxPixels {
		return ErrTooManyPixels
	}
	return nil
}

// DecodeDataURL accepts either a data: URI or bare base64
func DecodeDataURL(s string) (models.ImageBuffer, error) {
	s = strings.TrimSpace(s)
	var hint string
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return models.ImageBuffer{}, fmt.Errorf("malformed data URL")
		}
		meta := s[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			hint = meta[:semi]
		} else {
			hint = meta
		}
		s = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var urlErr error
		data, urlErr = base64.URLEncoding.DecodeString(s)
		if urlErr != nil {
			return models.ImageBuffer{}, fmt.Errorf("bad base64 image: %w", err)
		}
	}
	return FromBytes(data, hint)
}

// Dimensions returns the pixel size without decoding the whole image
func Dimensions(img models.ImageBuffer) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Downscale shrinks the image so its longest edge is at most maxEdge pixels.
// Images already within bounds, or in a format we cannot re-encode, are
// returned untouched.
func Downscale(img models.ImageBuffer, maxEdge int) (models.ImageBuffer, bool, error) {
	w, h, err := Dimensions(img)
	if err != nil {
		return img, false, fmt.Errorf("failed to read image dimensions: %w", err)
	}
	if int64(w)*int64(h) > MaxPixels {
		return img, false, ErrTooManyPixels
	}
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img, false, nil
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return img, false, fmt.Errorf("failed to decode image: %w", err)
	}

	tw, th := maxEdge, h*maxEdge/w
	if h > w {
		tw, th = w*maxEdge/h, maxEdge
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	mime := "image/png"
	switch format {
	case "jpeg":
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		// gif and webp have no encoder here, png keeps them lossless
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return img, false, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return models.ImageBuffer{MIMEType: mime, Data: buf.Bytes()}, true, nil
}
