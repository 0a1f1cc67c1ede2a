package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFromBytes(t *testing.T) {
	pngData := testPNG(t, 4, 4)

	tests := []struct {
		name     string
		data     []byte
		declared string
		wantMIME string
		wantErr  error
	}{
		{name: "sniffs png", data: pngData, declared: "image/jpeg", wantMIME: "image/png"},
		{name: "empty", data: nil, wantErr: ErrEmpty},
		{name: "text rejected", data: []byte("hello world"), declared: "text/plain", wantErr: ErrNotImage},
		{name: "unknown bytes with image declaration", data: []byte{0x00, 0x01, 0x02}, declared: "image/x-figma", wantErr: ErrNotImage},
		{name: "svg with script", data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`), declared: "image/svg+xml", wantErr: ErrNotImage},
		{name: "png signature without header", data: []byte("\x89PNG\r\n\x1a\nrest"), declared: "image/png", wantErr: ErrNotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromBytes(tt.data, tt.declared)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, img.MIMEType)
		})
	}
}

// pngHeader returns a PNG holding only a signature and an IHDR chunk that
// claims the given size
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 6 // RGBA

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	buf.Write(length[:])
	buf.Write(chunk)
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(chunk))
	buf.Write(crc[:])
	return buf.Bytes()
}

func TestFromBytesRejectsHugeDimensions(t *testing.T) {
	data := pngHeader(12000, 12000)
	require.Less(t, len(data), 100)

	_, err := FromBytes(data, "image/png")
	assert.ErrorIs(t, err, ErrTooManyPixels)

	// just under the cap is fine; only the header is read
	img, err := FromBytes(pngHeader(8000, 5000), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestDownscaleRefusesHugeDimensions(t *testing.T) {
	img := models.ImageBuffer{MIMEType: "image/png", Data: pngHeader(30000, 30000)}
	out, resized, err := Downscale(img, DefaultMaxEdge)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.False(t, resized)
	assert.Equal(t, img, out)
}

func TestFromBytesTooLarge(t *testing.T) {
	_, err := FromBytes(make([]byte, MaxUploadBytes+1), "image/png")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeDataURL(t *testing.T) {
	pngData := testPNG(t, 2, 2)
	b64 := base64.StdEncoding.EncodeToString(pngData)

	img, err := DecodeDataURL("data:image/png;base64," + b64)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, pngData, img.Data)

	bare, err := DecodeDataURL(b64)
	require.NoError(t, err)
	assert.Equal(t, pngData, bare.Data)

	// Round trip through the model's DataURL helper
	again, err := DecodeDataURL(img.DataURL())
	require.NoError(t, err)
	assert.Equal(t, img, again)

	_, err = DecodeDataURL("data:image/png;base64")
	assert.Error(t, err)

	_, err = DecodeDataURL("%%%not-base64%%%")
	assert.Error(t, err)
}

func TestDimensionsAndDownscale(t *testing.T) {
	img := models.ImageBuffer{MIMEType: "image/png", Data: testPNG(t, 400, 100)}

	w, h, err := Dimensions(img)
	require.NoError(t, err)
	assert.Equal(t, 400, w)
	assert.Equal(t, 100, h)

	same, resized, err := Downscale(img, 1000)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Equal(t, img, same)

	small, resized, err := Downscale(img, 200)
	require.NoError(t, err)
	assert.True(t, resized)
	assert.Equal(t, "image/png", small.MIMEType)

	w, h, err = Dimensions(small)
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 50, h)
}

func TestDownscaleRejectsGarbage(t *testing.T) {
	_, _, err := Downscale(models.ImageBuffer{Data: []byte("nope")}, 10)
	assert.Error(t, err)
}

func TestFetcher(t *testing.T) {
	pngData := testPNG(t, 3, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngData)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher()

	img, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, pngData, img.Data)

	_, err = f.Fetch(context.Background(), srv.URL+"/page.html")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "HTTP 404")
}
