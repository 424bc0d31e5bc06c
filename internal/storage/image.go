package storage

import (
	"bytes"       // Image buffers
	"errors"      // Sentinel errors
	"fmt"         // Error wrapping
	"image"       // Image decoding
	_ "image/gif" // Register GIF decoder
	"image/jpeg"  // JPEG encoder
	_ "image/png" // Register PNG decoder
	"io"          // Upload readers
	"net/http"    // Content sniffing
	"strings"     // MIME prefix check

	"github.com/nfnt/resize" // Image scaling
)

// MaxImageBytes is the largest upload accepted per image
const MaxImageBytes = 5 << 20

// MaxImageWidth is the width stored images are scaled down to
const MaxImageWidth = 1200

var (
	ErrNotImage      = errors.New("file is not an image")
	ErrImageTooLarge = errors.New("image is too large (max 5MB)")
)

// NormalizeImage sniffs, decodes and re-encodes an upload as JPEG,
// scaling it down to maxWidth. Smaller images keep their size.
func NormalizeImage(r io.Reader, maxWidth uint) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1)) // One byte over to detect oversize
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(raw) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if !strings.HasPrefix(http.DetectContentType(raw), "image/") {
		return nil, ErrNotImage
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3) // Height keeps the aspect ratio
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
