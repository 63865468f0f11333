package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DownscaleImage reads an uploaded image and re-encodes it so that neither
// side exceeds maxDim, keeping the aspect ratio. Images already within bounds
// and GIFs (which may be animated) are returned unchanged.
func DownscaleImage(r io.Reader, filename string, maxDim uint) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".gif" || maxDim == 0 {
		return raw, nil
	}

	img, err := decodeImage(bytes.NewReader(raw), ext)
	if err != nil {
		return nil, err
	}

	dims := Dimensions(img)
	if uint(dims.Width) <= maxDim && uint(dims.Height) <= maxDim {
		return raw, nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := EncodeImage(resized, strings.TrimPrefix(ext, "."), &buf, 85); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Dimensions(img image.Image) ImageDimensions {
	b := img.Bounds()
	return ImageDimensions{Width: b.Dx(), Height: b.Dy()}
}

func decodeImage(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode jpeg: %w", err)
		}
		return img, nil
	case ".png":
		img, err := png.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode png: %w", err)
		}
		return img, nil
	default:
		return nil, ErrUnsupportedImage
	}
}

func EncodeImage(img image.Image, format string, writer io.Writer, quality int) error {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(writer, img)
	default:
		return ErrUnsupportedImage
	}
}
