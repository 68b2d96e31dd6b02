// Package imgutil implements the image transforms behind /compress,
// /convert, /resize, /watermark, and /qr. All operations read and write
// staged files in place, leaving lifecycle management to the caller.
package imgutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// compressQuality is the JPEG quality used by /compress.
const compressQuality = 60

// Formats lists the conversion targets the imaging stack can encode.
// WebP is decode-only in Go's image ecosystem, so it is not offered.
var Formats = []string{"jpg", "png", "gif", "bmp", "tif"}

// SupportedFormat reports whether ext (without dot) is a valid /convert target.
func SupportedFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range Formats {
		if ext == f {
			return true
		}
	}
	return false
}

// Compress re-encodes the image as a quality-60 JPEG.
func Compress(inPath, outPath string) error {
	img, err := imaging.Open(inPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("imgutil: open %s: %w", inPath, err)
	}
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(compressQuality)); err != nil {
		return fmt.Errorf("imgutil: save %s: %w", outPath, err)
	}
	return nil
}

// Convert re-encodes the image in the format implied by outPath's
// extension, which must be one of Formats.
func Convert(inPath, outPath string) error {
	if !SupportedFormat(filepath.Ext(outPath)) {
		return fmt.Errorf("imgutil: unsupported format %q (use %s)",
			strings.TrimPrefix(filepath.Ext(outPath), "."), strings.Join(Formats, ", "))
	}
	img, err := imaging.Open(inPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("imgutil: open %s: %w", inPath, err)
	}
	if err := imaging.Save(img, outPath); err != nil {
		return fmt.Errorf("imgutil: save %s: %w", outPath, err)
	}
	return nil
}

// Resize scales the image to exactly width x height using Lanczos
// resampling.
func Resize(inPath, outPath string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("imgutil: width and height must be positive, got %dx%d", width, height)
	}
	img, err := imaging.Open(inPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("imgutil: open %s: %w", inPath, err)
	}
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	if err := imaging.Save(resized, outPath); err != nil {
		return fmt.Errorf("imgutil: save %s: %w", outPath, err)
	}
	return nil
}

// Watermark draws text centered over the image, white at half opacity,
// sized relative to the smaller dimension.
func Watermark(inPath, outPath, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("imgutil: watermark text is required")
	}
	img, err := imaging.Open(inPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("imgutil: open %s: %w", inPath, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	size := float64(min(w, h)) / 20
	if size < 8 {
		size = 8
	}

	face, err := watermarkFace(size)
	if err != nil {
		return fmt.Errorf("imgutil: load font: %w", err)
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)
	dc.SetRGBA(1, 1, 1, 0.5)
	dc.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.5)

	if err := imaging.Save(dc.Image(), outPath); err != nil {
		return fmt.Errorf("imgutil: save %s: %w", outPath, err)
	}
	return nil
}

// watermarkFace builds a Go Regular font face at the given point size.
func watermarkFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// QRCode renders text as a 256px PNG QR code.
func QRCode(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("imgutil: qr content is required")
	}
	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("imgutil: encode qr: %w", err)
	}
	return png, nil
}
