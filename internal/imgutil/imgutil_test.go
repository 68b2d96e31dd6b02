package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeTestImage writes a solid-color PNG of the given size.
func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 160, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestSupportedFormat(t *testing.T) {
	for _, ok := range []string{"jpg", "PNG", ".gif", "tif"} {
		if !SupportedFormat(ok) {
			t.Errorf("SupportedFormat(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"webp", "pdf", ""} {
		if SupportedFormat(bad) {
			t.Errorf("SupportedFormat(%q) = true, want false", bad)
		}
	}
}

func TestCompress_ProducesSmallerJPEG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.jpg")
	writeTestImage(t, in, 200, 100)

	if err := Compress(in, out); err != nil {
		t.Fatalf("compress: %v", err)
	}
	img := decode(t, out)
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("compressed bounds = %v", img.Bounds())
	}
}

func TestConvert_PNGToGIF(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.gif")
	writeTestImage(t, in, 40, 40)

	if err := Convert(in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestConvert_RejectsWebP(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeTestImage(t, in, 10, 10)

	if err := Convert(in, filepath.Join(dir, "out.webp")); err == nil {
		t.Fatal("expected error for webp target")
	}
}

func TestResize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writeTestImage(t, in, 100, 100)

	if err := Resize(in, out, 25, 50); err != nil {
		t.Fatalf("resize: %v", err)
	}
	img := decode(t, out)
	if img.Bounds().Dx() != 25 || img.Bounds().Dy() != 50 {
		t.Errorf("resized bounds = %v, want 25x50", img.Bounds())
	}
}

func TestResize_RejectsNonPositive(t *testing.T) {
	if err := Resize("x.png", "y.png", 0, 50); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestWatermark_ChangesPixels(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writeTestImage(t, in, 120, 120)

	if err := Watermark(in, out, "valet"); err != nil {
		t.Fatalf("watermark: %v", err)
	}

	base := decode(t, in)
	marked := decode(t, out)
	changed := false
	b := marked.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !changed; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if marked.At(x, y) != base.At(x, y) {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("watermark left the image unchanged")
	}
}

func TestWatermark_EmptyText(t *testing.T) {
	if err := Watermark("x.png", "y.png", "  "); err == nil {
		t.Fatal("expected error for empty watermark text")
	}
}

func TestQRCode(t *testing.T) {
	data, err := QRCode("https://example.com")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode qr png: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("qr size = %d, want 256", img.Bounds().Dx())
	}
}

func TestQRCode_Empty(t *testing.T) {
	if _, err := QRCode(" "); err == nil {
		t.Fatal("expected error for empty qr content")
	}
}
