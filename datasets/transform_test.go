package datasets

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// writePNG writes a w x h test image whose pixel values are a known
// function of the coordinates, so tests can predict transform output.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, testPixel(x, y))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func testPixel(x, y int) color.NRGBA {
	return color.NRGBA{
		R: uint8((x * 29) % 256),
		G: uint8((y * 53) % 256),
		B: uint8(((x + y) * 17) % 256),
		A: 255,
	}
}

func TestTransformResizeShapeAndRange(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "wide_0.png")
	writePNG(t, path, 100, 80)

	tr := &Transform{Resolution: 32, LowResolution: 8, Channels: 3}
	s, err := tr.Apply(path)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(s.Image) != 3*32*32 {
		t.Fatalf("unexpected image buffer length %d", len(s.Image))
	}
	if len(s.LowRes) != 3*8*8 {
		t.Fatalf("unexpected low-res buffer length %d", len(s.LowRes))
	}
	if s.Resolution != 32 || s.LowResolution != 8 || s.Channels != 3 {
		t.Fatalf("unexpected sample dims: %+v", s)
	}
	for i, v := range s.Image {
		if v < -1 || v > 1 {
			t.Fatalf("image value %f at %d outside [-1, 1]", v, i)
		}
	}
	for i, v := range s.LowRes {
		if v < -1 || v > 1 {
			t.Fatalf("low-res value %f at %d outside [-1, 1]", v, i)
		}
	}
}

func TestTransformResizeUpscalesSmallImages(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "small_0.png")
	writePNG(t, path, 20, 16)

	tr := &Transform{Resolution: 32, LowResolution: 8, Channels: 3}
	s, err := tr.Apply(path)
	if err != nil {
		t.Fatalf("Apply failed on below-resolution image: %v", err)
	}
	if len(s.Image) != 3*32*32 {
		t.Fatalf("unexpected image buffer length %d", len(s.Image))
	}
}

func TestTransformLowResIndependentOfResolution(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "img_0.png")
	writePNG(t, path, 64, 64)

	tr := &Transform{Resolution: 48, LowResolution: 5, Channels: 1}
	s, err := tr.Apply(path)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(s.LowRes) != 5*5 {
		t.Fatalf("unexpected low-res buffer length %d, want 25", len(s.LowRes))
	}
}

func TestTransformCropTooSmall(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "tiny_0.png")
	writePNG(t, path, 16, 40)

	tr := &Transform{Resolution: 32, LowResolution: 8, Channels: 3, Crop: true}
	if _, err := tr.Apply(path); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for undersized crop, got %v", err)
	}
}

// TestTransformCropExactSize covers crop on an image exactly the target
// resolution: the only valid offset is zero, so output values, layout
// and normalization can be checked pixel by pixel.
func TestTransformCropExactSize(t *testing.T) {
	const res = 8
	tmp := t.TempDir()
	path := filepath.Join(tmp, "exact_0.png")
	writePNG(t, path, res, res)

	tr := &Transform{
		Resolution:    res,
		LowResolution: 4,
		Channels:      3,
		Crop:          true,
		Rand:          rand.New(rand.NewSource(7)),
	}
	s, err := tr.Apply(path)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			px := testPixel(x, y)
			want := [3]uint8{px.R, px.G, px.B}
			for c := 0; c < 3; c++ {
				got := s.Image[(c*res+y)*res+x]
				if want := float32(want[c])/127.5 - 1; got != want {
					t.Fatalf("pixel (%d,%d) channel %d: got %f want %f", x, y, c, got, want)
				}
				// The normalization must be invertible back to the
				// original 8-bit value.
				back := math.Round(float64(got+1) * 127.5)
				if back != float64(want[c]) {
					t.Fatalf("pixel (%d,%d) channel %d: round trip gave %f want %d", x, y, c, back, want[c])
				}
			}
		}
	}
}

func TestTransformGrayAddsChannelAxis(t *testing.T) {
	const res = 8
	tmp := t.TempDir()
	path := filepath.Join(tmp, "gray_0.png")
	writePNG(t, path, res, res)

	tr := &Transform{
		Resolution:    res,
		LowResolution: 4,
		Channels:      1,
		Crop:          true,
		Rand:          rand.New(rand.NewSource(7)),
	}
	s, err := tr.Apply(path)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if s.Channels != 1 || len(s.Image) != res*res {
		t.Fatalf("expected a (1, %d, %d) sample, got channels=%d len=%d", res, res, s.Channels, len(s.Image))
	}

	px := testPixel(3, 5)
	l := (299*int(px.R) + 587*int(px.G) + 114*int(px.B)) / 1000
	want := float32(l)/127.5 - 1
	if got := s.Image[5*res+3]; got != want {
		t.Fatalf("luminance at (3,5): got %f want %f", got, want)
	}
}

func TestTransformBadChannelCount(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "img_0.png")
	writePNG(t, path, 8, 8)

	tr := &Transform{Resolution: 8, LowResolution: 4, Channels: 2}
	if _, err := tr.Apply(path); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for 2 channels, got %v", err)
	}
}

func TestAreaDownsampleUniform(t *testing.T) {
	src := make([]float32, 2*6*6)
	for i := range src {
		src[i] = 0.5
	}
	out := areaDownsample(src, 2, 6, 3)
	if len(out) != 2*3*3 {
		t.Fatalf("unexpected output length %d", len(out))
	}
	for i, v := range out {
		if math.Abs(float64(v-0.5)) > 1e-6 {
			t.Fatalf("uniform input produced %f at %d", v, i)
		}
	}
}

func TestAreaDownsampleBlockAverage(t *testing.T) {
	// Integer ratio: every destination cell is the plain mean of a
	// 2x2 source block.
	src := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	out := areaDownsample(src, 1, 4, 2)
	want := []float32{3.5, 5.5, 11.5, 13.5}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("block average at %d: got %f want %f", i, out[i], want[i])
		}
	}
}

func TestAreaDownsampleFractional(t *testing.T) {
	// Non-integer ratio: boundary pixels contribute fractionally.
	// Each 3-pixel row [0, 1, 2] reduces to [1/3, 5/3].
	src := []float32{
		0, 1, 2,
		0, 1, 2,
		0, 1, 2,
	}
	out := areaDownsample(src, 1, 3, 2)
	want := []float32{1.0 / 3, 5.0 / 3, 1.0 / 3, 5.0 / 3}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("fractional average at %d: got %f want %f", i, out[i], want[i])
		}
	}
}
