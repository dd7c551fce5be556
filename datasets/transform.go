package datasets

import (
	"fmt"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Transform converts one source image into a normalized high-resolution
// sample plus its low-resolution companion. Two mutually exclusive
// preprocessing paths are selected by Crop:
//
//   - Crop true: a Resolution x Resolution window is cut verbatim from
//     a uniformly random position. Images smaller than Resolution on
//     either side are rejected.
//   - Crop false (default): the image is repeatedly halved with a box
//     filter while its smaller side is at least twice Resolution, then
//     scaled with a bicubic filter so the smaller side lands exactly on
//     Resolution, and finally center-cropped square.
//
// Output values are float32 in [-1, 1], laid out channels-first.
type Transform struct {
	Resolution    int
	LowResolution int

	// Channels selects the color handling: 3 keeps RGB, 1 converts to
	// luminance with an explicit trailing channel axis.
	Channels int

	Crop bool

	// Rand drives the random crop offsets. When nil, a time-seeded
	// source is installed on first use. Seed it for reproducible crops.
	Rand *rand.Rand

	// Visualizer, when set, receives the normalized pixel grid in
	// (height, width, channels) layout before the axis reorder. It is a
	// diagnostic aid only and never affects the returned sample.
	Visualizer Visualizer

	// mu guards Rand: item fetches run on a worker pool.
	mu sync.Mutex
}

// Sample is one preprocessed item: the high-resolution image and its
// area-downsampled companion, both flat float32 buffers in
// (channels, height, width) order.
type Sample struct {
	Image  []float32 // (Channels, Resolution, Resolution)
	LowRes []float32 // (Channels, LowResolution, LowResolution)

	Resolution    int
	LowResolution int
	Channels      int

	// Label is only meaningful when HasLabel is set, i.e. the sample
	// came from a class-conditional dataset.
	Label    int
	HasLabel bool
}

// Apply reads, normalizes and downsamples the image at path.
func (t *Transform) Apply(path string) (*Sample, error) {
	if t.Channels != 1 && t.Channels != 3 {
		return nil, fmt.Errorf("%w: samples must have either 1 or 3 channels, got %d",
			ErrConfiguration, t.Channels)
	}

	img, err := decodeImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	var square *image.NRGBA
	if t.Crop {
		square, err = t.randomCrop(img)
	} else {
		square, err = t.scaleToResolution(img)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	hwc := t.normalize(square)
	if t.Visualizer != nil {
		// Failures in the diagnostic channel do not affect the sample.
		_ = t.Visualizer.Visualize(hwc, t.Resolution, t.Resolution, t.Channels)
	}

	chw := toChannelsFirst(hwc, t.Resolution, t.Resolution, t.Channels)
	low := areaDownsample(chw, t.Channels, t.Resolution, t.LowResolution)

	return &Sample{
		Image:         chw,
		LowRes:        low,
		Resolution:    t.Resolution,
		LowResolution: t.LowResolution,
		Channels:      t.Channels,
	}, nil
}

// randomCrop extracts a Resolution x Resolution window at a uniformly
// random offset, without resampling. An image exactly Resolution wide
// or tall crops at offset zero.
func (t *Transform) randomCrop(img image.Image) (*image.NRGBA, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < t.Resolution || h < t.Resolution {
		return nil, fmt.Errorf("%w: %dx%d image cannot be cropped to resolution %d",
			ErrValidation, w, h, t.Resolution)
	}
	left, top := t.cropOffsets(w, h)
	rect := image.Rect(left, top, left+t.Resolution, top+t.Resolution)
	return imaging.Crop(img, rect.Add(bounds.Min)), nil
}

func (t *Transform) cropOffsets(w, h int) (left, top int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return t.Rand.Intn(w - t.Resolution + 1), t.Rand.Intn(h - t.Resolution + 1)
}

// scaleToResolution brings the smaller side of the image to exactly
// Resolution and trims the larger side symmetrically. Images whose
// smaller side is below Resolution are upscaled by the same rule.
func (t *Transform) scaleToResolution(img image.Image) (*image.NRGBA, error) {
	res := t.Resolution
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	// Halve in box-filter steps first: one large resample step would
	// introduce aliasing artifacts.
	var out *image.NRGBA
	for min(w, h) >= 2*res {
		w, h = w/2, h/2
		out = imaging.Resize(img, w, h, imaging.Box)
		img = out
	}

	scale := float64(res) / float64(min(w, h))
	w = int(math.Round(float64(w) * scale))
	h = int(math.Round(float64(h) * scale))
	out = imaging.Resize(img, w, h, imaging.CatmullRom)

	if w > res || h > res {
		x := (w - res) / 2
		y := (h - res) / 2
		out = imaging.Crop(out, image.Rect(x, y, x+res, y+res))
	}
	// Guards against off-by-one rounding from the scale step.
	if got := out.Bounds(); got.Dx() != res || got.Dy() != res {
		return nil, fmt.Errorf("%w: image is %dx%d after resizing, want %dx%d",
			ErrValidation, got.Dx(), got.Dy(), res, res)
	}
	return out, nil
}

// normalize maps 8-bit pixel values into [-1, 1] floats, laid out
// (height, width, channels). Single-channel output uses the 299/587/114
// luminance weights, matching PIL's mode "L" conversion.
func (t *Transform) normalize(img *image.NRGBA) []float32 {
	res := t.Resolution
	out := make([]float32, res*res*t.Channels)
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			px := img.NRGBAAt(x, y)
			base := (y*res + x) * t.Channels
			if t.Channels == 3 {
				out[base+0] = float32(px.R)/127.5 - 1
				out[base+1] = float32(px.G)/127.5 - 1
				out[base+2] = float32(px.B)/127.5 - 1
			} else {
				l := (299*int(px.R) + 587*int(px.G) + 114*int(px.B)) / 1000
				out[base] = float32(l)/127.5 - 1
			}
		}
	}
	return out
}

func toChannelsFirst(hwc []float32, height, width, channels int) []float32 {
	out := make([]float32, len(hwc))
	for c := 0; c < channels; c++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out[(c*height+y)*width+x] = hwc[(y*width+x)*channels+c]
			}
		}
	}
	return out
}

// areaDownsample resamples a (channels, size, size) grid down to
// (channels, target, target). Each destination cell averages every
// source pixel it spatially covers, weighting boundary pixels by the
// covered fraction, i.e. the source is treated as a continuous signal.
func areaDownsample(src []float32, channels, size, target int) []float32 {
	spans := areaSpans(size, target)
	out := make([]float32, channels*target*target)
	tmp := make([]float32, size*target)
	for c := 0; c < channels; c++ {
		plane := src[c*size*size : (c+1)*size*size]
		// Reduce the width first, then the height: area averaging is
		// separable.
		for y := 0; y < size; y++ {
			row := plane[y*size : (y+1)*size]
			for i, sp := range spans {
				var acc float32
				for j, w := range sp.weights {
					acc += row[sp.start+j] * w
				}
				tmp[y*target+i] = acc
			}
		}
		for i, sp := range spans {
			for x := 0; x < target; x++ {
				var acc float32
				for j, w := range sp.weights {
					acc += tmp[(sp.start+j)*target+x] * w
				}
				out[(c*target+i)*target+x] = acc
			}
		}
	}
	return out
}

type areaSpan struct {
	start   int
	weights []float32
}

// areaSpans precomputes, for each destination index, which source
// indices contribute and with which normalized weight.
func areaSpans(size, target int) []areaSpan {
	ratio := float64(size) / float64(target)
	spans := make([]areaSpan, target)
	for i := range spans {
		lo := float64(i) * ratio
		hi := float64(i+1) * ratio
		start := int(math.Floor(lo))
		end := int(math.Ceil(hi))
		if end > size {
			end = size
		}
		weights := make([]float32, end-start)
		for j := range weights {
			covered := math.Min(hi, float64(start+j+1)) - math.Max(lo, float64(start+j))
			weights[j] = float32(covered / (hi - lo))
		}
		spans[i] = areaSpan{start: start, weights: weights}
	}
	return spans
}
