package sampling

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// Pipeline generates samples through an external Generator, persists
// them, and reconstructs per-sample images.
type Pipeline struct {
	Generator Generator
	Config    Config
}

// Run drives the generator until Config.NumSamples samples are
// collected, persists them under Config.OutputDir and returns the path
// of the written .npz archive.
func (p *Pipeline) Run() (string, error) {
	cfg := p.Config
	if err := p.validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %s", cfg.OutputDir)
	}

	pbar := progressbar.Default(int64(cfg.NumSamples), "sampling")
	var all []float32
	var height, width, channels int
	collected := 0
	for collected < cfg.NumSamples {
		g, err := p.Generator.SampleBatch(cfg, cfg.BatchSize)
		if err != nil {
			return "", errors.Wrapf(err, "sampling failed after %d samples", collected)
		}
		if g.N == 0 {
			return "", errors.Errorf("generator returned an empty batch after %d of %d samples",
				collected, cfg.NumSamples)
		}
		if height == 0 {
			height, width, channels = g.Height, g.Width, g.Channels
		} else if g.Height != height || g.Width != width || g.Channels != channels {
			return "", errors.Errorf("generator changed sample shape from %dx%dx%d to %dx%dx%d",
				height, width, channels, g.Height, g.Width, g.Channels)
		}
		all = append(all, g.Data...)
		collected += g.N
		_ = pbar.Add(g.N)
	}
	_ = pbar.Finish()

	// The last batch may overshoot; keep exactly NumSamples.
	all = all[:cfg.NumSamples*height*width*channels]
	if cfg.To255 {
		for i, v := range all {
			all[i] = clamp((v+1)*127.5, 0, 255)
		}
	}

	grid := &Grid{Data: all, N: cfg.NumSamples, Height: height, Width: width, Channels: channels}
	path := filepath.Join(cfg.OutputDir, cfg.SamplesFileName(height, width, channels))
	if err := WriteNPZ(path, grid); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Pipeline) validate() error {
	cfg := p.Config
	if p.Generator == nil {
		return errors.Wrap(ErrConfiguration, "no generator installed")
	}
	if cfg.NumSamples <= 0 || cfg.BatchSize <= 0 {
		return errors.Wrapf(ErrConfiguration, "sample count %d and batch size %d must be positive",
			cfg.NumSamples, cfg.BatchSize)
	}
	if cfg.ModelPath == "" {
		return errors.Wrap(ErrConfiguration, "no model path specified")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return errors.Wrapf(ErrConfiguration, "model path %q does not exist", cfg.ModelPath)
	}
	return nil
}

// ExportPNGs reconstructs one PNG per sample from a persisted archive,
// writing sample_1.png .. sample_N.png into a png_samples directory
// next to it. Pixel values are scaled to the archive's own value range,
// the way the original intensity plots rendered them, so archives in
// [-1, 1] and in [0, 255] both export correctly. It returns the
// directory written to.
func ExportPNGs(npzPath string) (string, error) {
	g, err := ReadNPZ(npzPath)
	if err != nil {
		return "", err
	}
	if g.Channels != 1 && g.Channels != 3 {
		return "", errors.Errorf("cannot render %d-channel samples", g.Channels)
	}

	dir := filepath.Join(filepath.Dir(npzPath), "png_samples")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dir)
	}

	lo, hi := valueRange(g.Data)
	for i := 0; i < g.N; i++ {
		img := renderSample(g, i, lo, hi)
		path := filepath.Join(dir, fmt.Sprintf("sample_%d.png", i+1))
		f, err := os.Create(path)
		if err != nil {
			return "", errors.Wrapf(err, "failed to create %s", path)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return "", errors.Wrapf(err, "failed to encode %s", path)
		}
		if err := f.Close(); err != nil {
			return "", errors.Wrapf(err, "failed to close %s", path)
		}
	}
	return dir, nil
}

func renderSample(g *Grid, idx int, lo, hi float32) image.Image {
	data := g.Slice(idx)
	to8 := func(v float32) uint8 {
		if hi <= lo {
			return 0
		}
		return uint8(math.Round(float64((v - lo) / (hi - lo) * 255)))
	}
	if g.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray(x, y, color.Gray{Y: to8(data[y*g.Width+x])})
			}
		}
		return img
	}
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			base := (y*g.Width + x) * 3
			img.SetNRGBA(x, y, color.NRGBA{
				R: to8(data[base+0]),
				G: to8(data[base+1]),
				B: to8(data[base+2]),
				A: 255,
			})
		}
	}
	return img
}

func valueRange(data []float32) (lo, hi float32) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
