// Package sampling drives inference-time sample generation and export.
//
// The diffusion model itself is an external collaborator behind the
// Generator interface; this package batches the calls to it, persists
// the raw samples as a NumPy .npz archive and reconstructs one PNG per
// sample from the archive.
package sampling

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfiguration marks invalid or missing sampling inputs, such as an
// unset or non-existent model path. Wrapped errors can be classified
// with errors.Is.
var ErrConfiguration = errors.New("invalid sampling configuration")

// Grid holds a batch of generated samples in (sample, height, width,
// channel) layout, the layout diffusion samplers emit, flattened
// C-order into Data.
type Grid struct {
	Data []float32

	N        int
	Height   int
	Width    int
	Channels int
}

// Slice returns the flat pixel data of sample idx.
func (g *Grid) Slice(idx int) []float32 {
	stride := g.Height * g.Width * g.Channels
	return g.Data[idx*stride : (idx+1)*stride]
}

// Generator produces raw samples from a trained diffusion model. A call
// asks for n samples of the class selected in cfg; the returned grid
// may be shorter than n only if the generator is exhausted.
type Generator interface {
	SampleBatch(cfg Config, n int) (*Grid, error)
}

// Config carries the knobs of a sampling run. The denoising fields
// (ClipDenoised, MaxClipValue, UseDDIM, DiffusionSteps) are passed
// through to the generator untouched.
type Config struct {
	// ModelPath locates the trained model checkpoint. It must exist.
	ModelPath string

	ClipDenoised   bool
	MaxClipValue   float64
	NumSamples     int
	Class          int
	BatchSize      int
	UseDDIM        bool
	DiffusionSteps int

	// OutputDir receives the samples archive and the png_samples
	// subdirectory.
	OutputDir string

	// To255 remaps persisted samples from [-1, 1] to [0, 255].
	To255 bool
}

// SamplesFileName is the canonical archive name for a run of this
// configuration, e.g. "samples_16x32x32x1.npz".
func (c Config) SamplesFileName(height, width, channels int) string {
	return fmt.Sprintf("samples_%dx%dx%dx%d.npz", c.NumSamples, height, width, channels)
}
