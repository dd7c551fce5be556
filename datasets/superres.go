package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
)

// Config describes how to build a super-resolution loader from a
// directory of images. See Load.
type Config struct {
	// DataDir is the root of the image corpus. Required.
	DataDir string

	BatchSize     int
	Resolution    int
	LowResolution int

	// Channels is 3 for RGB or 1 for luminance.
	Channels int

	// ClassConditional attaches a "y" label to every sample, derived
	// from the filename convention. NumClasses then declares the
	// expected number of distinct classes, validated at construction.
	ClassConditional bool
	NumClasses       int

	// Deterministic iterates indices in order; otherwise every
	// traversal uses a fresh random permutation.
	Deterministic bool

	// Crop selects random cropping instead of resize-and-center-crop.
	Crop bool

	// DropLast discards a final batch smaller than BatchSize.
	DropLast bool

	// Workers bounds per-item parallelism within a batch fetch. Zero
	// selects the default of two goroutines, the equivalent of one
	// worker beside the consumer.
	Workers int

	// Rand seeds both shuffling and random crops. When nil a
	// time-seeded source is used.
	Rand *rand.Rand

	// Visualizer is the optional per-sample diagnostic sink.
	Visualizer Visualizer
}

const defaultWorkers = 2

// Load discovers the corpus under cfg.DataDir, derives class labels
// when class conditioning is on, and returns a batching Loader over the
// resulting dataset. It mirrors the lifecycle of the pipeline: catalog
// and labeling run once here, every per-sample transform runs lazily.
func Load(cfg Config) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrConfiguration, cfg.BatchSize)
	}
	if cfg.Resolution <= 0 || cfg.LowResolution <= 0 {
		return nil, fmt.Errorf("%w: resolutions must be positive, got %d and %d",
			ErrConfiguration, cfg.Resolution, cfg.LowResolution)
	}
	if cfg.Channels != 1 && cfg.Channels != 3 {
		return nil, fmt.Errorf("%w: samples must have either 1 or 3 channels, got %d",
			ErrConfiguration, cfg.Channels)
	}

	paths, err := ListImageFiles(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	var classes []int
	if cfg.ClassConditional {
		classes, _, err = DeriveClasses(paths, cfg.NumClasses)
		if err != nil {
			return nil, err
		}
	}

	ds, err := NewSuperresDataset(paths, classes, Transform{
		Resolution:    cfg.Resolution,
		LowResolution: cfg.LowResolution,
		Channels:      cfg.Channels,
		Crop:          cfg.Crop,
		Rand:          cfg.Rand,
		Visualizer:    cfg.Visualizer,
	})
	if err != nil {
		return nil, err
	}
	return NewLoader(ds, cfg), nil
}

// SuperresDataset pairs every discovered image path with its optional
// class label and recomputes the sample on each access. Nothing is
// cached: with random cropping enabled, two reads of the same index may
// legitimately differ.
type SuperresDataset struct {
	paths     []string
	classes   []int // nil when not class-conditional
	transform Transform
}

// NewSuperresDataset builds a dataset over the given paths. classes may
// be nil; when present it must align 1:1 with paths.
func NewSuperresDataset(paths []string, classes []int, transform Transform) (*SuperresDataset, error) {
	if classes != nil && len(classes) != len(paths) {
		return nil, fmt.Errorf("%w: %d class labels for %d paths",
			ErrConfiguration, len(classes), len(paths))
	}
	return &SuperresDataset{paths: paths, classes: classes, transform: transform}, nil
}

// Len returns the number of discovered images.
func (d *SuperresDataset) Len() int { return len(d.paths) }

// At transforms the image at idx into a sample. The label is attached
// iff the dataset was built with class labels.
func (d *SuperresDataset) At(idx int) (*Sample, error) {
	if idx < 0 || idx >= len(d.paths) {
		return nil, fmt.Errorf("%w: index %d not in [0, %d)", ErrIndex, idx, len(d.paths))
	}
	sample, err := d.transform.Apply(d.paths[idx])
	if err != nil {
		return nil, err
	}
	if d.classes != nil {
		sample.Label = d.classes[idx]
		sample.HasLabel = true
	}
	return sample, nil
}

// Batch is a collated group of samples in flat contiguous buffers, the
// leading axis being the batch position.
type Batch struct {
	Images []float32 // (Size, Channels, Resolution, Resolution)
	LowRes []float32 // (Size, Channels, LowResolution, LowResolution)
	Labels []int64   // (Size); nil when the dataset carries no classes

	Size          int
	Channels      int
	Resolution    int
	LowResolution int
}

// Loader produces a lazy, restartable sequence of batches over a
// Dataset. It implements gomlx's train.Dataset: Yield returns batches
// until io.EOF, and Reset starts a new traversal (with a fresh
// permutation in shuffled mode).
type Loader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	dropLast  bool
	workers   int

	mu       sync.Mutex
	rand     *rand.Rand
	indices  []int
	position int
}

var (
	// Static check that Loader is usable by gomlx training loops.
	AssertLoaderIsTrainDataset *Loader
	_                          train.Dataset = AssertLoaderIsTrainDataset
)

// NewLoader wraps dataset with the batching policy of cfg. Only the
// iteration fields of cfg are consulted here (BatchSize, Deterministic,
// DropLast, Workers, Rand); the dataset is taken as-is.
func NewLoader(dataset Dataset, cfg Config) *Loader {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}
	l := &Loader{
		dataset:   dataset,
		batchSize: cfg.BatchSize,
		shuffle:   !cfg.Deterministic,
		dropLast:  cfg.DropLast,
		workers:   workers,
		rand:      rng,
		indices:   indices,
	}
	l.Reset()
	return l
}

// Name implements train.Dataset.
func (l *Loader) Name() string { return "superres" }

// Reset restarts iteration from the beginning. In shuffled mode every
// traversal gets a fresh permutation.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = 0
	if l.shuffle {
		l.rand.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// NextBatch returns the next collated batch, or io.EOF once the
// traversal is exhausted. A short final batch is either yielded or, if
// DropLast is set, discarded.
func (l *Loader) NextBatch() (*Batch, error) {
	l.mu.Lock()
	remaining := len(l.indices) - l.position
	if remaining <= 0 {
		l.mu.Unlock()
		return nil, io.EOF
	}
	n := min(l.batchSize, remaining)
	if n < l.batchSize && l.dropLast {
		l.position = len(l.indices)
		l.mu.Unlock()
		return nil, io.EOF
	}
	picked := make([]int, n)
	copy(picked, l.indices[l.position:l.position+n])
	l.position += n
	l.mu.Unlock()

	samples, err := l.fetch(picked)
	if err != nil {
		return nil, err
	}
	return collate(samples)
}

// fetch loads the picked samples through a small worker pool. Any item
// failure aborts the whole batch: dropping samples silently would break
// the batch-size invariant downstream.
func (l *Loader) fetch(picked []int) ([]*Sample, error) {
	samples := make([]*Sample, len(picked))
	errs := make([]error, len(picked))
	jobs := make(chan int, len(picked))
	var wg sync.WaitGroup
	for w := 0; w < min(l.workers, len(picked)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				samples[pos], errs[pos] = l.dataset.At(picked[pos])
			}
		}()
	}
	for pos := range picked {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()

	for pos, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to fetch sample %d: %w", picked[pos], err)
		}
	}
	return samples, nil
}

// collate stacks the samples along a new leading batch axis.
func collate(samples []*Sample) (*Batch, error) {
	first := samples[0]
	b := &Batch{
		Images:        make([]float32, len(samples)*len(first.Image)),
		LowRes:        make([]float32, len(samples)*len(first.LowRes)),
		Size:          len(samples),
		Channels:      first.Channels,
		Resolution:    first.Resolution,
		LowResolution: first.LowResolution,
	}
	if first.HasLabel {
		b.Labels = make([]int64, len(samples))
	}
	for i, s := range samples {
		if len(s.Image) != len(first.Image) || len(s.LowRes) != len(first.LowRes) || s.HasLabel != first.HasLabel {
			return nil, fmt.Errorf("%w: sample %d does not match the shape of the batch", ErrValidation, i)
		}
		copy(b.Images[i*len(first.Image):], s.Image)
		copy(b.LowRes[i*len(first.LowRes):], s.LowRes)
		if first.HasLabel {
			b.Labels[i] = int64(s.Label)
		}
	}
	return b, nil
}

// Yield implements train.Dataset. It returns:
//
//   - spec: the Loader itself.
//   - inputs: the high-resolution batch shaped
//     [batch_size, channels, resolution, resolution] and its low-res
//     companion shaped [batch_size, channels, low_res, low_res], both
//     Float32 in [-1, 1].
//   - labels: one Int64 tensor shaped [batch_size] when the dataset is
//     class-conditional, otherwise empty.
func (l *Loader) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	b, err := l.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}

	hr := tensors.FromShape(shapes.Make(dtypes.Float32, b.Size, b.Channels, b.Resolution, b.Resolution))
	tensors.MutableFlatData[float32](hr, func(flat []float32) {
		copy(flat, b.Images)
	})
	low := tensors.FromShape(shapes.Make(dtypes.Float32, b.Size, b.Channels, b.LowResolution, b.LowResolution))
	tensors.MutableFlatData[float32](low, func(flat []float32) {
		copy(flat, b.LowRes)
	})

	inputs = []*tensors.Tensor{hr, low}
	if b.Labels != nil {
		labels = []*tensors.Tensor{tensors.FromValue(b.Labels)}
	}
	return l, inputs, labels, nil
}
