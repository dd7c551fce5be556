// Command prepare sweeps a super-resolution image corpus through the
// full dataset pipeline: discovery, labeling, per-sample normalization
// and batching. It reports batch counts and value ranges, which makes
// it a quick sanity check of a corpus before training, and can render
// the first processed sample as a heat map.
package main

import (
	"flag"
	"io"
	"log"
	"math/rand"
	"sync"

	"github.com/averseon/pixelforge/datasets"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	mldatasets "github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/schollz/progressbar/v3"
)

var (
	dataDir       = flag.String("data-dir", "", "root directory of the image corpus (required)")
	batchSize     = flag.Int("batch-size", 16, "samples per batch")
	resolution    = flag.Int("resolution", 64, "high-resolution side length")
	lowResolution = flag.Int("low-resolution", 16, "low-resolution side length")
	channels      = flag.Int("channels", 3, "1 for luminance, 3 for RGB")
	classCond     = flag.Bool("class-cond", false, "derive class labels from filenames")
	numClasses    = flag.Int("num-classes", 0, "expected class count when -class-cond is set")
	deterministic = flag.Bool("deterministic", false, "iterate in index order instead of shuffling")
	crop          = flag.Bool("crop", false, "random-crop instead of resize")
	dropLast      = flag.Bool("drop-last", true, "discard a short final batch")
	workers       = flag.Int("workers", 0, "per-batch fetch parallelism (0 = default)")
	seed          = flag.Int64("seed", 0, "seed for shuffling and cropping (0 = time-based)")
	preview       = flag.String("preview", "", "write the first processed sample as a heat-map PNG")
)

func main() {
	flag.Parse()

	cfg := datasets.Config{
		DataDir:          *dataDir,
		BatchSize:        *batchSize,
		Resolution:       *resolution,
		LowResolution:    *lowResolution,
		Channels:         *channels,
		ClassConditional: *classCond,
		NumClasses:       *numClasses,
		Deterministic:    *deterministic,
		Crop:             *crop,
		DropLast:         *dropLast,
		Workers:          *workers,
	}
	if *seed != 0 {
		cfg.Rand = rand.New(rand.NewSource(*seed))
	}
	if *preview != "" {
		cfg.Visualizer = &onceVisualizer{next: &datasets.HeatmapVisualizer{Path: *preview}}
	}

	loader, err := datasets.Load(cfg)
	if err != nil {
		log.Fatalf("failed to build loader: %v", err)
	}

	// Parallel prefetches batches; the loader itself parallelizes the
	// item fetches within each batch.
	ds := mldatasets.Parallel(loader)

	pbar := progressbar.Default(-1, "batches")
	batches, items := 0, 0
	minV, maxV := float32(1), float32(-1)
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to fetch batch %d: %v", batches, err)
		}
		hr := inputs[0]
		items += hr.Shape().Dimensions[0]
		tensors.ConstFlatData[float32](hr, func(flat []float32) {
			for _, v := range flat {
				minV = min(minV, v)
				maxV = max(maxV, v)
			}
		})
		if *classCond && len(labels) == 0 {
			log.Fatalf("batch %d is missing class labels", batches)
		}
		batches++
		_ = pbar.Add(1)
	}
	_ = pbar.Finish()

	log.Printf("swept %d batches (%d samples) at %dx%d/%dx%d, values in [%.4f, %.4f]",
		batches, items, *resolution, *resolution, *lowResolution, *lowResolution, minV, maxV)
	if *preview != "" {
		log.Printf("preview written to %s", *preview)
	}
}

// onceVisualizer forwards only the first sample to the wrapped
// visualizer, so -preview renders a single image per run.
type onceVisualizer struct {
	next datasets.Visualizer
	once sync.Once
}

func (v *onceVisualizer) Visualize(values []float32, height, width, channels int) error {
	v.once.Do(func() {
		if err := v.next.Visualize(values, height, width, channels); err != nil {
			log.Printf("preview failed: %v", err)
		}
	})
	return nil
}
