// Command sample exports generated diffusion samples as PNG files.
//
// The diffusion sampler runs as an external collaborator and leaves a
// samples_<N>x<H>x<W>x<C>.npz archive under the output directory for
// the sampled class; this command locates that archive and rebuilds one
// PNG per sample next to it.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/averseon/pixelforge/sampling"
)

var (
	modelPath = flag.String("model", "", "path of the trained model checkpoint (required)")
	outDir    = flag.String("out", "./data/samples", "base output directory")
	class     = flag.Int("class", 1, "class the samples were conditioned on")
)

func main() {
	flag.Parse()

	if *modelPath == "" {
		log.Fatal("the -model flag is required")
	}
	if _, err := os.Stat(*modelPath); err != nil {
		log.Fatalf("model path %q does not exist", *modelPath)
	}

	classDir := filepath.Join(*outDir, strconv.Itoa(*class))
	matches, err := filepath.Glob(filepath.Join(classDir, "samples_*.npz"))
	if err != nil || len(matches) == 0 {
		log.Fatalf("no samples archive found under %s; run the sampler first", classDir)
	}

	dir, err := sampling.ExportPNGs(matches[0])
	if err != nil {
		log.Fatalf("failed to export %s: %v", matches[0], err)
	}
	log.Printf("samples saved as PNG files in %s", dir)
}
