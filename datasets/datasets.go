// Package datasets builds paired high-resolution/low-resolution image
// samples for training conditional super-resolution diffusion models.
//
// The pipeline is assembled from small pieces:
//
//   - ListImageFiles discovers the image corpus under a root directory
//     in a stable order.
//   - DeriveClasses turns the filename convention "<class>_<rest>"
//     into integer labels.
//   - Transform normalizes one image into a [-1, 1] channels-first
//     float tensor and derives its area-downsampled companion.
//   - SuperresDataset binds paths, labels and the transform into an
//     indexable collection. Samples are recomputed on every access, so
//     random cropping stays random; nothing is memoized.
//   - Loader batches the dataset lazily, deterministic or shuffled,
//     and implements gomlx's train.Dataset so it plugs straight into a
//     training loop.
//
// All heavy work happens per indexed access; dataset construction only
// walks the directory tree and derives labels.
package datasets

// Dataset is an ordered, indexable collection of preprocessed samples.
// Implementations must be safe for concurrent At calls: the Loader
// fetches the items of a batch from a worker pool.
type Dataset interface {
	Len() int
	At(idx int) (*Sample, error)
}
