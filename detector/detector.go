// Package detector is the model boundary: an opaque capability turning an
// image into pixel-space detections. Normalization and persistence happen
// on the caller side.
package detector

import (
	"context"

	"gocv.io/x/gocv"
)

// Detection is one raw model output box in center form, in pixels of the
// source image. Confidence is used only for caller-side thresholding and
// is never persisted.
type Detection struct {
	Class      int
	XCenter    float32
	YCenter    float32
	Width      float32
	Height     float32
	Confidence float32
}

// Detector runs object detection over a single image. Implementations own
// their model resources; Close releases them.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) ([]Detection, error)
	Close() error
}

// Options fixes the inference parameters at construction time
type Options struct {
	ModelPath   string
	Classes     int
	Confidence  float32
	IoU         float32
	InputWidth  int
	InputHeight int
	// LibraryPath overrides the ONNX Runtime shared library location
	LibraryPath string
}

// valid drops malformed boxes on ingestion: class outside the registry
// range or a degenerate extent
func (d Detection) valid(classes int) bool {
	return d.Class >= 0 && d.Class < classes && d.Width > 0 && d.Height > 0
}
