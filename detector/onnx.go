package detector

import (
	"context"
	"image"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ONNXDetector runs a YOLO-style ONNX model through ONNX Runtime. The
// session holds a single input/output tensor pair, so inference is
// serialized with a mutex.
type ONNXDetector struct {
	opts    Options
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	anchors int
	mu      sync.Mutex
	closed  bool
}

// NewONNXDetector loads the model and prepares the inference session
func NewONNXDetector(opts Options) (*ONNXDetector, error) {
	if opts.Classes <= 0 {
		return nil, errors.New("detector needs a positive class count")
	}
	if opts.InputWidth <= 0 || opts.InputHeight <= 0 {
		return nil, errors.New("detector needs a positive input size")
	}

	libPath := opts.LibraryPath
	if libPath == "" {
		libPath = defaultSharedLibPath()
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initializing ORT environment")
		}
	}

	// YOLO heads emit one anchor per cell at strides 8, 16 and 32
	anchors := 0
	for _, stride := range []int{8, 16, 32} {
		anchors += (opts.InputWidth / stride) * (opts.InputHeight / stride)
	}

	inputShape := ort.NewShape(1, 3, int64(opts.InputHeight), int64(opts.InputWidth))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	outputShape := ort.NewShape(1, int64(4+opts.Classes), int64(anchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating ORT session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(4)
	options.SetInterOpNumThreads(2)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrapf(err, "creating ORT session for %s", opts.ModelPath)
	}

	return &ONNXDetector{
		opts:    opts,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		anchors: anchors,
	}, nil
}

// Detect runs inference on the image and returns detections in pixels of
// the source image, after confidence filtering and NMS
func (d *ONNXDetector) Detect(ctx context.Context, img gocv.Mat) ([]Detection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if img.Empty() {
		return nil, errors.New("cannot run inference on empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector is closed")
	}

	if err := d.prepareInput(img); err != nil {
		return nil, err
	}

	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	size := img.Size()
	detections := d.decodeOutput(size[1], size[0])
	detections = applyNMS(detections, d.opts.IoU)

	return detections, nil
}

// prepareInput resizes the image to the model resolution and fills the
// input tensor with CHW float data scaled to [0,1], BGR swapped to RGB
func (d *ONNXDetector) prepareInput(img gocv.Mat) error {
	inputSize := image.Point{X: d.opts.InputWidth, Y: d.opts.InputHeight}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, inputSize, 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0/255.0, inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	blobData, err := blob.DataPtrFloat32()
	if err != nil {
		return errors.Wrap(err, "reading blob data")
	}

	data := d.input.GetData()
	if len(blobData) != len(data) {
		return errors.Errorf("blob size %d does not match input tensor size %d", len(blobData), len(data))
	}
	copy(data, blobData)

	return nil
}

// decodeOutput walks the [1, 4+nc, anchors] output tensor, keeping boxes
// whose best class score clears the confidence threshold. Coordinates come
// out in input pixels and are scaled back to the source image.
func (d *ONNXDetector) decodeOutput(origWidth, origHeight int) []Detection {
	data := d.output.GetData()
	n := d.anchors

	scaleX := float32(origWidth) / float32(d.opts.InputWidth)
	scaleY := float32(origHeight) / float32(d.opts.InputHeight)

	var detections []Detection
	for i := 0; i < n; i++ {
		classID := 0
		maxScore := float32(0)
		for c := 0; c < d.opts.Classes; c++ {
			score := data[(4+c)*n+i]
			if score > maxScore {
				maxScore = score
				classID = c
			}
		}

		if maxScore < d.opts.Confidence {
			continue
		}

		det := Detection{
			Class:      classID,
			XCenter:    data[0*n+i] * scaleX,
			YCenter:    data[1*n+i] * scaleY,
			Width:      data[2*n+i] * scaleX,
			Height:     data[3*n+i] * scaleY,
			Confidence: maxScore,
		}
		if !det.valid(d.opts.Classes) {
			continue
		}

		detections = append(detections, det)
	}

	return detections
}

// applyNMS applies greedy Non-Maximum Suppression to remove overlapping
// detections above the IoU threshold
func applyNMS(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	// Sort by confidence score (descending)
	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	var result []Detection
	used := make([]bool, len(detections))

	for i := 0; i < len(detections); i++ {
		if used[i] {
			continue
		}

		result = append(result, detections[i])
		used[i] = true

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if iou(detections[i], detections[j]) > iouThreshold {
				used[j] = true
			}
		}
	}

	return result
}

// iou computes intersection over union for two center-form boxes
func iou(a, b Detection) float32 {
	ax1, ay1, ax2, ay2 := corners(a)
	bx1, by1, bx2, by2 := corners(b)

	ix1 := maxf(ax1, bx1)
	iy1 := maxf(ay1, by1)
	ix2 := minf(ax2, bx2)
	iy2 := minf(ay2, by2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	intersection := iw * ih
	union := a.Width*a.Height + b.Width*b.Height - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func corners(d Detection) (x1, y1, x2, y2 float32) {
	return d.XCenter - d.Width/2, d.YCenter - d.Height/2,
		d.XCenter + d.Width/2, d.YCenter + d.Height/2
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Close releases the session and tensors
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()

	return nil
}

// defaultSharedLibPath locates the bundled ONNX Runtime library for the
// current platform
func defaultSharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "./third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOOS == "linux" && runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}
