package autolabel

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/YoctoVision/labelT/detector"
	"github.com/YoctoVision/labelT/labels"
)

// fakeDetector returns canned detections without touching a model
type fakeDetector struct {
	detections []detector.Detection
	err        error
	calls      int
}

func (f *fakeDetector) Detect(ctx context.Context, img gocv.Mat) ([]detector.Detection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func (f *fakeDetector) Close() error { return nil }

// writePNG drops a decodable 100x100 image at path
func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func testRegistry(t *testing.T) *labels.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obj.names")
	require.NoError(t, os.WriteFile(path, []byte("person\ncar\n"), 0644))
	reg, err := labels.LoadRegistry(path)
	require.NoError(t, err)
	return reg
}

func TestRunWritesLabelsForUnlabeledImages(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "frame.png")
	writePNG(t, imgPath)

	det := &fakeDetector{detections: []detector.Detection{
		{Class: 1, XCenter: 50, YCenter: 50, Width: 20, Height: 10, Confidence: 0.9},
	}}

	stats, err := Run(context.Background(), det, testRegistry(t), Options{FolderPath: dir, Confidence: 0.25})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Labeled)
	assert.Equal(t, 1, det.calls)

	anns, skipped, err := labels.Read(labels.PathFor(imgPath), 2)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, anns, 1)
	assert.Equal(t, 1, anns[0].Class)
	assert.InDelta(t, 0.5, anns[0].XCenter, 1e-9)
	assert.InDelta(t, 0.5, anns[0].YCenter, 1e-9)
	assert.InDelta(t, 0.2, anns[0].Width, 1e-9)
	assert.InDelta(t, 0.1, anns[0].Height, 1e-9)
}

func TestRunNeverTouchesExistingLabelFiles(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "frame.png")
	writePNG(t, imgPath)

	manual := "0 0.5 0.5 0.25 0.25\n"
	labelPath := labels.PathFor(imgPath)
	require.NoError(t, os.WriteFile(labelPath, []byte(manual), 0644))

	det := &fakeDetector{detections: []detector.Detection{
		{Class: 1, XCenter: 10, YCenter: 10, Width: 5, Height: 5, Confidence: 0.99},
	}}

	stats, err := Run(context.Background(), det, testRegistry(t), Options{FolderPath: dir, Confidence: 0.25})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Labeled)
	assert.Zero(t, det.calls, "inference must not run for already labeled images")

	content, err := os.ReadFile(labelPath)
	require.NoError(t, err)
	assert.Equal(t, manual, string(content), "manual annotations survive the automatic pass untouched")
}

func TestRunDropsLowConfidenceAndUnknownClasses(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "frame.png")
	writePNG(t, imgPath)

	det := &fakeDetector{detections: []detector.Detection{
		{Class: 0, XCenter: 50, YCenter: 50, Width: 20, Height: 20, Confidence: 0.10}, // below threshold
		{Class: 7, XCenter: 50, YCenter: 50, Width: 20, Height: 20, Confidence: 0.95}, // unknown class
	}}

	stats, err := Run(context.Background(), det, testRegistry(t), Options{FolderPath: dir, Confidence: 0.25})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Empty)
	assert.Zero(t, stats.Labeled)
	assert.NoFileExists(t, labels.PathFor(imgPath), "an image with no surviving detections gets no label file")
}

func TestRunContinuesAfterPerImageErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))

	det := &fakeDetector{err: errors.New("inference exploded")}

	stats, err := Run(context.Background(), det, testRegistry(t), Options{FolderPath: dir, Confidence: 0.25})
	require.NoError(t, err, "per-image inference failures must not abort the batch")

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 2, det.calls)
}

func TestRunStopsOnCancellation(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	det := &fakeDetector{}
	_, err := Run(ctx, det, testRegistry(t), Options{FolderPath: dir, Confidence: 0.25})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, det.calls)
}
