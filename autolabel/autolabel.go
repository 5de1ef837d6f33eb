// Package autolabel runs a detection model over images that have no label
// file yet and writes YOLO-format annotations for them. Existing label
// files are never touched, so manual work always survives an automatic
// pass.
package autolabel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YoctoVision/labelT/detector"
	"github.com/YoctoVision/labelT/imageprocessor"
	"github.com/YoctoVision/labelT/labels"
	"github.com/YoctoVision/labelT/logging"
	"github.com/YoctoVision/labelT/scanner"
)

// Options defines the options for an auto-label pass
type Options struct {
	FolderPath string
	Confidence float64
	DebugMode  bool
}

// Stats summarizes an auto-label pass
type Stats struct {
	Total   int
	Labeled int
	Skipped int
	Empty   int
	Errors  int
}

// Run labels every candidate image in the folder. Images that already
// have a label file are skipped. Per-image inference or write failures
// are reported and the batch continues; only cancellation stops the pass
// early. Inference is sequential, the model session is the bottleneck.
func Run(ctx context.Context, det detector.Detector, registry *labels.Registry, options Options) (Stats, error) {
	var stats Stats

	files, err := scanner.ListImageFiles(options.FolderPath)
	if err != nil {
		return stats, err
	}
	stats.Total = len(files)

	fmt.Printf("Starting auto-labeling...\nTotal image files to consider: %d\n", len(files))

	startTime := time.Now()

	for i, path := range files {
		// Cooperative cancellation between per-image iterations
		select {
		case <-ctx.Done():
			printSummary(stats, startTime, true)
			return stats, ctx.Err()
		default:
		}

		fmt.Printf("\rAuto-labeling: %d/%d", i+1, len(files))

		// Never overwrite existing manual annotations
		if labels.Exists(path) {
			stats.Skipped++
			if options.DebugMode {
				logging.DebugLog("Skipping already labeled image: %s", path)
			}
			continue
		}

		boxes, err := labelOneImage(ctx, det, registry, path, options)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				printSummary(stats, startTime, true)
				return stats, err
			}
			stats.Errors++
			logging.LogImageProcessed(path, false, err.Error())
			continue
		}

		if boxes == 0 {
			stats.Empty++
			continue
		}

		stats.Labeled++
		logging.LogLabelWritten(path, boxes)
	}

	printSummary(stats, startTime, false)
	return stats, nil
}

// labelOneImage runs detection on one image and writes its label file.
// Returns the number of boxes written; zero boxes writes no file.
func labelOneImage(ctx context.Context, det detector.Detector, registry *labels.Registry, path string, options Options) (int, error) {
	img, err := imageprocessor.LoadImageColor(path)
	if err != nil {
		return 0, err
	}
	defer img.Close()

	detections, err := det.Detect(ctx, img)
	if err != nil {
		return 0, fmt.Errorf("inference failed for %s: %w", path, err)
	}

	width, height := img.Cols(), img.Rows()

	annotations := make([]labels.Annotation, 0, len(detections))
	for _, d := range detections {
		if float64(d.Confidence) < options.Confidence {
			continue
		}
		// Detections outside the class registry are dropped on ingestion
		if !registry.Valid(d.Class) {
			logging.LogWarning("dropping detection with unknown class %d in %s", d.Class, path)
			continue
		}
		annotations = append(annotations, labels.FromPixels(
			d.Class,
			float64(d.XCenter), float64(d.YCenter),
			float64(d.Width), float64(d.Height),
			width, height,
		))
	}

	if len(annotations) == 0 {
		return 0, nil
	}

	if err := labels.Write(labels.PathFor(path), annotations); err != nil {
		return 0, err
	}

	return len(annotations), nil
}

// printSummary displays statistics after the pass completes
func printSummary(stats Stats, startTime time.Time, cancelled bool) {
	elapsed := time.Since(startTime)

	if cancelled {
		fmt.Println("\nAuto-labeling cancelled.")
	} else {
		fmt.Println("\nAuto-labeling complete.")
	}
	fmt.Printf("Labeled %d of %d images in %v.\n", stats.Labeled, stats.Total, elapsed.Round(time.Second))
	fmt.Printf("Skipped (already labeled): %d, no detections: %d\n", stats.Skipped, stats.Empty)

	if stats.Errors > 0 {
		fmt.Printf("Encountered %d errors during auto-labeling.\n", stats.Errors)
		fmt.Println("Check the log file for details.")
	}
}
