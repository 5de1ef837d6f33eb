package labels

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YoctoVision/labelT/logging"
)

// Annotation is one YOLO-format bounding box: class id plus center,
// width and height normalized to [0,1] relative to the image dimensions.
type Annotation struct {
	Class   int
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// InRange reports whether the annotation satisfies the format invariant:
// all coordinates in [0,1] and class id inside [0,nc)
func (a Annotation) InRange(nc int) bool {
	if a.Class < 0 || a.Class >= nc {
		return false
	}
	for _, v := range []float64{a.XCenter, a.YCenter, a.Width, a.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// PathFor returns the sidecar label file path for an image: same base
// name, .txt extension
func PathFor(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".txt"
}

// Exists reports whether the image already has a label file. The
// auto-label pass uses this to never touch existing manual work.
func Exists(imagePath string) bool {
	_, err := os.Stat(PathFor(imagePath))
	return err == nil
}

// Read parses a label file into annotations. A missing file yields an
// empty set with no error. Malformed lines (wrong field count,
// non-numeric value, class id outside [0,nc), coordinate outside [0,1])
// are skipped and counted; the rest of the file is still honored.
func Read(path string, nc int) ([]Annotation, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("cannot read label file %s: %v", path, err)
	}
	defer f.Close()

	var annotations []Annotation
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ann, err := parseLine(line, nc)
		if err != nil {
			skipped++
			logging.LogWarning("skipping %s line %d: %v", path, lineNo, err)
			continue
		}
		annotations = append(annotations, ann)
	}
	if err := scanner.Err(); err != nil {
		return annotations, skipped, fmt.Errorf("cannot read label file %s: %v", path, err)
	}

	return annotations, skipped, nil
}

// parseLine parses one "class x y w h" annotation line
func parseLine(line string, nc int) (Annotation, error) {
	parts := strings.Fields(line)
	if len(parts) != 5 {
		return Annotation{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	class, err := strconv.Atoi(parts[0])
	if err != nil {
		return Annotation{}, fmt.Errorf("invalid class id %q", parts[0])
	}

	coords := make([]float64, 4)
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Annotation{}, fmt.Errorf("invalid coordinate %q", p)
		}
		coords[i] = v
	}

	ann := Annotation{
		Class:   class,
		XCenter: coords[0],
		YCenter: coords[1],
		Width:   coords[2],
		Height:  coords[3],
	}
	if !ann.InRange(nc) {
		return Annotation{}, fmt.Errorf("annotation out of range (class %d, nc %d)", class, nc)
	}

	return ann, nil
}

// Write serializes annotations one per line, overwriting the destination
// atomically: the content goes to a temp file in the same directory which
// is then renamed over the target, so an interrupted write leaves either
// the old file or the complete new one. Writing an empty set removes the
// label file.
func Write(path string, annotations []Annotation) error {
	if len(annotations) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cannot remove label file %s: %v", path, err)
		}
		return nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("cannot create temp label file in %s: %v", dir, err)
	}
	tmpPath := tmp.Name()

	// CreateTemp uses 0600; the rename carries the mode over, so widen it
	// to match a normally created label file
	if err := os.Chmod(tmpPath, 0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cannot create temp label file in %s: %v", dir, err)
	}

	w := bufio.NewWriter(tmp)
	for _, a := range annotations {
		_, err = fmt.Fprintf(w, "%d %s %s %s %s\n",
			a.Class,
			formatCoord(a.XCenter),
			formatCoord(a.YCenter),
			formatCoord(a.Width),
			formatCoord(a.Height),
		)
		if err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot write label file %s: %v", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot replace label file %s: %v", path, err)
	}

	return nil
}

// formatCoord renders a coordinate with enough precision to round-trip
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FromPixels converts a pixel-space center-form box into a normalized
// annotation, clamped to the image bounds. Confidence filtering happens
// before this step; confidence itself is never persisted.
func FromPixels(class int, xCenter, yCenter, width, height float64, imgWidth, imgHeight int) Annotation {
	return Annotation{
		Class:   class,
		XCenter: clamp01(xCenter / float64(imgWidth)),
		YCenter: clamp01(yCenter / float64(imgHeight)),
		Width:   clamp01(width / float64(imgWidth)),
		Height:  clamp01(height / float64(imgHeight)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
