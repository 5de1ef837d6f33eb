package imageprocessor

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"sort"
	"strconv"

	"gocv.io/x/gocv"
)

// HashKind selects the perceptual hash algorithm
type HashKind string

const (
	// HashAverage is the 8x8 mean-threshold hash
	HashAverage HashKind = "ahash"
	// HashPerceptual is the DCT low-frequency hash
	HashPerceptual HashKind = "phash"
	// HashDifference is the horizontal gradient hash
	HashDifference HashKind = "dhash"
)

// ParseHashKind validates a hash algorithm name
func ParseHashKind(s string) (HashKind, error) {
	switch HashKind(s) {
	case HashAverage, HashPerceptual, HashDifference:
		return HashKind(s), nil
	}
	return "", fmt.Errorf("unknown hash algorithm %q (expected ahash, phash or dhash)", s)
}

// Compute calculates the selected 64-bit hash for the image
func Compute(img gocv.Mat, kind HashKind) (uint64, error) {
	switch kind {
	case HashAverage:
		return ComputeAverageHash(img)
	case HashPerceptual:
		return ComputePerceptualHash(img)
	case HashDifference:
		return ComputeDifferenceHash(img)
	}
	return 0, fmt.Errorf("unknown hash algorithm %q", kind)
}

// HammingDistance counts the differing bits between two hashes
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FormatHash renders a hash as a fixed-width hex string for storage
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHash reads a hash back from its hex representation
func ParseHash(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored hash %q: %v", s, err)
	}
	return h, nil
}

// ComputeAverageHash calculates a simple average hash for the image:
// 8x8 grayscale, one bit per pixel against the mean value
func ComputeAverageHash(img gocv.Mat) (uint64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	gray, err := resizeGray(img, 8, 8)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	// Calculate mean pixel value manually
	var sum uint64
	var count int

	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			sum += uint64(gray.GetUCharAt(y, x))
			count++
		}
	}

	var threshold float64
	if count > 0 {
		threshold = float64(sum) / float64(count)
	}

	// Pack one bit per pixel, row-major, MSB first
	var hash uint64
	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			hash <<= 1
			if float64(gray.GetUCharAt(y, x)) >= threshold {
				hash |= 1
			}
		}
	}

	return hash, nil
}

// ComputePerceptualHash computes a DCT-based perceptual hash: 32x32
// grayscale, 8x8 low-frequency block, one bit per coefficient against
// the median
func ComputePerceptualHash(img gocv.Mat) (uint64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	gray, err := resizeGray(img, 32, 32)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	// Convert to float for DCT
	floatImg := gocv.NewMat()
	defer floatImg.Close()
	gray.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	// Apply DCT
	dct := gocv.NewMat()
	gocv.DCT(floatImg, &dct, 0)
	if dct.Empty() {
		// Fall back to custom DCT implementation
		dct.Close()
		dct = applyDCT(floatImg)
	}
	defer dct.Close()

	// Extract 8x8 low frequency components
	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float32, 0, 64)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}

	median := calculateMedian(values)

	var hash uint64
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			hash <<= 1
			if lowFreq.GetFloatAt(y, x) >= median {
				hash |= 1
			}
		}
	}

	return hash, nil
}

// ComputeDifferenceHash computes a gradient hash: 9x8 grayscale, one bit
// per horizontal neighbor comparison
func ComputeDifferenceHash(img gocv.Mat) (uint64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	gray, err := resizeGray(img, 9, 8)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	var hash uint64
	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols()-1; x++ {
			hash <<= 1
			if gray.GetUCharAt(y, x) < gray.GetUCharAt(y, x+1) {
				hash |= 1
			}
		}
	}

	return hash, nil
}

// resizeGray scales the image to the given size and collapses it to a
// single channel
func resizeGray(img gocv.Mat, width, height int) (gocv.Mat, error) {
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(img, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)

	gray := gocv.NewMat()
	if resized.Channels() != 1 {
		gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)
	} else {
		resized.CopyTo(&gray)
	}

	if gray.Empty() {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert image to grayscale")
	}

	return gray, nil
}

// applyDCT applies a Discrete Cosine Transform to an image
// Simplified implementation when OpenCV's DCT is not available
func applyDCT(img gocv.Mat) gocv.Mat {
	rows, cols := img.Rows(), img.Cols()
	result := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)

	for u := 0; u < rows; u++ {
		for v := 0; v < cols; v++ {
			sum := float32(0.0)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					// DCT-II formula
					cosU := float32(math.Cos(float64(math.Pi*float64(u)*(2*float64(i)+1)) / (2 * float64(rows))))
					cosV := float32(math.Cos(float64(math.Pi*float64(v)*(2*float64(j)+1)) / (2 * float64(cols))))
					sum += img.GetFloatAt(i, j) * cosU * cosV
				}
			}

			// Apply scaling factors
			scaleU := float32(1.0)
			if u == 0 {
				scaleU = 1.0 / float32(math.Sqrt(2.0))
			}

			scaleV := float32(1.0)
			if v == 0 {
				scaleV = 1.0 / float32(math.Sqrt(2.0))
			}

			scaleFactor := (2.0 * scaleU * scaleV) / float32(math.Sqrt(float64(rows*cols)))
			result.SetFloatAt(u, v, sum*scaleFactor)
		}
	}

	return result
}

// calculateMedian calculates the median value of a float32 array
func calculateMedian(values []float32) float32 {
	// Make a copy to avoid modifying the original slice
	valuesCopy := make([]float32, len(values))
	copy(valuesCopy, values)

	sort.Slice(valuesCopy, func(i, j int) bool {
		return valuesCopy[i] < valuesCopy[j]
	})

	length := len(valuesCopy)
	if length == 0 {
		return 0
	} else if length%2 == 0 {
		return (valuesCopy[length/2-1] + valuesCopy[length/2]) / 2
	}
	return valuesCopy[length/2]
}
