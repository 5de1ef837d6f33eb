package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// datasetFormats are the image extensions considered part of a dataset
var datasetFormats = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether the path looks like a dataset image
func IsImageFile(path string) bool {
	return datasetFormats[strings.ToLower(filepath.Ext(path))]
}

// LoadImage loads an image in grayscale for hashing
func LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return img, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// LoadImageColor loads an image with its color channels for inference
func LoadImageColor(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}
