// Package montage renders one contact sheet per cluster so duplicates can
// be reviewed at a glance without a GUI.
package montage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	// Sheet thumbnails are decoded with the pure-Go codecs
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"

	"github.com/YoctoVision/labelT/cluster"
	"github.com/YoctoVision/labelT/logging"
)

// DefaultThumbSize is the default thumbnail edge length in pixels
const DefaultThumbSize = 160

// WriteSheets writes one JPEG contact sheet per cluster into dir and
// returns the number of sheets written. Members that cannot be decoded
// are reported and left out of their sheet; a cluster with no decodable
// member produces no sheet.
func WriteSheets(clusters []cluster.Cluster, dir string, thumbSize int) (int, error) {
	if thumbSize <= 0 {
		thumbSize = DefaultThumbSize
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("cannot create sheet directory %s: %v", dir, err)
	}

	written := 0
	for i, c := range clusters {
		sheet := buildSheet(c, thumbSize)
		if sheet == nil {
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("cluster_%03d.jpg", i+1))
		if err := writeJPEG(path, sheet); err != nil {
			logging.LogError("cannot write contact sheet %s: %v", path, err)
			continue
		}
		written++
	}

	return written, nil
}

// buildSheet composes the thumbnails of one cluster into a square-ish grid
func buildSheet(c cluster.Cluster, thumbSize int) image.Image {
	var thumbs []image.Image
	for _, member := range c.Members {
		img, err := loadThumb(member.Path, thumbSize)
		if err != nil {
			logging.LogWarning("cannot render thumbnail for %s: %v", member.Path, err)
			continue
		}
		thumbs = append(thumbs, img)
	}
	if len(thumbs) == 0 {
		return nil
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(thumbs)))))
	rows := (len(thumbs) + cols - 1) / cols

	canvas := image.NewRGBA(image.Rect(0, 0, cols*thumbSize, rows*thumbSize))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	for i, thumb := range thumbs {
		cellX := (i % cols) * thumbSize
		cellY := (i / cols) * thumbSize

		// Center the thumbnail inside its cell
		b := thumb.Bounds()
		offset := image.Pt(
			cellX+(thumbSize-b.Dx())/2,
			cellY+(thumbSize-b.Dy())/2,
		)
		draw.Draw(canvas, b.Add(offset.Sub(b.Min)), thumb, b.Min, draw.Over)
	}

	return canvas
}

// loadThumb decodes an image and scales it down to fit the thumbnail cell
func loadThumb(path string, thumbSize int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	return resize.Thumbnail(uint(thumbSize), uint(thumbSize), img, resize.Bilinear), nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
