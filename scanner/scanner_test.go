package scanner

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoctoVision/labelT/imageprocessor"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 32, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestListImageFilesFiltersAndKeepsWalkOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "sub", "c.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.png"),
	}, files)
}

func TestHashFolderExcludesUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.png"), []byte("not an image"), 0644))

	infos, err := HashFolder(context.Background(), nil, Options{
		FolderPath: dir,
		Algorithm:  imageprocessor.HashAverage,
		MaxWorkers: 2,
	})
	require.NoError(t, err, "a corrupt image is excluded and reported, not fatal")

	require.Len(t, infos, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), infos[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.png"), infos[1].Path)
	assert.Equal(t, infos[0].Hash, infos[1].Hash, "identical pixels hash identically")
	assert.Equal(t, 32, infos[0].Width)
	assert.Equal(t, 32, infos[0].Height)
}

func TestHashFolderHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	infos, err := HashFolder(ctx, nil, Options{
		FolderPath: dir,
		Algorithm:  imageprocessor.HashAverage,
		MaxWorkers: 1,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, infos)
}

func TestHashFolderEmptyFolder(t *testing.T) {
	infos, err := HashFolder(context.Background(), nil, Options{
		FolderPath: t.TempDir(),
		Algorithm:  imageprocessor.HashAverage,
		MaxWorkers: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, infos)
}
