package types

// ImageInfo holds per-image metadata and its perceptual hash
type ImageInfo struct {
	Path       string `json:"path"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
	Algorithm  string `json:"algorithm"`
	Hash       uint64 `json:"hash"`
}
