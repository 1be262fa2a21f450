package models

import "time"

// Match is a dictionary term found by a fuzzy lookup
type Match struct {
	Term     string `json:"term"`
	Distance int    `json:"distance"`
}

// Query is a recorded lookup against the dictionary
type Query struct {
	ID          string    `json:"id"`
	Term        string    `json:"term"`
	MaxDistance int       `json:"max_distance"`
	Results     int       `json:"results"`
	CreatedAt   time.Time `json:"created_at"`
}

// TermCluster is a set of stored terms reachable from each other in steps of
// at most MaxDistance edits
type TermCluster struct {
	ID          int      `json:"id"`
	MaxDistance int      `json:"max_distance"`
	Terms       []string `json:"terms"`
}

// ImageInfo holds metadata and the perceptual hash of an indexed image
type ImageInfo struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Hash     uint64    `json:"hash"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Format   string    `json:"format"`
	FileSize int64     `json:"file_size"`
	ModTime  time.Time `json:"mod_time"`
	HasExif  bool      `json:"has_exif"`
	Score    float64   `json:"score"`
	GroupID  int       `json:"group_id,omitempty"`
}

// DuplicateGroup is a set of images whose hashes lie within the threshold
type DuplicateGroup struct {
	ID     int          `json:"id"`
	Images []*ImageInfo `json:"images"`
	Keep   *ImageInfo   `json:"keep"`   // highest score
	Remove []*ImageInfo `json:"remove"` // everything else
}

// FormatQualityMultiplier returns quality multiplier for image format
func FormatQualityMultiplier(format string) float64 {
	switch format {
	case "png", "tiff", "bmp":
		return 1.2
	case "webp":
		return 1.1
	case "gif":
		return 0.9
	default:
		return 1.0
	}
}

// MetadataMultiplier prefers images that carry EXIF metadata
func MetadataMultiplier(hasExif bool) float64 {
	if hasExif {
		return 1.1
	}
	return 1.0
}
