package match

import (
	"metricindex/internal/metric"
	"metricindex/internal/models"
)

// DefaultImageThreshold is the Hamming distance used when none is given
const DefaultImageThreshold = 10

var _ Matcher = (*PerceptualMatcher)(nil)

// PerceptualMatcher finds groups of similar images by pHash Hamming distance
type PerceptualMatcher struct {
	grouper *Grouper[uint64]
}

// NewPerceptualMatcher creates a new PerceptualMatcher. A negative threshold
// selects DefaultImageThreshold.
func NewPerceptualMatcher(threshold int) *PerceptualMatcher {
	if threshold < 0 {
		threshold = DefaultImageThreshold
	}
	return &PerceptualMatcher{grouper: NewGrouper(threshold, metric.Hamming)}
}

// FindGroups groups images whose hashes are within the threshold
func (m *PerceptualMatcher) FindGroups(images []*models.ImageInfo) []*models.DuplicateGroup {
	if len(images) < 2 {
		return nil
	}

	hashes := make([]uint64, len(images))
	for i, img := range images {
		hashes[i] = img.Hash
	}
	return buildGroups(images, m.grouper.Cluster(hashes))
}

// Threshold returns the Hamming distance in use
func (m *PerceptualMatcher) Threshold() int {
	return m.grouper.Threshold()
}
