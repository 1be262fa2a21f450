package match

import (
	"cmp"
	"slices"
	"strings"

	"metricindex/internal/models"
)

// Matcher is the interface for duplicate detection strategies
type Matcher interface {
	FindGroups(images []*models.ImageInfo) []*models.DuplicateGroup
	Threshold() int
}

// buildGroups turns index clusters into DuplicateGroups, dropping singletons.
// Group IDs follow cluster order, starting at 1.
func buildGroups(images []*models.ImageInfo, clusters [][]int) []*models.DuplicateGroup {
	var groups []*models.DuplicateGroup
	groupID := 1

	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}

		imgs := make([]*models.ImageInfo, len(cluster))
		for i, idx := range cluster {
			imgs[i] = images[idx]
		}

		group := &models.DuplicateGroup{
			ID:     groupID,
			Images: imgs,
		}
		selectKeepAndRemove(group)
		groups = append(groups, group)
		groupID++
	}

	return groups
}

// selectKeepAndRemove keeps the best image of the group: highest score, then
// largest file, then newest, then first path.
func selectKeepAndRemove(group *models.DuplicateGroup) {
	if len(group.Images) == 0 {
		return
	}

	ranked := slices.Clone(group.Images)
	slices.SortFunc(ranked, func(a, b *models.ImageInfo) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.FileSize, a.FileSize); c != 0 {
			return c
		}
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})

	group.Keep = ranked[0]
	group.Remove = ranked[1:]

	for _, img := range group.Images {
		img.GroupID = group.ID
	}
}
