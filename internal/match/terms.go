package match

import (
	"slices"
	"strings"

	"metricindex/internal/metric"
	"metricindex/internal/models"
)

// TermClusters groups terms that are within maxDistance edits of each other,
// directly or through other terms. Only clusters with two or more terms are
// returned, largest first; terms inside a cluster are sorted.
func TermClusters(terms []string, maxDistance int) []*models.TermCluster {
	g := NewGrouper(maxDistance, metric.Levenshtein)

	var clusters []*models.TermCluster
	for _, indices := range g.Cluster(terms) {
		members := make([]string, 0, len(indices))
		for _, i := range indices {
			members = append(members, terms[i])
		}
		slices.Sort(members)
		members = slices.Compact(members)
		if len(members) < 2 {
			continue
		}
		clusters = append(clusters, &models.TermCluster{
			MaxDistance: g.Threshold(),
			Terms:       members,
		})
	}

	slices.SortStableFunc(clusters, func(a, b *models.TermCluster) int {
		if len(a.Terms) != len(b.Terms) {
			return len(b.Terms) - len(a.Terms)
		}
		return strings.Compare(a.Terms[0], b.Terms[0])
	})
	for i, c := range clusters {
		c.ID = i + 1
	}
	return clusters
}

