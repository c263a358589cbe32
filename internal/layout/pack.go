package layout

// splitClusters cuts the sorted items into maximal runs of transitively
// overlapping events. The returned slices share items' backing array.
func splitClusters(items []item) [][]item {
	var clusters [][]item
	begin := 0
	clusterEnd := -1

	for i, it := range items {
		if it.start >= clusterEnd {
			if i > begin {
				clusters = append(clusters, items[begin:i])
			}
			begin = i
			clusterEnd = it.end
			continue
		}
		if it.end > clusterEnd {
			clusterEnd = it.end
		}
	}
	if len(items) > begin {
		clusters = append(clusters, items[begin:])
	}
	return clusters
}

// assignColumns places each event of a cluster in the first column whose
// last event has ended, opening a new column when none is free. For
// start-sorted intervals this uses the minimum possible number of
// columns, which it returns.
func assignColumns(cluster []item) int {
	var columnEnds []int

	for i := range cluster {
		placed := false
		for c, end := range columnEnds {
			if end <= cluster[i].start {
				columnEnds[c] = cluster[i].end
				cluster[i].column = c
				placed = true
				break
			}
		}
		if !placed {
			columnEnds = append(columnEnds, cluster[i].end)
			cluster[i].column = len(columnEnds) - 1
		}
	}
	return len(columnEnds)
}

// expandSpan counts how many columns it can cover, starting at its own
// and growing right until a column holds an overlapping event.
func expandSpan(cluster []item, it item, numColumns int) int {
	span := 1
	for c := it.column + 1; c < numColumns; c++ {
		for _, other := range cluster {
			if other.column == c && other.overlaps(it) {
				return span
			}
		}
		span++
	}
	return span
}
