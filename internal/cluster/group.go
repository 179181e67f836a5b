package cluster

import "sort"

// Cluster is a topic group of chunks in original order.
type Cluster struct {
	ID     int      `json:"id"`
	Chunks []string `json:"chunks"`
}

// Group collects chunks by label, ordered by cluster ID. Noise chunks are
// dropped. When every chunk is noise, all chunks form a single cluster 0 so
// the caller never loses the transcript.
func Group(chunks []string, labels []int) []Cluster {
	byID := make(map[int][]string)
	for i, c := range chunks {
		if i >= len(labels) || labels[i] == Noise {
			continue
		}
		byID[labels[i]] = append(byID[labels[i]], c)
	}

	if len(byID) == 0 {
		if len(chunks) == 0 {
			return nil
		}
		all := make([]string, len(chunks))
		copy(all, chunks)
		return []Cluster{{ID: 0, Chunks: all}}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Cluster, 0, len(ids))
	for _, id := range ids {
		out = append(out, Cluster{ID: id, Chunks: byID[id]})
	}
	return out
}
