package search

import "sort"

// DefaultRRFK is the standard smoothing constant for reciprocal rank fusion.
const DefaultRRFK = 60

// FuseRRF merges ranked result lists with reciprocal rank fusion. Each hit
// contributes 1/(k+rank) per list it appears in, with 1-based ranks. Ties
// break by first appearance across the input lists, so fusion of a single
// list preserves its order.
func FuseRRF(lists [][]Hit, k int) []Hit {
	if k <= 0 {
		k = DefaultRRFK
	}

	type fused struct {
		hit   Hit
		score float64
		seen  int
	}

	order := 0
	byChunk := make(map[[16]byte]*fused)
	var keys [][16]byte

	for _, list := range lists {
		for rank, hit := range list {
			key := [16]byte(hit.ChunkID)
			entry, ok := byChunk[key]
			if !ok {
				entry = &fused{hit: hit, seen: order}
				order++
				byChunk[key] = entry
				keys = append(keys, key)
			}
			entry.score += 1.0 / float64(k+rank+1)
		}
	}

	out := make([]Hit, 0, len(keys))
	for _, key := range keys {
		entry := byChunk[key]
		entry.hit.Score = entry.score
		out = append(out, entry.hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a := byChunk[[16]byte(out[i].ChunkID)]
		b := byChunk[[16]byte(out[j].ChunkID)]
		if a.score != b.score {
			return a.score > b.score
		}
		return a.seen < b.seen
	})
	return out
}
