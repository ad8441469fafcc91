package cache

// selectFurthest reorders keys so the k keys with the greatest bucket
// distance from playhead occupy keys[:k]. It runs in expected linear time.
func selectFurthest(keys []Key, k, playhead int) {
	if k <= 0 || k >= len(keys) {
		return
	}
	dist := func(i int) int { return absInt(keys[i].Bucket - playhead) }

	lo, hi := 0, len(keys)-1
	for lo < hi {
		// Median of three keeps sorted input from degrading to quadratic.
		mid := lo + (hi-lo)/2
		if dist(mid) > dist(lo) {
			keys[mid], keys[lo] = keys[lo], keys[mid]
		}
		if dist(hi) > dist(lo) {
			keys[hi], keys[lo] = keys[lo], keys[hi]
		}
		if dist(mid) > dist(hi) {
			keys[mid], keys[hi] = keys[hi], keys[mid]
		}
		// keys[hi] now holds the median; partition descending around it.
		pivot := dist(hi)
		store := lo
		for i := lo; i < hi; i++ {
			if dist(i) > pivot {
				keys[i], keys[store] = keys[store], keys[i]
				store++
			}
		}
		keys[store], keys[hi] = keys[hi], keys[store]

		switch {
		case store == k-1, store == k:
			return
		case store < k:
			lo = store + 1
		default:
			hi = store - 1
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
