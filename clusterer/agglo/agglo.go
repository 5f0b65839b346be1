// Package agglo implements greedy average-linkage agglomerative merging
// over a precomputed similarity matrix.
package agglo

// Similarity is a symmetric pairwise similarity table.
type Similarity interface {
	Len() int
	At(i, j int) float64
}

// Target returns the desired number of clusters for n items:
// n/ratio clamped to [minClusters, maxClusters].
func Target(n int, ratio float64, minClusters, maxClusters int) int {
	target := minClusters
	if ratio > 0 {
		target = int(float64(n) / ratio)
	}
	target = max(target, minClusters)
	target = min(target, maxClusters)
	return max(target, 1)
}

// Merge starts from singleton groups and repeatedly joins the pair of
// groups with the highest average pairwise similarity until at most target
// groups remain or the best average drops below threshold.
//
// Ties go to the first pair in ascending (i, j) order, where i and j are the
// group slots, so the result is fully determined by the matrix. Groups are
// returned in slot order; items keep merge order inside a group.
func Merge(sim Similarity, target int, threshold float64) [][]int {
	n := sim.Len()
	if n == 0 {
		return nil
	}

	groups := make([][]int, n)
	alive := make([]bool, n)
	// sums[i*n+k] - сумма сходств всех пар между группами i и k
	sums := make([]float64, n*n)
	for i := 0; i < n; i++ {
		groups[i] = []int{i}
		alive[i] = true
		for k := 0; k < n; k++ {
			if k != i {
				sums[i*n+k] = sim.At(i, k)
			}
		}
	}

	count := n
	for count > target {
		bi, bj := -1, -1
		best := -1.0
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !alive[j] {
					continue
				}
				avg := sums[i*n+j] / float64(len(groups[i])*len(groups[j]))
				if avg > best {
					best, bi, bj = avg, i, j
				}
			}
		}
		if bi < 0 || best < threshold {
			break
		}

		groups[bi] = append(groups[bi], groups[bj]...)
		groups[bj] = nil
		alive[bj] = false
		for k := 0; k < n; k++ {
			if !alive[k] || k == bi {
				continue
			}
			sums[bi*n+k] += sums[bj*n+k]
			sums[k*n+bi] = sums[bi*n+k]
		}
		count--
	}

	out := make([][]int, 0, count)
	for i := 0; i < n; i++ {
		if alive[i] {
			out = append(out, groups[i])
		}
	}
	return out
}
