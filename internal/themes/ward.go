package themes

import "math"

// merge is one step of an agglomerative clustering run. Clusters 0..n-1 are
// the input points; step s creates cluster n+s.
type merge struct {
	a, b     int
	distance float64
	size     int
}

// wardLinkage clusters vectors with Ward's criterion, updating squared
// Euclidean distances through the Lance-Williams recurrence. It returns the
// n-1 merges in order; reported distances are Euclidean.
func wardLinkage(vectors [][]float64) []merge {
	n := len(vectors)
	if n < 2 {
		return nil
	}
	total := 2*n - 1

	d := make([][]float64, total)
	for i := range d {
		d[i] = make([]float64, total)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sq float64
			for k := range vectors[i] {
				diff := vectors[i][k] - vectors[j][k]
				sq += diff * diff
			}
			d[i][j], d[j][i] = sq, sq
		}
	}

	active := make([]bool, total)
	size := make([]int, total)
	for i := 0; i < n; i++ {
		active[i] = true
		size[i] = 1
	}

	merges := make([]merge, 0, n-1)
	for step := 0; step < n-1; step++ {
		next := n + step
		minDist := math.MaxFloat64
		var minI, minJ int
		for i := 0; i < next; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < next; j++ {
				if active[j] && d[i][j] < minDist {
					minDist, minI, minJ = d[i][j], i, j
				}
			}
		}

		active[minI], active[minJ] = false, false
		active[next] = true
		size[next] = size[minI] + size[minJ]

		ni, nj := float64(size[minI]), float64(size[minJ])
		for k := 0; k < next; k++ {
			if !active[k] {
				continue
			}
			nk := float64(size[k])
			v := ((nk+ni)*d[minI][k] + (nk+nj)*d[minJ][k] - nk*minDist) / (nk + ni + nj)
			d[next][k], d[k][next] = v, v
		}

		merges = append(merges, merge{a: minI, b: minJ, distance: math.Sqrt(minDist), size: size[next]})
	}
	return merges
}

// cutDendrogram labels the n input points by applying every merge whose
// distance is within threshold. Labels are numbered in order of first
// appearance.
func cutDendrogram(merges []merge, n int, threshold float64) []int {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for step, m := range merges {
		if m.distance > threshold {
			continue
		}
		node := n + step
		parent[find(m.a)] = node
		parent[find(m.b)] = node
	}

	labels := make([]int, n)
	ids := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := ids[root]; !ok {
			ids[root] = len(ids)
		}
		labels[i] = ids[root]
	}
	return labels
}
