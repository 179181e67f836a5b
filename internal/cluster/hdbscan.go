// Package cluster groups embedded text chunks by topic with HDBSCAN.
package cluster

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Noise is the label assigned to points that belong to no cluster.
const Noise = -1

// DefaultMinClusterSize is the smallest group of chunks that forms a topic.
const DefaultMinClusterSize = 2

// ErrDimensionMismatch is returned when points have different lengths.
var ErrDimensionMismatch = errors.New("cluster: points have mismatched dimensions")

// HDBSCAN is a density-based clusterer using euclidean distance and
// excess-of-mass cluster selection. The root of the hierarchy is never
// selected, so data without density structure is reported as noise.
type HDBSCAN struct {
	// MinClusterSize is the smallest number of points in a cluster.
	MinClusterSize int
	// MinSamples sets the neighbourhood size for core distances, counting the
	// point itself. Zero means MinClusterSize.
	MinSamples int
}

// New returns an HDBSCAN with DefaultMinClusterSize.
func New() HDBSCAN {
	return HDBSCAN{MinClusterSize: DefaultMinClusterSize}
}

// linkage is one merge of the single-linkage tree.
type linkage struct {
	left, right int
	distance    float64
	size        int
}

// condensedEdge is one edge of the condensed cluster tree. Children below
// the point count are points, the rest are clusters.
type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit returns one label per point. Cluster labels are dense from 0 and
// Noise marks unclustered points.
func (h HDBSCAN) Fit(points [][]float64) ([]int, error) {
	n := len(points)
	if n == 0 {
		return nil, nil
	}
	for _, p := range points[1:] {
		if len(p) != len(points[0]) {
			return nil, ErrDimensionMismatch
		}
	}

	mcs := max(h.MinClusterSize, 2)
	labels := make([]int, n)
	if n < mcs {
		for i := range labels {
			labels[i] = Noise
		}
		return labels, nil
	}
	minSamples := h.MinSamples
	if minSamples <= 0 {
		minSamples = mcs
	}
	minSamples = min(minSamples, n)

	dist := pairwiseDistances(points)
	core := coreDistances(dist, minSamples)
	mst := primMST(dist, core)
	tree := singleLinkage(n, mst)
	condensed := condenseTree(n, tree, mcs)
	selected := selectClusters(n, condensed)
	return assignLabels(n, condensed, selected), nil
}

func pairwiseDistances(points [][]float64) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(points[i], points[j], 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// coreDistances returns the distance of each point to its k-th nearest
// neighbour, the point itself being the first.
func coreDistances(dist [][]float64, k int) []float64 {
	core := make([]float64, len(dist))
	row := make([]float64, len(dist))
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

type edge struct {
	a, b   int
	weight float64
}

// primMST builds the minimum spanning tree of the mutual reachability graph.
func primMST(dist [][]float64, core []float64) []edge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			mr := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if mr < best[j] {
				best[j] = mr
				from[j] = current
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, edge{a: from[next], b: next, weight: best[next]})
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// singleLinkage merges MST edges in weight order. Merge k creates node n+k.
func singleLinkage(n int, mst []edge) []linkage {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := make([]linkage, 0, n-1)
	for k, e := range mst {
		ra, rb := find(e.a), find(e.b)
		node := n + k
		parent[ra], parent[rb] = node, node
		size[node] = size[ra] + size[rb]
		tree = append(tree, linkage{left: ra, right: rb, distance: e.weight, size: size[node]})
	}
	return tree
}

func lambdaOf(d float64) float64 {
	if d <= 0 {
		return 1e12
	}
	return 1 / d
}

// condenseTree walks the single-linkage tree from the root and keeps only
// splits where both sides have at least mcs points. Smaller sides fall out
// of their parent cluster as individual points.
func condenseTree(n int, tree []linkage, mcs int) []condensedEdge {
	root := 2*n - 2
	nodeSize := func(x int) int {
		if x < n {
			return 1
		}
		return tree[x-n].size
	}
	var leaves func(x int, dst []int) []int
	leaves = func(x int, dst []int) []int {
		if x < n {
			return append(dst, x)
		}
		l := tree[x-n]
		return leaves(l.right, leaves(l.left, dst))
	}

	relabel := map[int]int{root: n}
	nextLabel := n + 1
	var out []condensedEdge

	stack := []int{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		l := tree[node-n]
		lambda := lambdaOf(l.distance)
		label := relabel[node]
		leftSize, rightSize := nodeSize(l.left), nodeSize(l.right)

		fallOut := func(x int) {
			for _, p := range leaves(x, nil) {
				out = append(out, condensedEdge{parent: label, child: p, lambda: lambda, size: 1})
			}
		}

		switch {
		case leftSize >= mcs && rightSize >= mcs:
			for _, child := range []int{l.left, l.right} {
				relabel[child] = nextLabel
				out = append(out, condensedEdge{parent: label, child: nextLabel, lambda: lambda, size: nodeSize(child)})
				nextLabel++
				stack = append(stack, child)
			}
		case leftSize < mcs && rightSize < mcs:
			fallOut(l.left)
			fallOut(l.right)
		case leftSize < mcs:
			fallOut(l.left)
			relabel[l.right] = label
			stack = append(stack, l.right)
		default:
			fallOut(l.right)
			relabel[l.left] = label
			stack = append(stack, l.left)
		}
	}
	return out
}

// selectClusters picks clusters by excess of mass, excluding the root.
func selectClusters(n int, condensed []condensedEdge) map[int]bool {
	birth := map[int]float64{n: 0}
	children := make(map[int][]int)
	for _, e := range condensed {
		if e.child >= n {
			birth[e.child] = e.lambda
			children[e.parent] = append(children[e.parent], e.child)
		}
	}

	stability := make(map[int]float64, len(birth))
	for c := range birth {
		stability[c] = 0
	}
	for _, e := range condensed {
		stability[e.parent] += (e.lambda - birth[e.parent]) * float64(e.size)
	}

	ids := make([]int, 0, len(birth))
	for c := range birth {
		if c != n {
			ids = append(ids, c)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	selected := make(map[int]bool, len(ids))
	for _, c := range ids {
		selected[c] = true
	}

	var deselectBelow func(c int)
	deselectBelow = func(c int) {
		for _, child := range children[c] {
			selected[child] = false
			deselectBelow(child)
		}
	}

	for _, c := range ids {
		var childSum float64
		for _, child := range children[c] {
			childSum += stability[child]
		}
		if childSum > stability[c] {
			selected[c] = false
			stability[c] = childSum
		} else {
			deselectBelow(c)
		}
	}
	return selected
}

// assignLabels gives each point the label of its nearest selected ancestor.
func assignLabels(n int, condensed []condensedEdge, selected map[int]bool) []int {
	parentOf := make(map[int]int, len(condensed))
	for _, e := range condensed {
		parentOf[e.child] = e.parent
	}

	var chosen []int
	for c, ok := range selected {
		if ok {
			chosen = append(chosen, c)
		}
	}
	sort.Ints(chosen)
	dense := make(map[int]int, len(chosen))
	for i, c := range chosen {
		dense[c] = i
	}

	labels := make([]int, n)
	for p := 0; p < n; p++ {
		labels[p] = Noise
		node, ok := parentOf[p]
		for ok {
			if selected[node] {
				labels[p] = dense[node]
				break
			}
			node, ok = parentOf[node]
		}
	}
	return labels
}
