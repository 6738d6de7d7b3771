package forest

import (
	"context"
	"math/rand"
	"sort"

	"github.com/chriscorrea/civil/internal/sparse"
)

// Node is one node of a fitted decision tree, stored in a flat slice.
// Samples with x[Feature] <= Threshold go to Left, others to Right.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Proba     float64 `json:"p"` // weighted share of positive samples reaching this node
}

// Tree is a fitted binary classification tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict walks x down the tree and returns the leaf's positive probability.
func (t *Tree) predict(x sparse.Vector) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x.Get(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Proba
}

// cell is one non-zero value of a feature column.
type cell struct {
	row   int
	value float64
}

// dataset is the read-only training matrix shared by all tree builders.
type dataset struct {
	rows     []sparse.Vector // row-major (one vector per sample)
	columns  [][]cell        // column-major copy of the same values
	labels   []int
	features int
}

func newDataset(x []sparse.Vector, y []int, features int) *dataset {
	columns := make([][]cell, features)
	for row, vec := range x {
		for _, e := range vec {
			if e.Index >= 0 && e.Index < features {
				columns[e.Index] = append(columns[e.Index], cell{row: row, value: e.Value})
			}
		}
	}
	return &dataset{rows: x, columns: columns, labels: y, features: features}
}

// split describes the best split found for a node.
type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity
	found     bool
}

// group aggregates the class weights of samples sharing one feature value.
type group struct {
	value  float64
	w0, w1 float64
}

// treeBuilder grows one tree on a bootstrap sample.
type treeBuilder struct {
	ctx         context.Context
	data        *dataset
	weights     []float64 // bootstrap multiplicity per row
	opts        Options
	maxFeatures int
	rng         *rand.Rand

	nodes       []Node
	importances []float64

	// stamp marks rows of the node currently being split
	stamp   []int
	stampID int
}

func newTreeBuilder(ctx context.Context, data *dataset, opts Options, maxFeatures int, seed int64) *treeBuilder {
	rng := rand.New(rand.NewSource(seed))

	// bootstrap: draw n samples with replacement
	n := len(data.rows)
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[rng.Intn(n)]++
	}

	return &treeBuilder{
		ctx:         ctx,
		data:        data,
		weights:     weights,
		opts:        opts,
		maxFeatures: maxFeatures,
		rng:         rng,
		importances: make([]float64, data.features),
		stamp:       make([]int, n),
	}
}

// build grows the tree and returns it with its normalized feature importances.
func (b *treeBuilder) build() (*Tree, []float64, error) {
	rows := make([]int, 0, len(b.weights))
	for row, w := range b.weights {
		if w > 0 {
			rows = append(rows, row)
		}
	}

	if _, err := b.grow(rows, 0); err != nil {
		return nil, nil, err
	}

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}

	return &Tree{Nodes: b.nodes}, b.importances, nil
}

// grow appends the subtree for rows and returns its root index.
func (b *treeBuilder) grow(rows []int, depth int) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	var w0, w1 float64
	for _, row := range rows {
		if b.data.labels[row] == 1 {
			w1 += b.weights[row]
		} else {
			w0 += b.weights[row]
		}
	}
	total := w0 + w1

	index := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Proba: w1 / total})

	parentImpurity := gini(w0, w1)
	minLeaf := float64(b.opts.MinSamplesLeaf)
	if parentImpurity == 0 ||
		total < 2*minLeaf ||
		(b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		return index, nil
	}

	best := b.findSplit(rows, w0, w1)
	if !best.found || best.impurity >= parentImpurity-1e-12 {
		return index, nil
	}

	var left, right []int
	for _, row := range rows {
		if b.data.rows[row].Get(best.feature) <= best.threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return index, nil
	}

	b.importances[best.feature] += total * (parentImpurity - best.impurity)

	leftIndex, err := b.grow(left, depth+1)
	if err != nil {
		return 0, err
	}
	rightIndex, err := b.grow(right, depth+1)
	if err != nil {
		return 0, err
	}

	b.nodes[index] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      leftIndex,
		Right:     rightIndex,
		Proba:     w1 / total,
	}
	return index, nil
}

// findSplit samples candidate features among those present in rows and
// returns the split with the lowest weighted Gini impurity.
func (b *treeBuilder) findSplit(rows []int, w0, w1 float64) split {
	b.stampID++
	present := make(map[int]struct{})
	for _, row := range rows {
		b.stamp[row] = b.stampID
		for _, e := range b.data.rows[row] {
			present[e.Index] = struct{}{}
		}
	}
	if len(present) == 0 {
		return split{}
	}

	// sorted before shuffling so the draw only depends on the seed
	candidates := make([]int, 0, len(present))
	for f := range present {
		candidates = append(candidates, f)
	}
	sort.Ints(candidates)
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	// features that cannot split this node do not count toward maxFeatures
	best := split{}
	evaluated := 0
	for _, feature := range candidates {
		if evaluated >= b.maxFeatures {
			break
		}
		threshold, impurity, ok := b.evaluate(feature, rows, w0, w1)
		if !ok {
			continue
		}
		evaluated++
		if !best.found || impurity < best.impurity {
			best = split{feature: feature, threshold: threshold, impurity: impurity, found: true}
		}
	}
	return best
}

// evaluate finds the best threshold for feature over rows.
func (b *treeBuilder) evaluate(feature int, rows []int, w0, w1 float64) (float64, float64, bool) {
	byValue := make(map[float64]*group)
	var nz0, nz1 float64

	add := func(row int, value float64) {
		g, ok := byValue[value]
		if !ok {
			g = &group{value: value}
			byValue[value] = g
		}
		if b.data.labels[row] == 1 {
			g.w1 += b.weights[row]
			nz1 += b.weights[row]
		} else {
			g.w0 += b.weights[row]
			nz0 += b.weights[row]
		}
	}

	column := b.data.columns[feature]
	if len(column) <= 8*len(rows) {
		// scan the column and keep rows stamped for this node
		for _, c := range column {
			if b.stamp[c.row] == b.stampID {
				add(c.row, c.value)
			}
		}
	} else {
		for _, row := range rows {
			if v := b.data.rows[row].Get(feature); v != 0 {
				add(row, v)
			}
		}
	}

	// samples without a stored value sit at zero
	if z0, z1 := w0-nz0, w1-nz1; z0 > 1e-12 || z1 > 1e-12 {
		g, ok := byValue[0]
		if !ok {
			g = &group{}
			byValue[0] = g
		}
		g.w0 += z0
		g.w1 += z1
	}
	if len(byValue) < 2 {
		return 0, 0, false
	}

	groups := make([]*group, 0, len(byValue))
	for _, g := range byValue {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].value < groups[j].value })

	total := w0 + w1
	minLeaf := float64(b.opts.MinSamplesLeaf)
	var l0, l1 float64
	bestImpurity, bestThreshold, found := 0.0, 0.0, false

	for i := 0; i < len(groups)-1; i++ {
		l0 += groups[i].w0
		l1 += groups[i].w1
		r0, r1 := w0-l0, w1-l1
		lw, rw := l0+l1, r0+r1
		if lw < minLeaf || rw < minLeaf {
			continue
		}
		impurity := (lw*gini(l0, l1) + rw*gini(r0, r1)) / total
		if !found || impurity < bestImpurity {
			bestImpurity = impurity
			bestThreshold = (groups[i].value + groups[i+1].value) / 2
			found = true
		}
	}
	return bestThreshold, bestImpurity, found
}

// gini returns the Gini impurity of a two-class weight distribution.
func gini(w0, w1 float64) float64 {
	total := w0 + w1
	if total <= 0 {
		return 0
	}
	p0, p1 := w0/total, w1/total
	return 1 - p0*p0 - p1*p1
}
