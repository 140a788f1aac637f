// Package tree implements CART decision trees for classification and regression.
//
// Fitted trees are stored as a flat slice of nodes so they round-trip through
// encoding/gob without custom marshalers.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Leaf is the child index of leaf nodes.
const Leaf = -1

// Node is one node of a fitted tree.
type Node struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold goes left
	Left      int
	Right     int
	// Value holds class proportions (classification) or the mean target (regression).
	Value    []float64
	NSamples int
	Impurity float64
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left == Leaf }

// Params はCARTの共通ハイパーパラメータ
type Params struct {
	Criterion           string  // gini, entropy, squared_error, absolute_error
	MaxDepth            int     // 0 は無制限
	MinSamplesSplit     int     // 分割に必要な最小サンプル数
	MinSamplesLeaf      int     // 葉の最小サンプル数
	MaxFeatures         string  // "", "sqrt", "log2", 整数, または (0, 1] の割合
	MinImpurityDecrease float64 // 分割に必要な不純度減少量
	RandomState         int
}

func defaultParams(criterion string) Params {
	return Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
}

// Validate checks the hyperparameters and that Criterion is one of criteria.
func (p *Params) Validate(criteria ...string) error {
	switch {
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	case p.MinImpurityDecrease < 0:
		return errors.NewValidationError("min_impurity_decrease", "must be >= 0", p.MinImpurityDecrease)
	}
	if _, err := p.NumFeatures(1); err != nil {
		return err
	}
	for _, c := range criteria {
		if p.Criterion == c {
			return nil
		}
	}
	return errors.NewValidationError("criterion", fmt.Sprintf("must be one of %v", criteria), p.Criterion)
}

// NumFeatures resolves MaxFeatures against the number of columns.
func (p *Params) NumFeatures(cols int) (int, error) {
	var k int
	switch p.MaxFeatures {
	case "", "all", "none", "None":
		k = cols
	case "sqrt", "auto":
		k = int(math.Sqrt(float64(cols)))
	case "log2":
		k = int(math.Log2(float64(cols)))
	default:
		if n, err := strconv.Atoi(p.MaxFeatures); err == nil {
			k = n
		} else if f, err := strconv.ParseFloat(p.MaxFeatures, 64); err == nil && f > 0 && f <= 1 {
			k = int(f * float64(cols))
		} else {
			return 0, errors.NewValidationError("max_features", "must be sqrt, log2, an integer or a fraction in (0, 1]", p.MaxFeatures)
		}
	}
	if k < 1 {
		k = 1
	}
	if k > cols {
		k = cols
	}
	return k, nil
}

// GetParams returns the hyperparameters keyed like scikit-learn.
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             p.Criterion,
		"max_depth":             p.MaxDepth,
		"min_samples_split":     p.MinSamplesSplit,
		"min_samples_leaf":      p.MinSamplesLeaf,
		"max_features":          p.MaxFeatures,
		"min_impurity_decrease": p.MinImpurityDecrease,
		"random_state":          p.RandomState,
	}
}

// Set applies params, reporting unknown keys against name.
func (p *Params) Set(name string, params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			p.Criterion, err = model.ParamString(k, v)
		case "max_depth":
			if v == nil {
				p.MaxDepth = 0
				continue
			}
			p.MaxDepth, err = model.ParamInt(k, v)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "max_features":
			p.MaxFeatures = maxFeaturesString(v)
		case "min_impurity_decrease":
			p.MinImpurityDecrease, err = model.ParamFloat(k, v)
		case "random_state":
			p.RandomState, err = model.ParamInt(k, v)
		default:
			err = model.UnknownParam(name, k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func maxFeaturesString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Tree is a fitted CART tree.
type Tree struct {
	Nodes       []Node
	Importances []float64 // 正規化前の不純度減少量
	Depth       int
}

// Apply returns the leaf node reached by x.
func (t *Tree) Apply(x []float64) *Node {
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// NLeaves counts the leaves.
func (t *Tree) NLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// NormalizedImportances returns the impurity decrease per feature scaled to sum to 1.
// A tree without splits returns all zeros.
func (t *Tree) NormalizedImportances() []float64 {
	out := make([]float64, len(t.Importances))
	var total float64
	for _, v := range t.Importances {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range t.Importances {
		out[i] = v / total
	}
	return out
}

// builder grows one tree. labels is set for classification, target for regression.
type builder struct {
	p           Params
	X           *mat.Dense
	labels      []int
	nClasses    int
	target      []float64
	maxFeatures int
	rng         *rand.Rand
	nTotal      float64
	tree        *Tree
}

// Build grows a classification tree on the rows in sample (duplicates allowed).
func Build(p Params, X *mat.Dense, labels []int, nClasses int, sample []int) *Tree {
	return newBuilder(p, X, sample).classification(labels, nClasses).build(sample)
}

// BuildRegression grows a regression tree on the rows in sample.
func BuildRegression(p Params, X *mat.Dense, target []float64, sample []int) *Tree {
	b := newBuilder(p, X, sample)
	b.target = target
	return b.build(sample)
}

func newBuilder(p Params, X *mat.Dense, sample []int) *builder {
	_, cols := X.Dims()
	k, _ := p.NumFeatures(cols)
	return &builder{
		p:           p,
		X:           X,
		maxFeatures: k,
		rng:         rand.New(rand.NewPCG(uint64(p.RandomState), uint64(p.RandomState))),
		nTotal:      float64(len(sample)),
		tree:        &Tree{Importances: make([]float64, cols)},
	}
}

func (b *builder) classification(labels []int, nClasses int) *builder {
	b.labels = labels
	b.nClasses = nClasses
	return b
}

func (b *builder) build(sample []int) *Tree {
	idx := append([]int(nil), sample...)
	b.grow(idx, 0)
	return b.tree
}

// grow appends the node for idx and returns its position.
func (b *builder) grow(idx []int, depth int) int {
	value, impurity := b.nodeValue(idx)
	pos := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Left:     Leaf,
		Right:    Leaf,
		Value:    value,
		NSamples: len(idx),
		Impurity: impurity,
	})
	if depth > b.tree.Depth {
		b.tree.Depth = depth
	}

	n := len(idx)
	if (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) ||
		n < b.p.MinSamplesSplit || n < 2*b.p.MinSamplesLeaf || impurity <= 1e-12 {
		return pos
	}

	s, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}
	decrease := float64(n) / b.nTotal * (impurity - s.childImpurity)
	if decrease < b.p.MinImpurityDecrease {
		return pos
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, n-s.nLeft)
	for _, i := range idx {
		if b.X.At(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.tree.Importances[s.feature] += float64(n)*impurity - s.childImpurity*float64(n)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	node := &b.tree.Nodes[pos]
	node.Feature, node.Threshold, node.Left, node.Right = s.feature, s.threshold, l, r
	return pos
}

type split struct {
	feature       int
	threshold     float64
	childImpurity float64 // サンプル数で重み付けした子ノードの不純度
	nLeft         int
}

func (b *builder) candidateFeatures() []int {
	_, cols := b.X.Dims()
	if b.maxFeatures >= cols {
		all := make([]int, cols)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(cols)[:b.maxFeatures]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	best := split{childImpurity: math.Inf(1)}
	found := false
	sorted := make([]int, len(idx))
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return b.X.At(sorted[i], f) < b.X.At(sorted[j], f) })
		var s split
		var ok bool
		if b.labels != nil {
			s, ok = b.scanClassification(sorted, f)
		} else {
			s, ok = b.scanRegression(sorted, f)
		}
		if ok && s.childImpurity < best.childImpurity-1e-12 {
			best, found = s, true
		}
	}
	return best, found
}

// valid reports whether a split after position k (left = sorted[:k+1]) is allowed.
func (b *builder) valid(sorted []int, f, k int) bool {
	n := len(sorted)
	if k+1 < b.p.MinSamplesLeaf || n-k-1 < b.p.MinSamplesLeaf {
		return false
	}
	return b.X.At(sorted[k], f) < b.X.At(sorted[k+1], f)
}

func (b *builder) threshold(sorted []int, f, k int) float64 {
	lo, hi := b.X.At(sorted[k], f), b.X.At(sorted[k+1], f)
	t := lo + (hi-lo)/2
	if t >= hi {
		t = lo
	}
	return t
}

func (b *builder) scanClassification(sorted []int, f int) (split, bool) {
	n := len(sorted)
	total := make([]float64, b.nClasses)
	for _, i := range sorted {
		total[b.labels[i]]++
	}
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	best := split{feature: f, childImpurity: math.Inf(1)}
	found := false
	for k := 0; k < n-1; k++ {
		left[b.labels[sorted[k]]]++
		if !b.valid(sorted, f, k) {
			continue
		}
		for c := range right {
			right[c] = total[c] - left[c]
		}
		nl, nr := float64(k+1), float64(n-k-1)
		imp := (nl*b.classImpurity(left, nl) + nr*b.classImpurity(right, nr)) / float64(n)
		if imp < best.childImpurity {
			best.childImpurity, best.threshold, best.nLeft = imp, b.threshold(sorted, f, k), k+1
			found = true
		}
	}
	return best, found
}

func (b *builder) scanRegression(sorted []int, f int) (split, bool) {
	n := len(sorted)
	if b.p.Criterion == "absolute_error" {
		return b.scanAbsolute(sorted, f)
	}
	var sum, sumSq float64
	for _, i := range sorted {
		sum += b.target[i]
		sumSq += b.target[i] * b.target[i]
	}
	var ls, lss float64
	best := split{feature: f, childImpurity: math.Inf(1)}
	found := false
	for k := 0; k < n-1; k++ {
		v := b.target[sorted[k]]
		ls += v
		lss += v * v
		if !b.valid(sorted, f, k) {
			continue
		}
		nl, nr := float64(k+1), float64(n-k-1)
		rs, rss := sum-ls, sumSq-lss
		imp := (nl*variance(ls, lss, nl) + nr*variance(rs, rss, nr)) / float64(n)
		if imp < best.childImpurity {
			best.childImpurity, best.threshold, best.nLeft = imp, b.threshold(sorted, f, k), k+1
			found = true
		}
	}
	return best, found
}

// scanAbsolute evaluates every boundary with the mean absolute deviation
// around the median. Quadratic in the node size.
func (b *builder) scanAbsolute(sorted []int, f int) (split, bool) {
	n := len(sorted)
	best := split{feature: f, childImpurity: math.Inf(1)}
	found := false
	for k := 0; k < n-1; k++ {
		if !b.valid(sorted, f, k) {
			continue
		}
		nl, nr := float64(k+1), float64(n-k-1)
		imp := (nl*b.absDeviation(sorted[:k+1]) + nr*b.absDeviation(sorted[k+1:])) / float64(n)
		if imp < best.childImpurity {
			best.childImpurity, best.threshold, best.nLeft = imp, b.threshold(sorted, f, k), k+1
			found = true
		}
	}
	return best, found
}

func (b *builder) nodeValue(idx []int) ([]float64, float64) {
	n := float64(len(idx))
	if b.labels != nil {
		counts := make([]float64, b.nClasses)
		for _, i := range idx {
			counts[b.labels[i]]++
		}
		imp := b.classImpurity(counts, n)
		for c := range counts {
			counts[c] /= n
		}
		return counts, imp
	}
	if b.p.Criterion == "absolute_error" {
		return []float64{b.median(idx)}, b.absDeviation(idx)
	}
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.target[i]
		sumSq += b.target[i] * b.target[i]
	}
	return []float64{sum / n}, variance(sum, sumSq, n)
}

func (b *builder) classImpurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	if b.p.Criterion == "entropy" || b.p.Criterion == "log_loss" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / n
		imp -= p * p
	}
	return imp
}

func (b *builder) median(idx []int) float64 {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = b.target[i]
	}
	sort.Float64s(vals)
	m := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[m]
	}
	return (vals[m-1] + vals[m]) / 2
}

func (b *builder) absDeviation(idx []int) float64 {
	med := b.median(idx)
	var s float64
	for _, i := range idx {
		s += math.Abs(b.target[i] - med)
	}
	return s / float64(len(idx))
}

func variance(sum, sumSq, n float64) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / n
	v := sumSq/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// denseOf returns X as *mat.Dense without copying when possible.
func denseOf(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

// allRows returns 0..n-1.
func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
