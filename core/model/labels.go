package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// UniqueClasses returns the sorted unique integer labels of the column vector y.
func UniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// ClassIndices maps every label of y to its position in classes.
// Labels missing from classes map to -1.
func ClassIndices(y mat.Matrix, classes []int) []int {
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	rows, _ := y.Dims()
	out := make([]int, rows)
	for i := range out {
		k, ok := pos[int(y.At(i, 0))]
		if !ok {
			k = -1
		}
		out[i] = k
	}
	return out
}

// ArgmaxLabels returns, per row of proba, the label of the most probable class.
// Ties go to the first class.
func ArgmaxLabels(proba mat.Matrix, classes []int) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}
