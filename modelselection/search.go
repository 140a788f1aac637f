package modelselection

import (
	"sort"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// ParameterGrid expands grid into every combination of its values. Keys are
// visited in sorted order so the sequence is reproducible.
func ParameterGrid(grid map[string][]interface{}) []map[string]interface{} {
	keys := sortedKeys(grid)
	total := gridSize(grid, keys)
	out := make([]map[string]interface{}, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, gridPoint(grid, keys, i))
	}
	return out
}

// ParameterSampler draws nIter distinct combinations from grid with a seeded
// PCG stream. When nIter covers the whole grid every combination is returned
// in grid order.
func ParameterSampler(grid map[string][]interface{}, nIter, seed int) ([]map[string]interface{}, error) {
	if nIter <= 0 {
		return nil, errors.NewValidationError("n_iter", "must be positive", nIter)
	}
	keys := sortedKeys(grid)
	total := gridSize(grid, keys)
	if nIter >= total {
		return ParameterGrid(grid), nil
	}
	perm := newRand(seed).Perm(total)[:nIter]
	out := make([]map[string]interface{}, nIter)
	for i, p := range perm {
		out[i] = gridPoint(grid, keys, p)
	}
	return out, nil
}

func sortedKeys(grid map[string][]interface{}) []string {
	keys := make([]string, 0, len(grid))
	for k, v := range grid {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func gridSize(grid map[string][]interface{}, keys []string) int {
	if len(keys) == 0 {
		return 0
	}
	total := 1
	for _, k := range keys {
		total *= len(grid[k])
	}
	return total
}

// gridPoint decodes i as a mixed radix number over the value lists; the last
// key varies fastest.
func gridPoint(grid map[string][]interface{}, keys []string, i int) map[string]interface{} {
	point := make(map[string]interface{}, len(keys))
	for k := len(keys) - 1; k >= 0; k-- {
		values := grid[keys[k]]
		point[keys[k]] = values[i%len(values)]
		i /= len(values)
	}
	return point
}
