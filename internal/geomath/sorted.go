package geomath

import "sort"

// InsertSorted inserts v into list keeping ascending order by cost.
// Entries with equal cost keep insertion order, so ties are stable.
func InsertSorted[T any](list []T, v T, cost func(T) float64) []T {
	c := cost(v)
	i := sort.Search(len(list), func(i int) bool { return cost(list[i]) > c })
	list = append(list, v)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
