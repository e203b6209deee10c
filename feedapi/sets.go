package feedapi

import "slices"

// uniq preserves first-occurrence order.
func uniq[T comparable](vals []T) []T {
	seen := make(map[T]struct{}, len(vals))
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func union[T comparable](a, b []T) []T {
	return uniq(slices.Concat(a, b))
}

func subtract[T comparable](a, b []T) []T {
	out := make([]T, 0, len(a))
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func intersects[T comparable](a, b []T) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

// diffSets splits a present/next pair into the additions and removals
// needed to get from one to the other.
func diffSets[T comparable](present, next []T) (added, removed []T) {
	return subtract(next, present), subtract(present, next)
}
