package parents

// Union composes per-parent result lists into a single list, de-duplicated by
// key with first-seen ordering. Lists are expected in parent order so the
// output is stable for a given parent set.
func Union[T any](key func(T) string, lists ...[]T) []T {
	var out []T
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, item := range list {
			k := key(item)
			if _, exists := seen[k]; exists {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
