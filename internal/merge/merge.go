// Package merge implements the deep-merge and nil-pruning semantics used
// for all synchronized state. A delta is a JSON-like map; merging it into a
// target overwrites scalars and arrays, merges nested objects key by key,
// and a nil value marks the key for deletion.
package merge

// Merge deep-merges delta into target and returns target. Nested maps are
// merged recursively; any other value (scalars, arrays, nil) overwrites the
// existing entry. Nil values survive the merge so Prune can delete them.
func Merge(target, delta map[string]any) map[string]any {
	if target == nil {
		target = make(map[string]any, len(delta))
	}
	for k, v := range delta {
		dv, dok := v.(map[string]any)
		tv, tok := target[k].(map[string]any)
		if dok && tok {
			target[k] = Merge(tv, dv)
			continue
		}
		if dok {
			// Copy so the caller's delta is never aliased by stored state.
			target[k] = Merge(make(map[string]any, len(dv)), dv)
			continue
		}
		target[k] = v
	}
	return target
}

// Prune removes every nil-valued key from obj at every nesting depth and
// returns obj. Keys that end up holding an empty map are kept; only nil
// marks a deletion.
func Prune(obj map[string]any) map[string]any {
	for k, v := range obj {
		if v == nil {
			delete(obj, k)
			continue
		}
		if m, ok := v.(map[string]any); ok {
			obj[k] = Prune(m)
		}
	}
	return obj
}

// Apply merges delta into target and prunes the result. This is the
// canonical "apply a client delta to authoritative state" operation: the
// returned map is what the server retains, while the raw delta is what gets
// relayed to room members.
func Apply(target, delta map[string]any) map[string]any {
	return Prune(Merge(target, delta))
}

// Clone returns a deep copy of obj. Nested maps are copied recursively;
// array and scalar values are shared, which is safe because deltas replace
// them wholesale rather than mutating in place.
func Clone(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if m, ok := v.(map[string]any); ok {
			out[k] = Clone(m)
			continue
		}
		out[k] = v
	}
	return out
}
