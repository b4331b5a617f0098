package document

import "sort"

// Union returns a new node holding base deep-merged with update. Neither
// input is modified.
func Union(base, update *Node) *Node {
	out := base.Clone()
	MergeInto(out, update)
	return out
}

// MergeInto deep-merges update into base. Keys missing from base are
// inserted, objects recurse, arrays merge by index and anything else is
// overwritten by update. An object whose keys are all indices counts as
// an array update when merged into an array. update is never retained.
func MergeInto(base, update *Node) {
	if base == nil || update == nil {
		return
	}
	switch {
	case base.kind == KindObject && update.kind == KindObject:
		for i, key := range update.keys {
			incoming := update.values[i]
			current := base.Child(key)
			if current != nil && mergeable(current, incoming) {
				MergeInto(current, incoming)
				continue
			}
			base.Set(key, incoming.Clone())
		}
	case base.kind == KindArray && isIndexed(update):
		mergeIndexed(base, update)
	default:
		base.replace(update.Clone())
	}
}

func mergeable(base, update *Node) bool {
	switch base.Kind() {
	case KindObject:
		return update.Kind() == KindObject
	case KindArray:
		return isIndexed(update)
	}
	return false
}

// isIndexed reports whether n can be applied to an array by index.
func isIndexed(n *Node) bool {
	switch n.Kind() {
	case KindArray:
		return true
	case KindObject:
		for _, key := range n.keys {
			if _, ok := parseIndex(key); !ok {
				return false
			}
		}
		return true
	}
	return false
}

type indexedEntry struct {
	idx  int
	node *Node
}

func mergeIndexed(base, update *Node) {
	entries := make([]indexedEntry, 0, update.Len())
	for i, child := range update.values {
		idx := i
		if update.kind == KindObject {
			idx, _ = parseIndex(update.keys[i])
		}
		entries = append(entries, indexedEntry{idx: idx, node: child})
	}

	var appended []indexedEntry
	for _, e := range entries {
		if e.idx >= len(base.values) {
			appended = append(appended, e)
			continue
		}
		current := base.values[e.idx]
		if mergeable(current, e.node) {
			MergeInto(current, e.node)
			continue
		}
		base.values[e.idx] = e.node.Clone()
	}

	sort.SliceStable(appended, func(a, b int) bool { return appended[a].idx < appended[b].idx })
	for _, e := range appended {
		base.values = append(base.values, e.node.Clone())
	}
}
