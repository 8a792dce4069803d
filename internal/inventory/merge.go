package inventory

// MergePolicy decides which record survives a VIN collision. A vehicle that
// appears in both catalogs is presumed to have just turned over status, so
// the record tagged with the preferred stock type wins.
type MergePolicy struct {
	Preferred StockType
}

// DefaultMergePolicy prefers New over Used on collision.
func DefaultMergePolicy() MergePolicy {
	return MergePolicy{Preferred: StockTypeNew}
}

// Merge deduplicates the concatenation of the two lists by VIN. Output order
// is the insertion order of first-seen VINs, which keeps snapshot diffs
// deterministic run-over-run for identical inputs.
func (p MergePolicy) Merge(listA, listB []Vehicle) []Vehicle {
	out := make([]Vehicle, 0, len(listA)+len(listB))
	index := make(map[string]int, len(listA)+len(listB))
	for _, v := range append(append([]Vehicle{}, listA...), listB...) {
		at, seen := index[v.VIN]
		if !seen {
			index[v.VIN] = len(out)
			out = append(out, v)
			continue
		}
		if out[at].StockType != p.Preferred && v.StockType == p.Preferred {
			out[at] = v
		}
	}
	return out
}
