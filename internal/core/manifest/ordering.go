package manifest

import "sort"

// =============================================================================
// Document Ordering
// =============================================================================

// kindRank defines apply order: storage claims before the deployments that
// mount them, services after the workloads they select.
var kindRank = map[Kind]int{
	KindPersistentVolumeClaim: 0,
	KindDeployment:            1,
	KindService:               2,
}

// OrderSet returns a copy of the set sorted into safe apply order. The sort
// is stable, so documents of the same kind keep their relative order.
func OrderSet(set Set) Set {
	ordered := make(Set, len(set))
	copy(ordered, set)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Kind) < rank(ordered[j].Kind)
	})
	return ordered
}

func rank(k Kind) int {
	if r, ok := kindRank[k]; ok {
		return r
	}
	// Unknown kinds apply last.
	return len(kindRank)
}
