package types

// HistoryID identifies a node of the causal history. It is the hash of the
// operation id together with the history ids of the operation predecessors,
// so a single HistoryID pins a whole causal past.
type HistoryID = Hash32

// OpID is the hash of an operation literal.
type OpID = Hash32

// ObjectID is the hash of a mutable object literal. All operations that
// mutate the object reference it as their target.
type ObjectID = Hash32

// HashSet is an unordered set of hashes.
type HashSet map[Hash32]struct{}

// NewHashSet creates a set from the hashes.
func NewHashSet(hashes ...Hash32) HashSet {
	set := make(HashSet, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

// Add inserts h and reports whether it was not present.
func (s HashSet) Add(h Hash32) bool {
	if _, exist := s[h]; exist {
		return false
	}
	s[h] = struct{}{}
	return true
}

// Has reports membership of h.
func (s HashSet) Has(h Hash32) bool {
	_, exist := s[h]
	return exist
}

// Sorted returns the set content in lexicographic order.
func (s HashSet) Sorted() []Hash32 {
	rst := make([]Hash32, 0, len(s))
	for h := range s {
		rst = append(rst, h)
	}
	SortHashes(rst)
	return rst
}
