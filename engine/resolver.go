package engine

// Resolve picks the mapping that drives output at now, or -1.
//
// A held trigger always wins, in store order, wherever now falls relative
// to its window. Otherwise the first mapping whose recorded window strictly
// contains now wins.
func Resolve(now float64, mappings []Mapping) int {
	for i, m := range mappings {
		if m.Active {
			return i
		}
	}
	for i, m := range mappings {
		if m.Covers(now) {
			return i
		}
	}
	return -1
}
