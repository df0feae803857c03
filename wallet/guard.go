package wallet

// DuplicateGuard remembers which customer IDs were already seen in its
// scope. It is not safe for concurrent use; every worker owns one.
type DuplicateGuard struct {
	seen map[string]struct{}
}

func NewDuplicateGuard() *DuplicateGuard {
	return &DuplicateGuard{seen: make(map[string]struct{})}
}

// CheckAndMark returns true and records id the first time it is seen.
// Later calls with the same id return false.
func (g *DuplicateGuard) CheckAndMark(id string) bool {
	if _, ok := g.seen[id]; ok {
		return false
	}
	g.seen[id] = struct{}{}
	return true
}

func (g *DuplicateGuard) Len() int {
	return len(g.seen)
}
