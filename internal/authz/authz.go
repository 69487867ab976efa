// Package authz decides which callers may run privileged commands.
package authz

// Guard holds the fixed set of authorized caller identities.
type Guard struct {
	ids map[int64]struct{}
}

// NewGuard creates a guard for ids. The set cannot change afterwards.
func NewGuard(ids []int64) *Guard {
	g := &Guard{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		g.ids[id] = struct{}{}
	}
	return g
}

// IsAuthorized reports whether caller is in the authorized set.
func (g *Guard) IsAuthorized(caller int64) bool {
	_, ok := g.ids[caller]
	return ok
}

// Len returns the number of authorized identities.
func (g *Guard) Len() int {
	return len(g.ids)
}
