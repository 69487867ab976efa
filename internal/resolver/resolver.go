// Package resolver answers "which URL belongs to post N".
package resolver

import "fmt"

// PostNumberWidth is the zero-padded width of a canonical post number.
const PostNumberWidth = 5

// Links looks up registered overrides
type Links interface {
	Get(n int) (string, bool)
}

// Resolver combines registered overrides with the default link rule.
type Resolver struct {
	links   Links
	baseURL string
}

// New creates a resolver that falls back to baseURL + padded post number.
func New(links Links, baseURL string) *Resolver {
	return &Resolver{links: links, baseURL: baseURL}
}

// Resolve returns the override for n if one exists, otherwise the default link.
// Callers range-check n beforehand.
func (r *Resolver) Resolve(n int) string {
	if url, ok := r.links.Get(n); ok {
		return url
	}
	return r.Default(n)
}

// Default returns the derived link for n, ignoring overrides.
func (r *Resolver) Default(n int) string {
	return r.baseURL + FormatPostNumber(n)
}

// FormatPostNumber renders n zero-padded to five digits. Wider numbers are
// not truncated.
func FormatPostNumber(n int) string {
	return fmt.Sprintf("%0*d", PostNumberWidth, n)
}
