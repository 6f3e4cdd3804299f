// Package media resolves the opaque image references stored on a
// listing into displayable URLs. The core stores references only; the
// distinction between an uploaded object and an external URL lives
// entirely here.
package media

import (
	"net/url"
	"strings"
)

// Resolver turns a stored media reference into a displayable URL.
type Resolver interface {
	Resolve(ref string) string
}

// BaseURLResolver serves uploaded object keys from a single base URL
// and passes absolute URLs through untouched.
type BaseURLResolver struct {
	base string
}

// NewBaseURLResolver creates a resolver rooted at the given base URL.
func NewBaseURLResolver(base string) *BaseURLResolver {
	return &BaseURLResolver{base: strings.TrimRight(base, "/")}
}

// Resolve returns ref unchanged when it is already an absolute
// http(s) URL, otherwise joins it onto the base.
func (r *BaseURLResolver) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref
	}
	return r.base + "/" + strings.TrimLeft(ref, "/")
}

// ResolveAll maps Resolve over a reference list, preserving order.
func ResolveAll(r Resolver, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = r.Resolve(ref)
	}
	return out
}
