package api

import "path"

// reserved is the fixed set of paths that belong to static collaborators
// (the landing page, the version endpoint, the help page) and can never be
// used as a rendezvous target.
var reserved = map[string]bool{
	"/":        true,
	"/version": true,
	"/help":    true,
}

// CanonicalPath resolves an incoming request's URL path against root and
// strips a trailing slash, except for the root itself. Two requests target
// the same rendezvous iff their canonical paths are equal; the query
// string never participates.
func CanonicalPath(requestPath string) string {
	return path.Clean("/" + requestPath)
}

// IsReserved reports whether a canonical path belongs to a static
// collaborator rather than the rendezvous namespace.
func IsReserved(canonicalPath string) bool {
	return reserved[canonicalPath]
}
