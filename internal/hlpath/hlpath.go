// Package hlpath normalizes directory paths the same way the indexer does,
// so they can be used as join keys against stored parent_path values.
package hlpath

import "strings"

// Crumb is one navigable segment of a directory path.
type Crumb struct {
	Label string
	Path  string
}

// NormalizeDir canonicalizes a user-supplied directory path: backslashes
// become forward slashes, runs of separators collapse to one, and the result
// always starts and ends with a single "/". The empty string is the root.
//
// The indexer stores parent_path as '/' + trimmed path + '/', so any
// deviation here silently produces empty listings.
func NormalizeDir(raw string) string {
	p := strings.ReplaceAll(raw, "\\", "/")

	var b strings.Builder
	b.Grow(len(p) + 2)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if !prevSlash {
				b.WriteByte('/')
			}
			prevSlash = true
			continue
		}
		b.WriteByte(c)
		prevSlash = false
	}
	if !prevSlash {
		b.WriteByte('/')
	}
	return b.String()
}

// Breadcrumbs splits a normalized directory path into navigable segments.
// The first crumb is always the root; each subsequent crumb's Path is the
// normalized prefix up to and including that segment.
func Breadcrumbs(normalized string) []Crumb {
	crumbs := []Crumb{{Label: "/", Path: "/"}}
	trimmed := strings.Trim(normalized, "/")
	if trimmed == "" {
		return crumbs
	}
	current := "/"
	for _, seg := range strings.Split(trimmed, "/") {
		current += seg + "/"
		crumbs = append(crumbs, Crumb{Label: seg, Path: current})
	}
	return crumbs
}

// ParentDir returns the normalized path of the directory containing dir,
// or "/" if dir is the root.
func ParentDir(dir string) string {
	dir = NormalizeDir(dir)
	if dir == "/" {
		return "/"
	}
	trimmed := strings.TrimSuffix(dir, "/")
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[:idx+1]
}
