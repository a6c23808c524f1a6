package store

import (
	"strings"
)

const forbiddenChars = ".$#[]"

// Split validates path and returns its collection and child key. key is
// empty for top-level nodes.
func Split(path string) (parent, key string, err error) {
	p := strings.Trim(path, "/")
	if p == "" {
		return "", "", ErrInvalidPath
	}
	segs := strings.Split(p, "/")
	if len(segs) > 2 {
		return "", "", ErrInvalidPath
	}
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, forbiddenChars) {
			return "", "", ErrInvalidPath
		}
	}
	if len(segs) == 1 {
		return segs[0], "", nil
	}
	return segs[0], segs[1], nil
}

// Join builds a child path.
func Join(collection, id string) string {
	return collection + "/" + id
}

// related reports whether a change at changed affects a watch on watched.
func related(watched, changed string) bool {
	watched = strings.Trim(watched, "/")
	changed = strings.Trim(changed, "/")
	return watched == changed ||
		strings.HasPrefix(changed, watched+"/") ||
		strings.HasPrefix(watched, changed+"/")
}
