package sync

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// localRoot anchors local entries: their Path is relative to the vault root.
const localRoot = "/"

// RelKey returns the canonical root-relative key used to match e against
// entries of the other side. The key has no leading slash, is cleaned, and
// is NFC-normalized so that a name stored decomposed on one side still
// matches its composed twin on the other.
//
// ok is false when the entry cannot be placed under root: an empty or
// dotted name, a name containing a separator, a parent outside root, or a
// path that climbs above it.
func RelKey(root string, e Entry) (key string, ok bool) {
	if e.Name == "" || e.Name == "." || e.Name == ".." || strings.Contains(e.Name, "/") {
		return "", false
	}

	rel, ok := relParent(cleanPath(root), cleanPath(e.Path))
	if !ok {
		return "", false
	}

	key = path.Join(rel, e.Name)
	if key == ".." || strings.HasPrefix(key, "../") {
		return "", false
	}
	return norm.NFC.String(key), true
}

// IsRoot reports whether e is the sync root itself. "/" and "." both name
// the local root.
func IsRoot(root string, e Entry) bool {
	full := cleanPath(e.FullPath())
	r := cleanPath(root)
	if full == r {
		return true
	}
	return isTop(full) && isTop(r)
}

// relParent strips root from parent. Both arguments must already be cleaned.
func relParent(root, parent string) (string, bool) {
	if isTop(root) {
		rel := strings.TrimPrefix(parent, "/")
		if rel == "" || rel == "." {
			return "", true
		}
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return "", false
		}
		return rel, true
	}

	switch {
	case parent == root:
		return "", true
	case strings.HasPrefix(parent, root+"/"):
		return parent[len(root)+1:], true
	}
	return "", false
}

// localRel returns the vault-relative path of a local entry as it exists on
// disk, without normalization.
func localRel(e Entry) string {
	return strings.TrimPrefix(cleanPath(e.FullPath()), "/")
}

func cleanPath(p string) string {
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

func isTop(p string) bool {
	return p == "." || p == "/"
}
