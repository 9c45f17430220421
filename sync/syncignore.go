package sync

import (
	"bufio"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// defaultIgnoreLines are excluded whatever the ignore file says.
var defaultIgnoreLines = []string{
	".DS_Store",
	"Thumbs.db",
	"*.tmp",
	"*.vaultsync-tmp",
	".git/",
}

// SyncIgnore holds gitignore-style patterns loaded from the vault's ignore
// file. Matching entries are left untouched on both sides.
type SyncIgnore struct {
	ignore *gitignore.GitIgnore
	rules  int
}

// NewSyncIgnore compiles lines on top of the defaults.
func NewSyncIgnore(lines ...string) *SyncIgnore {
	all := append(append([]string{}, defaultIgnoreLines...), lines...)
	return &SyncIgnore{ignore: gitignore.CompileIgnoreLines(all...), rules: len(lines)}
}

// LoadSyncIgnore reads the ignore file at path on fsys. A missing or
// unreadable file yields the defaults only.
func LoadSyncIgnore(fsys afero.Fs, path string) *SyncIgnore {
	l := sub("ignore")
	f, err := fsys.Open(path)
	if err != nil {
		return NewSyncIgnore()
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		l.Warn("error reading ignore file", "path", path, "err", err)
	}

	si := NewSyncIgnore(lines...)
	l.Info("loaded ignore file", "path", path, "rules", si.rules)
	return si
}

// HiddenName reports whether a single path segment is hidden. Hidden
// entries (.obsidian, .trash, download temp files) never sync in either
// direction.
func HiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// IsHidden reports whether any segment of the root-relative key is hidden.
func IsHidden(key string) bool {
	return lo.SomeBy(strings.Split(key, "/"), HiddenName)
}

// IsIgnored reports whether the root-relative key is hidden or matches a
// pattern. Directory keys get a trailing slash so that "dir/" patterns
// apply.
func (si *SyncIgnore) IsIgnored(key string, isDir bool) bool {
	if key == "" {
		return false
	}
	if IsHidden(key) {
		return true
	}
	if si == nil || si.ignore == nil {
		return false
	}
	if isDir {
		key += "/"
	}
	return si.ignore.MatchesPath(key)
}

// Filter drops hidden and ignored entries from l. A nil receiver still
// applies the hidden rule, so both sides of a run are always filtered the
// same way. Entries whose key cannot be computed are kept so the planner
// can apply its own policy to them.
func (si *SyncIgnore) Filter(root string, l Listing) Listing {
	return Listing(lo.Filter(l, func(e Entry, _ int) bool {
		key, ok := RelKey(root, e)
		return !ok || !si.IsIgnored(key, e.IsDir())
	}))
}
