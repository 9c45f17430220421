package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelKey(t *testing.T) {
	tests := []struct {
		name  string
		root  string
		entry Entry
		key   string
		ok    bool
	}{
		{"local top level", "/", file("a.md", "/", 1), "a.md", true},
		{"local nested", "/", file("a.md", "/x/y", 1), "x/y/a.md", true},
		{"local empty path", "/", file("a.md", "", 1), "a.md", true},
		{"remote dot root", "./obsidian/V", file("a.md", "obsidian/V/sub", 1), "sub/a.md", true},
		{"remote trailing slash", "root/", file("a.md", "root/", 1), "a.md", true},
		{"remote absolute", "/srv/root", dir("d", "/srv/root"), "d", true},
		{"outside root", "root", file("a.md", "other", 1), "", false},
		{"sibling prefix", "root", file("a.md", "root2", 1), "", false},
		{"slash in name", "/", file("a/b.md", "/", 1), "", false},
		{"dot name", "/", dir(".", "/"), "", false},
		{"dotdot name", "/", dir("..", "/x"), "", false},
		{"empty name", "/", file("", "/", 1), "", false},
		{"climbs above local root", "/", file("a.md", "../up", 1), "", false},
		{"decomposed name", "/", file("cafe\u0301.md", "/", 1), "caf\u00e9.md", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := RelKey(tt.root, tt.entry)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsRoot(t *testing.T) {
	assert.True(t, IsRoot("/", Entry{Name: "", Path: "/", Kind: KindDir}))
	assert.True(t, IsRoot("/", Entry{Name: "", Path: ".", Kind: KindDir}))
	assert.True(t, IsRoot("./obsidian/V", dir("V", "obsidian")))
	assert.True(t, IsRoot("root", dir("root", ".")))

	assert.False(t, IsRoot("/", dir("sub", "/")))
	assert.False(t, IsRoot("root", dir("sub", "root")))
}

func TestLocalRel(t *testing.T) {
	assert.Equal(t, "a.md", localRel(file("a.md", "/", 1)))
	assert.Equal(t, "x/a.md", localRel(file("a.md", "/x", 1)))
	// The on-disk spelling is kept.
	assert.Equal(t, "cafe\u0301.md", localRel(file("cafe\u0301.md", "/", 1)))
}
