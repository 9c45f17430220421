package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

func memVault(t *testing.T, files map[string]string) *Vault {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/vault", 0755))
	for p, content := range files {
		full := filepath.Join("/vault", filepath.FromSlash(p))
		if strings.HasSuffix(p, "/") {
			require.NoError(t, fsys.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, afero.WriteFile(fsys, full, []byte(content), 0644))
	}
	return New(fsys, "/vault", "/xdg/Trash")
}

func TestListAll_PreOrderWithRoot(t *testing.T) {
	v := memVault(t, map[string]string{
		"a.md":          "hello",
		"notes/":        "",
		"notes/n10.md":  "x",
		"notes/n2.md":   "yy",
		".obsidian/app": "{}",
		".trash/old.md": "old",
	})

	got, err := v.ListAll()
	require.NoError(t, err)

	var paths []string
	for _, e := range got {
		paths = append(paths, e.FullPath())
	}
	assert.Equal(t, []string{"/", "/a.md", "/notes", "/notes/n2.md", "/notes/n10.md"}, paths)

	assert.Equal(t, vsync.KindDir, got[0].Kind)
	assert.Equal(t, "", got[0].Name)
	assert.Equal(t, int64(5), got[1].Size)
	assert.Equal(t, vsync.KindDir, got[2].Kind)
	assert.Equal(t, int64(0), got[2].Size)
}

func TestListAll_SkipsTempFiles(t *testing.T) {
	v := memVault(t, map[string]string{
		"a.md":                   "a",
		"b.md.vaultsync-tmp":     "partial",
		"sub/c.md.vaultsync-tmp": "partial",
	})

	got, err := v.ListAll()
	require.NoError(t, err)
	var names []string
	for _, e := range got[1:] {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.md", "sub"}, names)
}

func TestCreateFolderAndExists(t *testing.T) {
	v := memVault(t, nil)

	assert.False(t, v.Exists("a/b"))
	require.NoError(t, v.CreateFolder("a/b"))
	assert.True(t, v.Exists("a/b"))
	assert.True(t, v.Exists("a"))

	assert.Error(t, v.CreateFolder("/"))
	assert.False(t, v.Exists(""))
}

func TestResolve(t *testing.T) {
	v := memVault(t, nil)

	tests := []struct {
		rel     string
		want    string
		wantErr error
	}{
		{rel: "a.md", want: "/vault/a.md"},
		{rel: "/sub/a.md", want: "/vault/sub/a.md"},
		{rel: "../../etc/passwd", wantErr: ErrUnsafePath},
		{rel: "..", wantErr: ErrUnsafePath},
		{rel: "/../x/n", wantErr: ErrUnsafePath},
		{rel: "sub/../a.md", wantErr: ErrUnsafePath},
		{rel: "sub//a.md", wantErr: ErrUnsafePath},
		{rel: "./a.md", wantErr: ErrUnsafePath},
		{rel: "."},
		{rel: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			p, err := v.resolve(tt.rel)
			if tt.want == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), p)
		})
	}
}

func TestTrash_MalformedEntryNeverHitsSibling(t *testing.T) {
	v := memVault(t, map[string]string{"x/n": "keep"})
	bad := vsync.Entry{Name: "n", Path: "../x"}

	assert.False(t, v.Exists(bad.FullPath()))
	assert.ErrorIs(t, v.Trash(bad, false), ErrUnsafePath)
	assert.ErrorIs(t, v.Trash(bad, true), ErrUnsafePath)
	assert.True(t, v.Exists("x/n"))
}

func TestTrash_VaultTrashWithCollisions(t *testing.T) {
	v := memVault(t, map[string]string{
		"note.md":     "one",
		"sub/note.md": "two",
	})

	require.NoError(t, v.Trash(vsync.Entry{Name: "note.md", Path: "/"}, false))
	require.NoError(t, v.Trash(vsync.Entry{Name: "note.md", Path: "/sub"}, false))

	assert.False(t, v.Exists("note.md"))
	assert.False(t, v.Exists("sub/note.md"))

	first, err := afero.ReadFile(v.fs, "/vault/.trash/note.md")
	require.NoError(t, err)
	assert.Equal(t, "one", string(first))

	second, err := afero.ReadFile(v.fs, "/vault/.trash/note_1.md")
	require.NoError(t, err)
	assert.Equal(t, "two", string(second))
}

func TestTrash_SystemTrashWritesInfo(t *testing.T) {
	v := memVault(t, map[string]string{"My Note.md": "body"})

	require.NoError(t, v.Trash(vsync.Entry{Name: "My Note.md", Path: "/"}, true))

	assert.False(t, v.Exists("My Note.md"))
	moved, err := afero.ReadFile(v.fs, "/xdg/Trash/files/My Note.md")
	require.NoError(t, err)
	assert.Equal(t, "body", string(moved))

	info, err := afero.ReadFile(v.fs, "/xdg/Trash/info/My Note.md.trashinfo")
	require.NoError(t, err)
	assert.Contains(t, string(info), "[Trash Info]\n")
	assert.Contains(t, string(info), "Path=/vault/My%20Note.md\n")
	assert.Contains(t, string(info), "DeletionDate=")
}

func TestTrash_NoSystemTrashFallsBack(t *testing.T) {
	v := memVault(t, map[string]string{"a.md": "a"})
	v.sysTrash = ""

	require.NoError(t, v.Trash(vsync.Entry{Name: "a.md", Path: "/"}, true))
	ok, err := afero.Exists(v.fs, "/vault/.trash/a.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrash_RefusesRoot(t *testing.T) {
	v := memVault(t, nil)
	assert.Error(t, v.Trash(vsync.Entry{Name: "", Path: "/", Kind: vsync.KindDir}, false))
}

func TestTrash_DirectoryOnDisk(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "sub", "a.md"), []byte("a"), 0644))
	v := New(afero.NewOsFs(), base, "")

	require.NoError(t, v.Trash(vsync.Entry{Name: "sub", Path: "/", Kind: vsync.KindDir}, false))

	assert.False(t, v.Exists("sub"))
	got, err := os.ReadFile(filepath.Join(base, TrashDirName, "sub", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestOpen_RejectsFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(f, nil, 0644))

	_, err := Open(f)
	assert.Error(t, err)

	v, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), v.Name())
}

func TestListAll_HiddenEntriesPlanNothingEitherWay(t *testing.T) {
	v := memVault(t, map[string]string{
		"note.md":            "hello",
		".obsidian/app.json": "{}",
	})
	local, err := v.ListAll()
	require.NoError(t, err)

	remote := vsync.Listing{
		{Name: ".obsidian", Path: "root", Kind: vsync.KindDir},
		{Name: "app.json", Path: "root/.obsidian", Size: 2},
		{Name: "note.md", Path: "root", Size: 5},
	}

	var ignore *vsync.SyncIgnore
	remote = ignore.Filter("root", remote)
	local = ignore.Filter("/", local)
	roots := vsync.Roots{Remote: "root", Base: "/vault"}

	assert.Empty(t, vsync.PlanDownload(remote, local, roots))
	assert.Empty(t, vsync.PlanUpload(remote, local, roots))
}
