package sftp

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"

	gosftp "github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// newTestSession wires a client to an in-memory SFTP server over a pipe.
func newTestSession(t *testing.T) (*Session, afero.Fs) {
	t.Helper()
	c1, c2 := net.Pipe()
	server := gosftp.NewRequestServer(c1, gosftp.InMemHandler())
	go server.Serve() //nolint:errcheck

	client, err := gosftp.NewClientPipe(c2, c2)
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	s := newSession(client, fsys, connectedMessage, func() error {
		server.Close() //nolint:errcheck
		return nil
	})
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s, fsys
}

func putRemote(t *testing.T, s *Session, p, content string) {
	t.Helper()
	require.NoError(t, s.client.MkdirAll(filepath.Dir(p)))
	f, err := s.client.Create(p)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestList_PreOrderNatural(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	putRemote(t, s, "/root/b.md", "bb")
	putRemote(t, s, "/root/sub/n10.md", "x")
	putRemote(t, s, "/root/sub/n2.md", "yyy")
	putRemote(t, s, "/root/a.md", "a")

	got, err := s.List(ctx, "/root")
	require.NoError(t, err)

	var full []string
	for _, e := range got {
		full = append(full, e.FullPath())
	}
	assert.Equal(t, []string{"/root/a.md", "/root/b.md", "/root/sub", "/root/sub/n2.md", "/root/sub/n10.md"}, full)

	assert.Equal(t, "/root", got[0].Path)
	assert.Equal(t, vsync.KindFile, got[0].Kind)
	assert.Equal(t, int64(1), got[0].Size)
	assert.Equal(t, vsync.KindDir, got[2].Kind)
	assert.Equal(t, "/root/sub", got[3].Path)
	assert.Equal(t, int64(3), got[3].Size)
}

func TestList_MissingRootIsEmpty(t *testing.T) {
	s, _ := newTestSession(t)

	got, err := s.List(context.Background(), "/nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExistsAndDelete(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	putRemote(t, s, "/root/a.md", "a")

	ok, err := s.Exists(ctx, "/root/a.md")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.DeleteFile(ctx, "/root/a.md"))

	ok, err = s.Exists(ctx, "/root/a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, s.DeleteFile(ctx, "/root/a.md"))
}

func TestMakeDirAndRemoveDir(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.MakeDir(ctx, "/root/a/b/c"))
	putRemote(t, s, "/root/a/b/c/deep.md", "deep")
	putRemote(t, s, "/root/a/top.md", "top")

	require.NoError(t, s.RemoveDir(ctx, "/root/a"))

	ok, err := s.Exists(ctx, "/root/a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, "/root")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s, fsys := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fsys, "/vault/notes/a.md", []byte("hello world"), 0644))
	require.NoError(t, s.Upload(ctx, "/vault/notes/a.md", "/root/notes/a.md"))

	info, err := s.client.Stat("/root/notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size())

	require.NoError(t, s.Download(ctx, "/root/notes/a.md", "/other/deep/a.md"))
	got, err := afero.ReadFile(fsys, "/other/deep/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	leftover, err := afero.Exists(fsys, safeTmpPath("/other/deep/a.md"))
	require.NoError(t, err)
	assert.False(t, leftover)
}

func TestUpload_OverwritesShorterContent(t *testing.T) {
	s, fsys := newTestSession(t)
	ctx := context.Background()
	putRemote(t, s, "/root/a.md", "a much longer remote body")

	require.NoError(t, afero.WriteFile(fsys, "/vault/a.md", []byte("short"), 0644))
	require.NoError(t, s.Upload(ctx, "/vault/a.md", "/root/a.md"))

	info, err := s.client.Stat("/root/a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}

func TestUpload_MissingLocalFails(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Error(t, s.Upload(context.Background(), "/vault/missing.md", "/root/missing.md"))
}

func TestDownload_MissingRemoteFails(t *testing.T) {
	s, fsys := newTestSession(t)
	err := s.Download(context.Background(), "/root/missing.md", "/vault/missing.md")
	assert.Error(t, err)

	ok, _ := afero.Exists(fsys, "/vault/missing.md")
	assert.False(t, ok)
}

func TestClose_ReturnsMessage(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Equal(t, connectedMessage, s.Message())

	msg, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, disconnectedMessage, msg)
}

func TestSafeTmpPath(t *testing.T) {
	assert.Equal(t, "/dir/.short.txt.vaultsync-tmp", safeTmpPath("/dir/short.txt"))

	long := strings.Repeat("a", 250) + ".pdf"
	got := safeTmpPath("/dir/" + long)
	assert.Equal(t, "/dir", filepath.Dir(got))
	assert.LessOrEqual(t, len(filepath.Base(got)), maxNameLen)
	assert.True(t, strings.HasSuffix(got, tmpSuffix))
	assert.Equal(t, got, safeTmpPath("/dir/"+long))
}

func TestHostKeyCallback(t *testing.T) {
	tr := &Transport{}
	cb, err := tr.hostKeyCallback()
	require.NoError(t, err)
	assert.NotNil(t, cb)

	tr.KnownHosts = filepath.Join(t.TempDir(), "missing_known_hosts")
	_, err = tr.hostKeyCallback()
	assert.Error(t, err)
}

func TestConnect_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	tr := &Transport{Fs: afero.NewMemMapFs()}
	_, err = tr.Connect(context.Background(), vsync.Credentials{Host: "127.0.0.1", Port: addr.Port, Username: "u"})
	assert.Error(t, err)
}
