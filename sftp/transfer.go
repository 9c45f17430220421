package sftp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"
)

const tmpSuffix = ".vaultsync-tmp"

// maxNameLen is the common filename limit of local filesystems.
const maxNameLen = 255

// ErrSourceModified is returned when the remote file changed size while it
// was being downloaded.
var ErrSourceModified = errors.New("source modified during copy")

// Upload copies localPath to remotePath, creating remote parents. An
// existing remote file is truncated and overwritten.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := s.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat local: %w", err)
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := s.client.MkdirAll(dir); err != nil {
			return fmt.Errorf("mkdir remote parent: %w", err)
		}
	}

	dst, err := s.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write remote: %w", err)
	}

	if err := s.client.Chtimes(remotePath, time.Now(), info.ModTime()); err != nil {
		s.log.Debug("remote chtimes failed", "path", remotePath, "err", err)
	}
	s.log.Debug("uploaded", "local", localPath, "remote", remotePath, "bytes", n)
	return nil
}

// Download copies remotePath to localPath atomically:
//  1. Record the remote size
//  2. Copy into a temp file next to the destination
//  3. Verify the remote size is unchanged
//  4. Rename the temp file into place, keeping the remote mtime
func (s *Session) Download(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	before, err := s.client.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat remote: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("mkdir local parent: %w", err)
	}

	src, err := s.client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote: %w", err)
	}
	defer src.Close()

	tmpPath := safeTmpPath(localPath)
	tmp, err := s.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("copy: %w", err)
	}

	after, err := s.client.Stat(remotePath)
	if err != nil {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("re-stat remote: %w", err)
	}
	if after.Size() != before.Size() || n != after.Size() {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return ErrSourceModified
	}

	if err := s.fs.Chtimes(tmpPath, time.Now(), before.ModTime()); err != nil {
		s.log.Debug("local chtimes failed", "path", tmpPath, "err", err)
	}
	if err := s.fs.Rename(tmpPath, localPath); err != nil {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("rename tmp to dst: %w", err)
	}

	s.log.Debug("downloaded", "remote", remotePath, "local", localPath, "bytes", n)
	return nil
}

// safeTmpPath returns a hidden temp path next to dst. Long names are
// shortened with a hash of the original so the result stays within the
// filename limit and is stable for the same dst.
func safeTmpPath(dst string) string {
	dir, base := filepath.Split(dst)
	name := "." + base + tmpSuffix
	if len(name) <= maxNameLen {
		return filepath.Join(dir, name)
	}
	sum := sha256.Sum256([]byte(base))
	hash := hex.EncodeToString(sum[:8])
	keep := maxNameLen - len(tmpSuffix) - len(hash) - 2
	return filepath.Join(dir, "."+base[:keep]+"-"+hash+tmpSuffix)
}
