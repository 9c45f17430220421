package sftp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"

	"github.com/maruel/natural"
	gosftp "github.com/pkg/sftp"
	"github.com/spf13/afero"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// Session is one SFTP connection used for the length of a run.
type Session struct {
	client  *gosftp.Client
	fs      afero.Fs
	message string
	closeFn func() error // closes the underlying connection
	log     *slog.Logger
}

var _ vsync.Session = (*Session)(nil)

func newSession(client *gosftp.Client, fsys afero.Fs, message string, closeFn func() error) *Session {
	return &Session{
		client:  client,
		fs:      fsys,
		message: message,
		closeFn: closeFn,
		log:     slog.Default().With("comp", "sftp"),
	}
}

// Message describes the established connection.
func (s *Session) Message() string { return s.message }

// List walks root and returns every entry below it in pre-order. Each
// entry's Path is the directory it was listed from. A missing root is an
// empty mirror, not an error.
func (s *Session) List(ctx context.Context, root string) (vsync.Listing, error) {
	var out vsync.Listing
	err := s.walk(ctx, root, &out)
	if err != nil && errors.Is(err, os.ErrNotExist) && len(out) == 0 {
		if _, serr := s.client.Stat(root); errors.Is(serr, os.ErrNotExist) {
			s.log.Info("remote root does not exist yet", "root", root)
			return vsync.Listing{}, nil
		}
	}
	if err != nil {
		return nil, err
	}
	s.log.Debug("listed remote", "root", root, "entries", len(out))
	return out, nil
}

func (s *Session) walk(ctx context.Context, dir string, out *vsync.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return natural.Less(infos[i].Name(), infos[j].Name())
	})

	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		e := vsync.Entry{Name: name, Path: dir}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := s.client.Stat(e.FullPath())
			if err != nil {
				s.log.Warn("skipping dangling symlink", "path", e.FullPath(), "err", err)
				continue
			}
			info = target
		}

		e.Size = info.Size()
		e.ModTime = info.ModTime()
		if info.IsDir() {
			e.Kind = vsync.KindDir
			e.Size = 0
		}
		*out = append(*out, e)

		if e.IsDir() {
			if err := s.walk(ctx, e.FullPath(), out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Exists reports whether p exists remotely.
func (s *Session) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.client.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

// MakeDir creates p and any missing parents.
func (s *Session) MakeDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.MkdirAll(p); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

// RemoveDir removes p and everything below it, children first.
func (s *Session) RemoveDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	infos, err := s.client.ReadDir(p)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", p, err)
	}
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		child := path.Join(p, info.Name())
		if info.IsDir() {
			if err := s.RemoveDir(ctx, child); err != nil {
				return err
			}
			continue
		}
		if err := s.client.Remove(child); err != nil {
			return fmt.Errorf("remove %s: %w", child, err)
		}
	}
	if err := s.client.RemoveDirectory(p); err != nil {
		return fmt.Errorf("rmdir %s: %w", p, err)
	}
	return nil
}

// DeleteFile removes a single remote file.
func (s *Session) DeleteFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Remove(p); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// Close ends the SFTP session and the connection under it.
func (s *Session) Close() (string, error) {
	err := s.client.Close()
	if s.closeFn != nil {
		if cerr := s.closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return disconnectedMessage, fmt.Errorf("close sftp: %w", err)
	}
	return disconnectedMessage, nil
}
