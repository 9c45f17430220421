package vault

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// SystemTrashDir returns the freedesktop.org trash of the current user:
// $XDG_DATA_HOME/Trash, defaulting to ~/.local/share/Trash.
func SystemTrashDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "Trash"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "Trash"), nil
}

// Trash moves entry out of the vault. With useSystemTrash it goes to the
// system trash when one is configured, falling back to the vault's .trash
// folder if that move fails. Directories are moved with their contents.
// Returns an error for the vault root.
func (v *Vault) Trash(entry vsync.Entry, useSystemTrash bool) error {
	l := slog.Default().With("comp", "trash")
	rel := strings.TrimPrefix(filepath.ToSlash(entry.FullPath()), "/")
	src, err := v.resolve(rel)
	if err != nil {
		return fmt.Errorf("trash: %w", err)
	}

	if useSystemTrash && v.sysTrash != "" {
		dst, err := v.moveToSystemTrash(src)
		if err == nil {
			l.Info("moved to system trash", "path", rel, "trash", dst)
			return nil
		}
		l.Warn("system trash failed, using vault trash", "path", rel, "err", err)
	}

	dst, err := softDelete(v.fs, src, filepath.Join(v.base, TrashDirName))
	if err != nil {
		return err
	}
	l.Info("moved to vault trash", "path", rel, "trash", dst)
	return nil
}

// softDelete moves path into trashRoot, resolving name collisions with _N
// suffixes. Returns the final trash path.
func softDelete(fsys afero.Fs, path, trashRoot string) (string, error) {
	if err := fsys.MkdirAll(trashRoot, 0755); err != nil {
		return "", fmt.Errorf("mkdir trash: %w", err)
	}

	trashPath, err := freeName(fsys, trashRoot, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := fsys.Rename(path, trashPath); err != nil {
		return "", fmt.Errorf("move to trash: %w", err)
	}
	return trashPath, nil
}

// moveToSystemTrash follows the freedesktop.org trash layout: the item goes
// to files/ and a matching .trashinfo record to info/.
func (v *Vault) moveToSystemTrash(src string) (string, error) {
	filesDir := filepath.Join(v.sysTrash, "files")
	infoDir := filepath.Join(v.sysTrash, "info")
	for _, d := range []string{filesDir, infoDir} {
		if err := v.fs.MkdirAll(d, 0700); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", d, err)
		}
	}

	dst, err := freeName(v.fs, filesDir, filepath.Base(src))
	if err != nil {
		return "", err
	}
	infoPath := filepath.Join(infoDir, filepath.Base(dst)+".trashinfo")
	if err := afero.WriteFile(v.fs, infoPath, trashInfo(src, time.Now()), 0600); err != nil {
		return "", fmt.Errorf("write trashinfo: %w", err)
	}

	if err := v.fs.Rename(src, dst); err != nil {
		v.fs.Remove(infoPath) //nolint:errcheck
		return "", fmt.Errorf("move to system trash: %w", err)
	}
	return dst, nil
}

func trashInfo(origPath string, deleted time.Time) []byte {
	u := url.URL{Path: filepath.ToSlash(origPath)}
	return []byte(fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		u.EscapedPath(), deleted.Format("2006-01-02T15:04:05")))
}

// freeName returns dir/base, or dir/name_N.ext for the first free N.
func freeName(fsys afero.Fs, dir, base string) (string, error) {
	candidate := filepath.Join(dir, base)
	exists, err := afero.Exists(fsys, candidate)
	if err != nil {
		return "", fmt.Errorf("stat trash: %w", err)
	}
	if !exists {
		return candidate, nil
	}

	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, i, ext))
		if exists, err := afero.Exists(fsys, candidate); err != nil {
			return "", fmt.Errorf("stat trash: %w", err)
		} else if !exists {
			return candidate, nil
		}
	}
}
