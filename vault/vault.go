// Package vault is the local side of a sync: an afero-backed directory tree
// that can be listed, extended with folders, and trashed into.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// ErrUnsafePath is returned for paths that are not clean and inside the
// vault. They are never re-rooted onto a different entry.
var ErrUnsafePath = errors.New("unsafe vault path")

// TrashDirName is the vault-local trash used when the system trash is not
// requested or not available.
const TrashDirName = ".trash"

// Vault implements sync.LocalTree over an afero filesystem.
type Vault struct {
	fs       afero.Fs
	base     string
	sysTrash string // XDG trash root; empty disables the system trash
}

var _ vsync.LocalTree = (*Vault)(nil)

// New creates a Vault rooted at base on fsys. sysTrash is the XDG trash
// directory (containing files/ and info/), or empty.
func New(fsys afero.Fs, base, sysTrash string) *Vault {
	return &Vault{fs: fsys, base: filepath.Clean(base), sysTrash: sysTrash}
}

// Open creates a Vault on the OS filesystem. base may start with "~".
func Open(base string) (*Vault, error) {
	expanded, err := homedir.Expand(base)
	if err != nil {
		return nil, fmt.Errorf("expand vault path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}

	sysTrash, err := SystemTrashDir()
	if err != nil {
		sysTrash = ""
	}
	return New(afero.NewOsFs(), abs, sysTrash), nil
}

// BasePath is the filesystem path of the vault root.
func (v *Vault) BasePath() string { return v.base }

// Fs exposes the underlying filesystem.
func (v *Vault) Fs() afero.Fs { return v.fs }

// Name is the vault directory's base name.
func (v *Vault) Name() string { return filepath.Base(v.base) }

// CreateFolder creates relPath and any missing parents.
func (v *Vault) CreateFolder(relPath string) error {
	p, err := v.resolve(relPath)
	if err != nil {
		return err
	}
	if err := v.fs.MkdirAll(p, 0755); err != nil {
		return fmt.Errorf("create folder %s: %w", relPath, err)
	}
	return nil
}

// Exists reports whether relPath exists in the vault.
func (v *Vault) Exists(relPath string) bool {
	p, err := v.resolve(relPath)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(v.fs, p)
	return err == nil && ok
}

// resolve maps a slash-separated vault-relative path to a filesystem path.
// One leading slash is allowed. The vault root, paths escaping it and
// paths that only name an entry after cleaning are rejected.
func (v *Vault) resolve(relPath string) (string, error) {
	rel := strings.TrimPrefix(relPath, "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("path %q names the vault root", relPath)
	}
	if path.Clean(rel) != rel || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relPath)
	}
	return filepath.Join(v.base, filepath.FromSlash(rel)), nil
}
