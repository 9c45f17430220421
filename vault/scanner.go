package vault

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/spf13/afero"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

// ListAll walks the vault and returns a pre-order listing. The first entry
// is the vault root itself (empty name, path "/"). Hidden entries such as
// .obsidian and .trash are skipped along with everything below them.
// Siblings are ordered naturally ("note2" before "note10").
func (v *Vault) ListAll() (vsync.Listing, error) {
	l := slog.Default().With("comp", "scanner")
	l.Debug("scan start", "root", v.base)

	out := vsync.Listing{{Name: "", Path: "/", Kind: vsync.KindDir}}
	if err := v.walk("/", v.base, &out); err != nil {
		return nil, err
	}

	l.Debug("scan complete", "root", v.base, "entries", len(out)-1)
	return out, nil
}

func (v *Vault) walk(relDir, absDir string, out *vsync.Listing) error {
	infos, err := afero.ReadDir(v.fs, absDir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", absDir, err)
	}
	sortNatural(infos)

	for _, info := range infos {
		name := info.Name()
		if skipName(name) {
			continue
		}

		e := vsync.Entry{
			Name:    name,
			Path:    relDir,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if info.IsDir() {
			e.Kind = vsync.KindDir
			e.Size = 0
		}
		*out = append(*out, e)

		if info.IsDir() {
			if err := v.walk(path.Join(relDir, name), filepath.Join(absDir, name), out); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipName prunes hidden subtrees early. The engine applies the same rule
// to the remote listing, so both sides agree on what is invisible.
func skipName(name string) bool {
	return vsync.HiddenName(name) || strings.Contains(name, ".vaultsync-tmp")
}

func sortNatural(infos []os.FileInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return natural.Less(infos[i].Name(), infos[j].Name())
	})
}
