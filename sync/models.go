package sync

import (
	"path"
	"time"
)

// nowFunc is the time source, replaceable in tests.
var nowFunc = time.Now

// Kind distinguishes files from directories. It is resolved once when a
// Listing is built.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Entry is a single file or directory on one side of the sync.
// Path is the parent path using "/" separators: remote entries are rooted
// at the mirror path, local entries at the vault root.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Kind    Kind      `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime,omitempty"` // informational only
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// FullPath joins Path and Name without cleaning away a leading "./".
func (e Entry) FullPath() string {
	switch {
	case e.Name == "":
		return e.Path
	case e.Path == "":
		return e.Name
	case e.Path[len(e.Path)-1] == '/':
		return e.Path + e.Name
	}
	return e.Path + "/" + e.Name
}

// Listing is a pre-order snapshot of one side: directories precede their
// descendants.
type Listing []Entry

// Direction selects the source of truth for a run.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionUpload, DirectionDownload:
		return Direction(s), true
	}
	return "", false
}

// ActionType names one reconciliation step.
type ActionType string

const (
	ActionCreateRemoteDir  ActionType = "CreateRemoteDir"
	ActionUploadFile       ActionType = "UploadFile"
	ActionDeleteRemoteFile ActionType = "DeleteRemoteFile"
	ActionRemoveRemoteDir  ActionType = "RemoveRemoteDir"
	ActionDownloadFile     ActionType = "DownloadFile"
	ActionCreateLocalDir   ActionType = "CreateLocalDir"
	ActionTrashLocalFile   ActionType = "TrashLocalFile"
)

// IsLocal reports whether the action mutates the local tree.
func (t ActionType) IsLocal() bool {
	switch t {
	case ActionDownloadFile, ActionCreateLocalDir, ActionTrashLocalFile:
		return true
	}
	return false
}

// IsRemoval reports whether the action deletes or trashes something.
func (t ActionType) IsRemoval() bool {
	switch t {
	case ActionDeleteRemoteFile, ActionRemoveRemoteDir, ActionTrashLocalFile:
		return true
	}
	return false
}

// Action is one step of a Plan. Source is only set for transfers; every
// other action has a single Target.
type Action struct {
	Type   ActionType `json:"type"`
	Source string     `json:"source,omitempty"`
	Target string     `json:"target"`
	Entry  Entry      `json:"entry"`
}

func CreateRemoteDir(p string) Action {
	return Action{Type: ActionCreateRemoteDir, Target: p}
}

func UploadFile(localPath, remotePath string) Action {
	return Action{Type: ActionUploadFile, Source: localPath, Target: remotePath}
}

func DeleteRemoteFile(p string) Action {
	return Action{Type: ActionDeleteRemoteFile, Target: p}
}

func RemoveRemoteDir(p string) Action {
	return Action{Type: ActionRemoveRemoteDir, Target: p}
}

func DownloadFile(remotePath, localPath string) Action {
	return Action{Type: ActionDownloadFile, Source: remotePath, Target: localPath}
}

func CreateLocalDir(p string) Action {
	return Action{Type: ActionCreateLocalDir, Target: p}
}

func TrashLocalFile(p string) Action {
	return Action{Type: ActionTrashLocalFile, Target: p}
}

// Plan is the ordered list of actions for one run.
type Plan []Action

// Roots anchors both sides of a comparison.
type Roots struct {
	Remote string // mirror root, e.g. "./obsidian/MyVault"
	Base   string // local filesystem path of the vault
}

// joinLocal builds a filesystem path under the vault base.
func (r Roots) joinLocal(rel string) string {
	if r.Base == "" {
		return rel
	}
	return path.Join(r.Base, rel)
}

// joinRemote builds a remote path under the mirror root.
func (r Roots) joinRemote(rel string) string {
	if r.Remote == "" {
		return rel
	}
	return path.Join(r.Remote, rel)
}
