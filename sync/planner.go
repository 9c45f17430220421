package sync

import "log/slog"

// keyIndex looks up entries of one listing by key and kind. Each entry can
// be consumed once; duplicate keys are served in listing order.
type keyIndex struct {
	slots    map[string][]int
	kinds    []Kind
	consumed []bool
}

func newKeyIndex(root string, l Listing) *keyIndex {
	ix := &keyIndex{
		slots:    make(map[string][]int, len(l)),
		kinds:    make([]Kind, len(l)),
		consumed: make([]bool, len(l)),
	}
	for i, e := range l {
		ix.kinds[i] = e.Kind
		if IsRoot(root, e) {
			continue
		}
		if key, ok := RelKey(root, e); ok {
			ix.slots[key] = append(ix.slots[key], i)
		}
	}
	return ix
}

// lookup returns the first unconsumed entry with the given key and kind.
func (ix *keyIndex) lookup(key string, kind Kind) (int, bool) {
	for _, i := range ix.slots[key] {
		if !ix.consumed[i] && ix.kinds[i] == kind {
			return i, true
		}
	}
	return -1, false
}

func (ix *keyIndex) consume(i int) { ix.consumed[i] = true }

// inSync reports whether a matched pair needs no transfer.
func inSync(a, b Entry) bool {
	return a.IsDir() || a.Size == b.Size
}

// PlanUpload reconciles the remote mirror toward the local vault.
// Deletions of unmatched remote entries come first, then directory
// creations and uploads of everything local that is missing or changed
// remotely. Both groups keep listing order.
func PlanUpload(remote, local Listing, roots Roots) Plan {
	l := sub("planner")
	localIx := newKeyIndex(localRoot, local)

	var removals, creates Plan
	for _, re := range remote {
		if IsRoot(roots.Remote, re) {
			continue
		}
		if key, ok := RelKey(roots.Remote, re); ok {
			if i, found := localIx.lookup(key, re.Kind); found {
				if inSync(re, local[i]) {
					localIx.consume(i)
				}
				continue
			}
		}

		var a Action
		if re.IsDir() {
			a = RemoveRemoteDir(re.FullPath())
		} else {
			a = DeleteRemoteFile(re.FullPath())
		}
		a.Entry = re
		removals = append(removals, a)
	}

	for i, le := range local {
		if localIx.consumed[i] || IsRoot(localRoot, le) {
			continue
		}
		key, ok := RelKey(localRoot, le)
		if !ok {
			l.Warn("skipping local entry with malformed path", "path", le.Path, "name", le.Name)
			continue
		}

		var a Action
		if le.IsDir() {
			a = CreateRemoteDir(roots.joinRemote(key))
		} else {
			a = UploadFile(roots.joinLocal(localRel(le)), roots.joinRemote(key))
		}
		a.Entry = le
		creates = append(creates, a)
	}

	plan := append(removals, creates...)
	if logEnabled(slog.LevelDebug) {
		l.Debug("upload plan", "remote", len(remote), "local", len(local),
			"removals", len(removals), "creates", len(creates))
	}
	return plan
}

// PlanDownload reconciles the local vault toward the remote mirror.
// Unmatched local entries are trashed first, then missing or changed
// remote files are downloaded and missing directories created.
func PlanDownload(remote, local Listing, roots Roots) Plan {
	l := sub("planner")
	remoteIx := newKeyIndex(roots.Remote, remote)
	localDirs := make(map[string]bool)

	var trash, creates Plan
	for _, le := range local {
		if IsRoot(localRoot, le) {
			continue
		}
		key, ok := RelKey(localRoot, le)
		if ok {
			if le.IsDir() {
				localDirs[key] = true
			}
			if i, found := remoteIx.lookup(key, le.Kind); found {
				if inSync(le, remote[i]) {
					remoteIx.consume(i)
				}
				continue
			}
		}

		a := TrashLocalFile(localRel(le))
		a.Entry = le
		trash = append(trash, a)
	}

	for i, re := range remote {
		if remoteIx.consumed[i] || IsRoot(roots.Remote, re) {
			continue
		}
		key, ok := RelKey(roots.Remote, re)
		if !ok {
			l.Warn("skipping remote entry with malformed path", "path", re.Path, "name", re.Name)
			continue
		}

		var a Action
		if re.IsDir() {
			if localDirs[key] {
				continue
			}
			a = CreateLocalDir(key)
		} else {
			a = DownloadFile(re.FullPath(), roots.joinLocal(key))
		}
		a.Entry = re
		creates = append(creates, a)
	}

	plan := append(trash, creates...)
	if logEnabled(slog.LevelDebug) {
		l.Debug("download plan", "remote", len(remote), "local", len(local),
			"trash", len(trash), "creates", len(creates))
	}
	return plan
}

// PlanFor dispatches to the planner for dir.
func PlanFor(dir Direction, remote, local Listing, roots Roots) Plan {
	if dir == DirectionDownload {
		return PlanDownload(remote, local, roots)
	}
	return PlanUpload(remote, local, roots)
}
