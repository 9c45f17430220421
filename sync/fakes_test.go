package sync

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	gosync "sync"
)

// fakeRemote is an in-memory mirror. Keys are cleaned full paths.
type fakeRemote struct {
	mu    gosync.Mutex
	files map[string]int64
	dirs  map[string]bool
	local *fakeLocal

	connectErr error
	listErr    error
	failOn     map[string]error // target path -> error
	calls      []string
	closed     int

	// connected, when set, is signalled on Connect; release gates its return.
	connected chan struct{}
	release   chan struct{}
}

func newFakeRemote(local *fakeLocal) *fakeRemote {
	return &fakeRemote{
		files:  make(map[string]int64),
		dirs:   make(map[string]bool),
		local:  local,
		failOn: make(map[string]error),
	}
}

func (r *fakeRemote) put(p string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p = path.Clean(p)
	r.files[p] = size
	for d := path.Dir(p); d != "." && d != "/"; d = path.Dir(d) {
		r.dirs[d] = true
	}
}

func (r *fakeRemote) mkdir(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for d := path.Clean(p); d != "." && d != "/"; d = path.Dir(d) {
		r.dirs[d] = true
	}
}

func (r *fakeRemote) has(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p = path.Clean(p)
	_, ok := r.files[p]
	return ok || r.dirs[p]
}

func (r *fakeRemote) Connect(ctx context.Context, _ Credentials) (Session, error) {
	if r.connected != nil {
		r.connected <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.connectErr != nil {
		return nil, r.connectErr
	}
	return &fakeSession{r: r}, nil
}

type fakeSession struct {
	r *fakeRemote
}

func (s *fakeSession) record(call string) error {
	s.r.calls = append(s.r.calls, call)
	for target, err := range s.r.failOn {
		if strings.HasSuffix(call, " "+target) {
			return err
		}
	}
	return nil
}

func (s *fakeSession) Message() string { return "Connected to SFTP" }

func (s *fakeSession) List(_ context.Context, root string) (Listing, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.listErr != nil {
		return nil, s.r.listErr
	}
	clean := path.Clean(root)
	var paths []string
	for p := range s.r.dirs {
		if strings.HasPrefix(p, clean+"/") {
			paths = append(paths, p)
		}
	}
	for p := range s.r.files {
		if strings.HasPrefix(p, clean+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make(Listing, 0, len(paths))
	for _, p := range paths {
		e := Entry{Name: path.Base(p), Path: path.Dir(p)}
		if s.r.dirs[p] {
			e.Kind = KindDir
		} else {
			e.Size = s.r.files[p]
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeSession) Exists(_ context.Context, p string) (bool, error) {
	return s.r.has(p), nil
}

func (s *fakeSession) Upload(_ context.Context, localPath, remotePath string) error {
	if err := s.record("upload " + remotePath); err != nil {
		return err
	}
	size, ok := s.r.local.sizeAt(localPath)
	if !ok {
		return errors.New("local file missing")
	}
	s.r.put(remotePath, size)
	return nil
}

func (s *fakeSession) Download(_ context.Context, remotePath, localPath string) error {
	if err := s.record("download " + localPath); err != nil {
		return err
	}
	s.r.mu.Lock()
	size, ok := s.r.files[path.Clean(remotePath)]
	s.r.mu.Unlock()
	if !ok {
		return errors.New("remote file missing")
	}
	s.r.local.putAt(localPath, size)
	return nil
}

func (s *fakeSession) MakeDir(_ context.Context, p string) error {
	if err := s.record("mkdir " + p); err != nil {
		return err
	}
	s.r.mkdir(p)
	return nil
}

func (s *fakeSession) RemoveDir(_ context.Context, p string) error {
	if err := s.record("rmdir " + p); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	p = path.Clean(p)
	for f := range s.r.files {
		if strings.HasPrefix(f, p+"/") {
			delete(s.r.files, f)
		}
	}
	for d := range s.r.dirs {
		if d == p || strings.HasPrefix(d, p+"/") {
			delete(s.r.dirs, d)
		}
	}
	return nil
}

func (s *fakeSession) DeleteFile(_ context.Context, p string) error {
	if err := s.record("delete " + p); err != nil {
		return err
	}
	s.r.mu.Lock()
	delete(s.r.files, path.Clean(p))
	s.r.mu.Unlock()
	return nil
}

func (s *fakeSession) Close() (string, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.closed++
	return "Disconnected from SFTP", nil
}

// fakeLocal is an in-memory vault. Keys are vault-relative paths.
type fakeLocal struct {
	mu       gosync.Mutex
	base     string
	files    map[string]int64
	dirs     map[string]bool
	trashed  []string
	trashErr map[string]error
	listErr  error
}

func newFakeLocal(base string) *fakeLocal {
	return &fakeLocal{
		base:     base,
		files:    make(map[string]int64),
		dirs:     make(map[string]bool),
		trashErr: make(map[string]error),
	}
}

func (l *fakeLocal) put(rel string, size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[rel] = size
	for d := path.Dir(rel); d != "."; d = path.Dir(d) {
		l.dirs[d] = true
	}
}

func (l *fakeLocal) rel(fsPath string) string {
	return strings.TrimPrefix(strings.TrimPrefix(fsPath, l.base), "/")
}

func (l *fakeLocal) sizeAt(fsPath string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	size, ok := l.files[l.rel(fsPath)]
	return size, ok
}

func (l *fakeLocal) putAt(fsPath string, size int64) {
	l.put(l.rel(fsPath), size)
}

func (l *fakeLocal) ListAll() (Listing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	var paths []string
	for d := range l.dirs {
		paths = append(paths, d)
	}
	for f := range l.files {
		paths = append(paths, f)
	}
	sort.Strings(paths)

	out := Listing{{Name: "", Path: "/", Kind: KindDir}}
	for _, p := range paths {
		e := Entry{Name: path.Base(p), Path: "/"}
		if d := path.Dir(p); d != "." {
			e.Path = "/" + d
		}
		if l.dirs[p] {
			e.Kind = KindDir
		} else {
			e.Size = l.files[p]
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *fakeLocal) BasePath() string { return l.base }

func (l *fakeLocal) CreateFolder(rel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for d := path.Clean(rel); d != "."; d = path.Dir(d) {
		l.dirs[d] = true
	}
	return nil
}

func (l *fakeLocal) Trash(e Entry, _ bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rel := strings.TrimPrefix(path.Clean(e.FullPath()), "/")
	if err := l.trashErr[rel]; err != nil {
		return err
	}
	l.trashed = append(l.trashed, rel)
	delete(l.files, rel)
	delete(l.dirs, rel)
	for f := range l.files {
		if strings.HasPrefix(f, rel+"/") {
			delete(l.files, f)
		}
	}
	for d := range l.dirs {
		if strings.HasPrefix(d, rel+"/") {
			delete(l.dirs, d)
		}
	}
	return nil
}

func (l *fakeLocal) Exists(rel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	_, ok := l.files[rel]
	return ok || l.dirs[rel]
}
