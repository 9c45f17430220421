package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/marusama/semaphore/v2"
)

// Options configure a Syncer.
type Options struct {
	Credentials
	// RemoteRoot is the mirror path on the server, e.g. "./obsidian/MyVault".
	RemoteRoot string
	// Notify emits a notice per completed action and for connect/disconnect.
	Notify         bool
	UseSystemTrash bool
	Ignore         *SyncIgnore
}

// Syncer runs one sync at a time between a LocalTree and a Transport.
type Syncer struct {
	opts      Options
	transport Transport
	local     LocalTree
	bus       *EventBus // optional
	store     *Store    // optional
	sem       semaphore.Semaphore
	phase     *PhaseMachine
	newRunID  func() string
}

// NewSyncer creates a Syncer. bus and store may be nil.
func NewSyncer(opts Options, transport Transport, local LocalTree, bus *EventBus, store *Store) *Syncer {
	s := &Syncer{
		opts:      opts,
		transport: transport,
		local:     local,
		bus:       bus,
		store:     store,
		sem:       semaphore.New(1),
		newRunID:  uuid.NewString,
	}
	s.phase = NewPhaseMachine(func(from, to Phase) {
		sub("engine").Debug("phase", "from", from, "to", to)
	})
	return s
}

// Phase returns the current phase.
func (s *Syncer) Phase() Phase { return s.phase.Current() }

// Options returns the configuration the Syncer was built with.
func (s *Syncer) Options() Options { return s.opts }

// Run performs one sync in direction dir. It returns ErrSyncAlreadyRunning
// if another run is in flight, and (nil, nil) when no host is configured.
// On a connection or listing failure the partial report is returned along
// with the error.
func (s *Syncer) Run(ctx context.Context, dir Direction) (*Report, error) {
	if s.opts.Host == "" {
		sub("engine").Debug("no host configured, skipping run", "direction", dir)
		return nil, nil
	}
	if !s.sem.TryAcquire(1) {
		return nil, ErrSyncAlreadyRunning
	}
	defer s.sem.Release(1)
	return s.run(ctx, dir)
}

// RunWait is Run but waits for an in-flight run to finish instead of
// rejecting.
func (s *Syncer) RunWait(ctx context.Context, dir Direction) (*Report, error) {
	if s.opts.Host == "" {
		sub("engine").Debug("no host configured, skipping run", "direction", dir)
		return nil, nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for running sync: %w", err)
	}
	defer s.sem.Release(1)
	return s.run(ctx, dir)
}

func (s *Syncer) run(ctx context.Context, dir Direction) (*Report, error) {
	l := sub("engine")
	rep := newReport(s.newRunID(), dir)
	defer func() {
		if s.phase.Current() != PhaseIdle {
			s.phase.reset()
		}
	}()

	l.Info("sync starting", "run", rep.RunID, "direction", dir, "host", s.opts.Addr(), "root", s.opts.RemoteRoot)

	s.to(rep, PhaseConnecting)
	s.emit(rep, NoticeInfo, "Connecting to SFTP for file sync:\n"+s.opts.Credentials.String())
	sess, err := s.transport.Connect(ctx, s.opts.Credentials)
	if err != nil {
		return s.fail(rep, nil, fmt.Errorf("%w: %w", ErrConnection, err))
	}
	rep.ConnectMessage = sess.Message()
	if s.opts.Notify {
		s.emit(rep, NoticeInfo, rep.ConnectMessage)
	}

	s.to(rep, PhaseListing)
	remote, err := sess.List(ctx, s.opts.RemoteRoot)
	if err != nil {
		return s.fail(rep, sess, fmt.Errorf("%w: remote %s: %w", ErrListing, s.opts.RemoteRoot, err))
	}
	local, err := s.local.ListAll()
	if err != nil {
		return s.fail(rep, sess, fmt.Errorf("%w: local %s: %w", ErrListing, s.local.BasePath(), err))
	}

	s.to(rep, PhaseDiffing)
	roots := Roots{Remote: s.opts.RemoteRoot, Base: s.local.BasePath()}
	remote = s.opts.Ignore.Filter(roots.Remote, remote)
	local = s.opts.Ignore.Filter(localRoot, local)
	plan := PlanFor(dir, remote, local, roots)
	l.Info("plan ready", "run", rep.RunID, "direction", dir, "remote", len(remote), "local", len(local), "actions", len(plan))

	s.to(rep, PhaseApplying)
	x := &executor{sess: sess, local: s.local, systemTrash: s.opts.UseSystemTrash}
	if s.opts.Notify {
		x.notify = func(msg string) { s.emit(rep, NoticeInfo, msg) }
	}
	x.applyPlan(ctx, plan, rep)

	s.to(rep, PhaseDisconnecting)
	msg, err := sess.Close()
	if err != nil {
		l.Warn("disconnect failed", "run", rep.RunID, "err", err)
	}
	rep.DisconnectMessage = msg
	if s.opts.Notify && msg != "" {
		s.emit(rep, NoticeInfo, msg)
	}

	s.to(rep, PhaseIdle)
	s.emit(rep, NoticeInfo, "Done!")
	s.finish(rep)

	l.Info("sync complete", "run", rep.RunID, "direction", dir,
		"succeeded", rep.Succeeded(), "failed", rep.Failed(), "skipped", rep.Skipped(), "elapsed", rep.Duration())
	return rep, nil
}

// fail aborts a run in Connecting or Listing. sess, if open, is closed
// without a notice.
func (s *Syncer) fail(rep *Report, sess Session, err error) (*Report, error) {
	l := sub("engine")
	if sess != nil {
		if _, cerr := sess.Close(); cerr != nil {
			l.Debug("close after failure", "run", rep.RunID, "err", cerr)
		}
	}

	s.to(rep, PhaseFailed)
	rep.Err = err.Error()
	l.Error("sync failed", "run", rep.RunID, "direction", rep.Direction, "err", err)
	s.emit(rep, NoticeError, fmt.Sprintf("Failed to connect to SFTP: %v", err))
	s.finish(rep)

	if terr := s.phase.To(PhaseIdle); terr != nil {
		l.Error("phase reset", "err", terr)
	}
	return rep, err
}

// to advances the machine and mirrors the phase into the report.
func (s *Syncer) to(rep *Report, p Phase) {
	if err := s.phase.To(p); err != nil {
		sub("engine").Error("phase change rejected", "run", rep.RunID, "err", err)
		return
	}
	rep.Phase = p
}

func (s *Syncer) emit(rep *Report, level NoticeLevel, msg string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Notice{RunID: rep.RunID, Level: level, Phase: rep.Phase, Message: msg})
}

// finish stamps the report and stores it when history is enabled. A storage
// failure never fails the run.
func (s *Syncer) finish(rep *Report) {
	rep.FinishedAt = nowFunc()
	if s.store == nil {
		return
	}
	if err := s.store.SaveReport(rep); err != nil {
		sub("engine").Warn("save run history failed", "run", rep.RunID, "err", err)
	}
}
