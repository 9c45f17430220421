package sync

import (
	"context"
	"errors"
)

// DaemonOptions configure the background worker.
type DaemonOptions struct {
	// LoadSync queues a download as soon as the daemon starts.
	LoadSync bool
	// Watch queues an upload after local changes settle.
	Watch bool
	// WatchRoot is the vault directory to watch.
	WatchRoot string
	Ignore    *SyncIgnore
}

// Daemon serializes run requests from the queue, the watcher and the HTTP
// API through a single Syncer.
type Daemon struct {
	syncer *Syncer
	queue  *RunQueue
	opts   DaemonOptions
}

// NewDaemon creates a new sync daemon.
func NewDaemon(syncer *Syncer, opts DaemonOptions) *Daemon {
	return &Daemon{
		syncer: syncer,
		queue:  NewRunQueue(),
		opts:   opts,
	}
}

// Queue returns the run queue, used by HTTP handlers to request runs.
func (d *Daemon) Queue() *RunQueue {
	return d.queue
}

// Syncer returns the syncer driven by the daemon.
func (d *Daemon) Syncer() *Syncer {
	return d.syncer
}

// Run starts the daemon. Blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	l := sub("daemon")
	l.Info("sync daemon starting", "loadSync", d.opts.LoadSync, "watch", d.opts.Watch)

	if d.opts.LoadSync {
		d.queue.Push(DirectionDownload)
	}

	if d.opts.Watch {
		watcher, err := NewWatcher(d.opts.WatchRoot, d.queue, d.opts.Ignore)
		if err != nil {
			return err
		}
		defer func() {
			watcher.Close()
			l.Debug("watcher closed")
		}()

		go func() {
			if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
				l.Warn("watcher stopped unexpectedly", "err", err)
			}
		}()
	}

	l.Info("worker loop started")
	done := ctx.Done()
	for {
		dir, ok := d.queue.Pop(done)
		if !ok {
			l.Info("worker stopping, context cancelled")
			break
		}

		l.Debug("queue pop", "direction", dir, "queueLen", d.queue.Len())

		rep, err := d.syncer.RunWait(ctx, dir)
		switch {
		case err != nil && ctx.Err() != nil:
			l.Info("worker stopping, context cancelled")
			l.Info("sync daemon stopped")
			return nil
		case errors.Is(err, ErrConnection), errors.Is(err, ErrListing):
			l.Warn("run aborted", "direction", dir, "err", err)
		case err != nil:
			l.Error("run failed", "direction", dir, "err", err)
		case rep != nil && rep.Failed() > 0:
			l.Warn("run finished with failures", "direction", dir, "run", rep.RunID, "failed", rep.Failed())
		default:
			l.Debug("run ok", "direction", dir)
		}
	}

	l.Info("sync daemon stopped")
	return nil
}
