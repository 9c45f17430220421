package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
)

// executor applies a plan through one session and the local tree.
type executor struct {
	sess        Session
	local       LocalTree
	systemTrash bool
	// notify receives a message per completed action; nil disables them.
	notify func(msg string)
}

// applyPlan runs every action in order. A failed action is recorded and
// the next one still runs.
func (x *executor) applyPlan(ctx context.Context, plan Plan, rep *Report) {
	l := sub("pipeline")
	l.Debug("apply start", "actions", len(plan))

	for i, a := range plan {
		start := nowFunc()
		status, msg, err := x.applyAction(ctx, a)
		o := Outcome{Action: a, Status: status, Duration: nowFunc().Sub(start)}

		switch status {
		case StatusFailed:
			terr := &TransferError{Action: a, Err: err}
			o.Err = terr.Error()
			l.Warn("action failed", "index", i, "type", a.Type, "target", a.Target, "local", terr.Local(), "err", err)
			if x.notify != nil {
				x.notify(failureMessage(a, err))
			}
		case StatusSkipped:
			l.Debug("action skipped", "index", i, "type", a.Type, "target", a.Target)
		default:
			if logEnabled(slog.LevelDebug) {
				l.Debug("action done", "index", i, "type", a.Type, "target", a.Target, "elapsed", o.Duration)
			}
			if x.notify != nil && msg != "" {
				x.notify(msg)
			}
		}
		rep.record(o)
	}

	l.Debug("apply complete", "actions", len(plan))
}

// applyAction performs one action and returns its status with the success
// message. Removals and local directory creation first check whether there
// is still anything to do.
func (x *executor) applyAction(ctx context.Context, a Action) (OutcomeStatus, string, error) {
	switch a.Type {
	case ActionCreateRemoteDir:
		if err := x.sess.MakeDir(ctx, a.Target); err != nil {
			return StatusFailed, "", fmt.Errorf("mkdir: %w", err)
		}
		return StatusSucceeded, "Successfully made directory:\n" + a.Target, nil

	case ActionUploadFile:
		if err := x.sess.Upload(ctx, a.Source, a.Target); err != nil {
			return StatusFailed, "", fmt.Errorf("upload: %w", err)
		}
		return StatusSucceeded, "Uploading success for\n" + a.Source, nil

	case ActionDeleteRemoteFile, ActionRemoveRemoteDir:
		exists, err := x.sess.Exists(ctx, a.Target)
		if err != nil {
			return StatusFailed, "", fmt.Errorf("stat: %w", err)
		}
		if !exists {
			return StatusSkipped, "", nil
		}
		if a.Type == ActionRemoveRemoteDir {
			if err := x.sess.RemoveDir(ctx, a.Target); err != nil {
				return StatusFailed, "", fmt.Errorf("rmdir: %w", err)
			}
			return StatusSucceeded, "Successfully removed directory:\n" + a.Target, nil
		}
		if err := x.sess.DeleteFile(ctx, a.Target); err != nil {
			return StatusFailed, "", fmt.Errorf("delete: %w", err)
		}
		return StatusSucceeded, "Delete success for\n" + a.Target, nil

	case ActionDownloadFile:
		if err := x.sess.Download(ctx, a.Source, a.Target); err != nil {
			return StatusFailed, "", fmt.Errorf("download: %w", err)
		}
		return StatusSucceeded, "Downloading success for\n" + a.Target, nil

	case ActionCreateLocalDir:
		if x.local.Exists(a.Target) {
			return StatusSkipped, "", nil
		}
		if err := x.local.CreateFolder(a.Target); err != nil {
			return StatusFailed, "", fmt.Errorf("create folder: %w", err)
		}
		return StatusSucceeded, "Successfully made local directory:\n" + a.Target, nil

	case ActionTrashLocalFile:
		if !x.local.Exists(a.Target) {
			return StatusSkipped, "", nil
		}
		if err := x.local.Trash(a.Entry, x.systemTrash); err != nil {
			return StatusFailed, "", fmt.Errorf("trash: %w", err)
		}
		return StatusSucceeded, fmt.Sprintf("Local file %s moved to trash.", path.Base(a.Target)), nil
	}
	return StatusFailed, "", fmt.Errorf("unknown action type %q", a.Type)
}

func failureMessage(a Action, err error) string {
	switch a.Type {
	case ActionUploadFile:
		return fmt.Sprintf("Uploading failed:\n%v", err)
	case ActionDownloadFile:
		return fmt.Sprintf("Downloading failed:\n%v", err)
	}
	return fmt.Sprintf("%s failed for %s:\n%v", a.Type, a.Target, err)
}
