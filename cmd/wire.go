package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ghyeongl/vaultsync/settings"
	"github.com/ghyeongl/vaultsync/sftp"
	vsync "github.com/ghyeongl/vaultsync/sync"
	"github.com/ghyeongl/vaultsync/vault"
)

// app is the set of components one command needs.
type app struct {
	vault  *vault.Vault
	ignore *vsync.SyncIgnore
	store  *vsync.Store // nil when history is disabled
	bus    *vsync.EventBus
	syncer *vsync.Syncer
}

// newApp validates s and assembles the vault, transport, history store
// and syncer.
func newApp(s *settings.Settings) (*app, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	v, err := vault.Open(s.Vault)
	if err != nil {
		return nil, err
	}
	ignore := vsync.LoadSyncIgnore(v.Fs(), filepath.Join(v.BasePath(), s.IgnoreFile))

	store, err := openStore(s)
	if err != nil {
		return nil, err
	}

	bus := vsync.NewEventBus()
	transport := sftp.NewTransport(s.KnownHosts, s.Timeout)
	syncer := vsync.NewSyncer(s.SyncOptions(ignore), transport, v, bus, store)

	slog.Debug("app ready", "vault", v.BasePath(), "remote", s.RemoteRoot(), "history", s.HistoryDB)
	return &app{vault: v, ignore: ignore, store: store, bus: bus, syncer: syncer}, nil
}

// openStore opens the history database, or returns nil when disabled.
func openStore(s *settings.Settings) (*vsync.Store, error) {
	if s.HistoryDB == "" {
		return nil, nil
	}
	db, err := vsync.OpenDB(s.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return vsync.NewStore(db), nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("close history", "err", err)
		}
	}
}
