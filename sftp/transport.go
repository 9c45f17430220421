// Package sftp connects the sync engine to a remote mirror over SFTP.
package sftp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mitchellh/go-homedir"
	gosftp "github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

const (
	connectedMessage    = "Connected to SFTP"
	disconnectedMessage = "Disconnected from SFTP"
)

// Transport dials SSH and opens an SFTP session per run.
type Transport struct {
	// Fs is the local filesystem transfers read from and write to.
	Fs afero.Fs
	// KnownHosts is a known_hosts file. Empty accepts any host key.
	KnownHosts string
	// Timeout bounds the TCP dial and the SSH handshake.
	Timeout time.Duration
}

var _ vsync.Transport = (*Transport)(nil)

// NewTransport creates a Transport over the OS filesystem.
func NewTransport(knownHosts string, timeout time.Duration) *Transport {
	return &Transport{Fs: afero.NewOsFs(), KnownHosts: knownHosts, Timeout: timeout}
}

// Connect opens a session for creds.
func (t *Transport) Connect(ctx context.Context, creds vsync.Credentials) (vsync.Session, error) {
	l := slog.Default().With("comp", "sftp")
	cfg, err := t.clientConfig(creds)
	if err != nil {
		return nil, err
	}

	addr := creds.Addr()
	d := net.Dialer{Timeout: t.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if t.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(t.Timeout)) //nolint:errcheck
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	conn.SetDeadline(time.Time{}) //nolint:errcheck

	sshClient := ssh.NewClient(c, chans, reqs)
	client, err := gosftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}

	l.Info("connected", "addr", addr, "user", creds.Username)
	return newSession(client, t.Fs, connectedMessage, sshClient.Close), nil
}

func (t *Transport) clientConfig(creds vsync.Credentials) (*ssh.ClientConfig, error) {
	hostKey, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	password := creds.Password
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         t.Timeout,
	}, nil
}

func (t *Transport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.KnownHosts == "" {
		slog.Default().With("comp", "sftp").Warn("no known_hosts configured, host key not verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	p, err := homedir.Expand(t.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("expand known_hosts path: %w", err)
	}
	cb, err := knownhosts.New(p)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}
