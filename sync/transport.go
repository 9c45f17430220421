package sync

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Credentials identify the remote account.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns host:port, defaulting the port to 22.
func (c Credentials) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// String is the connection banner shown before dialing.
func (c Credentials) String() string {
	return fmt.Sprintf("%s\n%s", c.Addr(), c.Username)
}

// Transport opens sessions against the remote mirror.
type Transport interface {
	Connect(ctx context.Context, creds Credentials) (Session, error)
}

// Session is one open connection. It is used by a single run and closed
// at its end.
type Session interface {
	// Message describes the established connection.
	Message() string
	// List walks root recursively and returns a pre-order listing. The root
	// itself is not included.
	List(ctx context.Context, root string) (Listing, error)
	Exists(ctx context.Context, path string) (bool, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	// MakeDir creates path and any missing parents.
	MakeDir(ctx context.Context, path string) error
	// RemoveDir removes path and everything below it.
	RemoveDir(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
	// Close ends the session and returns a disconnect message.
	Close() (string, error)
}

// LocalTree is the vault side of a sync.
type LocalTree interface {
	// ListAll returns every local entry in pre-order. Paths are relative to
	// the vault root.
	ListAll() (Listing, error)
	// BasePath is the filesystem path of the vault root.
	BasePath() string
	CreateFolder(relPath string) error
	Trash(entry Entry, useSystemTrash bool) error
	Exists(relPath string) bool
}
