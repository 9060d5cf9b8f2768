// Package ssh copies progress backups to and from a remote host over SFTP.
package ssh

import (
	"context"
	"os"
	"time"
)

// FileTransfer moves single files between this machine and a remote host.
type FileTransfer interface {
	// Upload copies localPath to remotePath, creating parent directories.
	Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) (*TransferResult, error)

	// Download copies remotePath to localPath. The local file is replaced
	// atomically.
	Download(ctx context.Context, remotePath, localPath string) (*TransferResult, error)

	// Close releases the session and the underlying connection.
	Close() error
}

// TransferResult describes one completed copy.
type TransferResult struct {
	// BytesTransferred is the number of bytes copied.
	BytesTransferred int64

	// Checksum is the hex SHA256 of the copied content.
	Checksum string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the time the copy took.
func (r *TransferResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
