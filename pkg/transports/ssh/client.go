package ssh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Client is an SFTP session over one SSH connection.
type Client struct {
	conn   *ssh.Client
	sftp   *sftp.Client
	logger zerolog.Logger
}

var _ FileTransfer = (*Client)(nil)

// Dial connects to the host in config and opens an SFTP session.
func Dial(ctx context.Context, config *Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig, agentConn, err := config.BuildSSHClientConfig()
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}
	defer agentConn.Close()

	address := config.Address()
	logger = logger.With().Str("component", "ssh").Str("address", address).Logger()
	logger.Debug().Msg("Establishing SSH connection")

	dialer := net.Dialer{Timeout: config.ConnectionTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err, IsTemporary: true}
	}

	// the handshake itself is not context aware
	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })
	ncc, chans, reqs, err := ssh.NewClientConn(netConn, address, clientConfig)
	if !stop() && err == nil {
		_ = ncc.Close()
		err = ctx.Err()
	}
	if err != nil {
		_ = netConn.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &TransportError{Op: "handshake", Err: err, IsAuthError: true}
	}
	conn := ssh.NewClient(ncc, chans, reqs)

	sc, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}

	logger.Info().Msg("SSH connection established")
	return &Client{conn: conn, sftp: sc, logger: logger}, nil
}

// NewClient wraps an existing SFTP session. Close only closes the session.
func NewClient(sc *sftp.Client, logger zerolog.Logger) *Client {
	return &Client{sftp: sc, logger: logger.With().Str("component", "ssh").Logger()}
}

// Upload copies localPath to remotePath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) (*TransferResult, error) {
	started := time.Now()

	local, err := os.Open(localPath)
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: fmt.Errorf("failed to open local file: %w", err)}
	}
	defer local.Close()

	if dir := path.Dir(remotePath); dir != "/" && dir != "." {
		if err := c.sftp.MkdirAll(dir); err != nil {
			return nil, &TransportError{Op: "upload", Err: fmt.Errorf("failed to create remote directory: %w", err)}
		}
	}

	remote, err := c.sftp.Create(remotePath)
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: fmt.Errorf("failed to create remote file: %w", err), IsTemporary: true}
	}
	defer remote.Close()

	sum := sha256.New()
	n, err := copyWithContext(ctx, remote, io.TeeReader(local, sum))
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: fmt.Errorf("failed to copy file: %w", err), IsTemporary: true}
	}
	if mode != 0 {
		if err := c.sftp.Chmod(remotePath, mode); err != nil {
			return nil, &TransportError{Op: "upload", Err: fmt.Errorf("failed to set permissions: %w", err)}
		}
	}

	res := result(started, n, sum)
	c.logger.Info().
		Str("local", localPath).
		Str("remote", remotePath).
		Int64("bytes", n).
		Dur("duration", res.Duration()).
		Msg("File uploaded")
	return res, nil
}

// Download copies remotePath to localPath through a temporary file in the
// same directory.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (*TransferResult, error) {
	started := time.Now()

	remote, err := c.sftp.Open(remotePath)
	if err != nil {
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to open remote file: %w", err)}
	}
	defer remote.Close()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to create local directory: %w", err)}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.tmp")
	if err != nil {
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to create local file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	sum := sha256.New()
	n, err := copyWithContext(ctx, io.MultiWriter(tmp, sum), remote)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to copy file: %w", err), IsTemporary: true}
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return nil, &TransportError{Op: "download", Err: fmt.Errorf("failed to replace %s: %w", localPath, err)}
	}

	res := result(started, n, sum)
	c.logger.Info().
		Str("remote", remotePath).
		Str("local", localPath).
		Int64("bytes", n).
		Dur("duration", res.Duration()).
		Msg("File downloaded")
	return res, nil
}

// Close ends the SFTP session and the SSH connection.
func (c *Client) Close() error {
	err := c.sftp.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func result(started time.Time, n int64, sum hash.Hash) *TransferResult {
	return &TransferResult{
		BytesTransferred: n,
		Checksum:         hex.EncodeToString(sum.Sum(nil)),
		StartedAt:        started,
		FinishedAt:       time.Now(),
	}
}

// copyWithContext copies data from src to dst while respecting context cancellation.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
