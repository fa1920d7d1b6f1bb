// Package ssh implements the transport interface over SSH and SFTP.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/wieldops/wield/pkg/transport"
)

// Client implements transport.Transport over a single SSH connection.
type Client struct {
	config *Config

	connMu      sync.RWMutex
	client      *ssh.Client
	isConnected bool
	connectedAt time.Time
}

// NewClient creates a new SSH transport for one node.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: config}, nil
}

// Connect establishes the SSH connection to the node.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isConnected && c.client != nil {
		return nil
	}

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &transport.TransportError{
			Op:          "connect",
			Err:         err,
			IsAuthError: true,
		}
	}

	address := c.config.Address()
	log.Debug().Str("address", address).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)

	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return &transport.TransportError{
			Op:          "connect",
			Err:         ctx.Err(),
			IsTemporary: true,
		}
	case err := <-errChan:
		return &transport.TransportError{
			Op:          "connect",
			Err:         err,
			IsTemporary: true,
		}
	case client := <-connChan:
		c.client = client
		c.isConnected = true
		c.connectedAt = time.Now()
		return nil
	}
}

// Close tears down the SSH connection.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	c.isConnected = false
	return err
}

// IsConnected reports whether the transport has an active connection.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.isConnected
}

// getClient returns the underlying SSH client or a transport error.
func (c *Client) getClient() (*ssh.Client, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if !c.isConnected || c.client == nil {
		return nil, &transport.TransportError{
			Op:          "session",
			Err:         fmt.Errorf("not connected"),
			IsTemporary: true,
		}
	}
	return c.client, nil
}

// Run executes a command on the node.
func (c *Client) Run(ctx context.Context, cmd string) (*transport.ExecResult, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	session, err := sshClient.NewSession()
	if err != nil {
		return nil, &transport.TransportError{
			Op:          "run",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	startTime := time.Now()

	log.Debug().Str("command", cmd).Msg("executing command")

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(cmd)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		runErr = ctx.Err()
	case runErr = <-doneChan:
	}

	result := &transport.ExecResult{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		Duration: time.Since(startTime),
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			// Command ran but exited non-zero: that is a result, not an error.
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return nil, &transport.TransportError{
			Op:          "run",
			Err:         runErr,
			IsTemporary: true,
		}
	}

	return result, nil
}

// Upload writes content to a file on the node with the given mode via SFTP.
func (c *Client) Upload(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error {
	sshClient, err := c.getClient()
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return &transport.TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to create sftp client: %w", err),
			IsTemporary: true,
		}
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return &transport.TransportError{Op: "upload", Err: err, IsTemporary: true}
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return &transport.TransportError{
				Op:  "upload",
				Err: fmt.Errorf("failed to create parent directory %s: %w", dir, err),
			}
		}
	}

	// Write to a temp path first so readers never observe a partial file.
	tmpPath := remotePath + ".wield-tmp"
	f, err := sftpClient.Create(tmpPath)
	if err != nil {
		return &transport.TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to create %s: %w", tmpPath, err),
		}
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = sftpClient.Remove(tmpPath)
		return &transport.TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to write %s: %w", tmpPath, err),
			IsTemporary: true,
		}
	}
	if err := f.Close(); err != nil {
		return &transport.TransportError{Op: "upload", Err: err, IsTemporary: true}
	}

	if err := sftpClient.Chmod(tmpPath, mode); err != nil {
		_ = sftpClient.Remove(tmpPath)
		return &transport.TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to chmod %s: %w", tmpPath, err),
		}
	}

	if err := sftpClient.PosixRename(tmpPath, remotePath); err != nil {
		_ = sftpClient.Remove(tmpPath)
		return &transport.TransportError{
			Op:  "upload",
			Err: fmt.Errorf("failed to rename %s: %w", tmpPath, err),
		}
	}

	log.Debug().
		Str("path", remotePath).
		Int("bytes", len(content)).
		Msg("uploaded file")

	return nil
}

// Download reads a file from the node via SFTP.
func (c *Client) Download(ctx context.Context, remotePath string) ([]byte, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &transport.TransportError{
			Op:          "download",
			Err:         fmt.Errorf("failed to create sftp client: %w", err),
			IsTemporary: true,
		}
	}
	defer sftpClient.Close()

	if err := ctx.Err(); err != nil {
		return nil, &transport.TransportError{Op: "download", Err: err, IsTemporary: true}
	}

	f, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, &transport.TransportError{
			Op:  "download",
			Err: fmt.Errorf("failed to open %s: %w", remotePath, err),
		}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &transport.TransportError{
			Op:          "download",
			Err:         fmt.Errorf("failed to read %s: %w", remotePath, err),
			IsTemporary: true,
		}
	}

	return data, nil
}
