// Package rcon is a Source RCON client for the CS2 dedicated server.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

var (
	ErrAuthFailed = errors.New("rcon authentication failed")
	ErrClosed     = errors.New("rcon client closed")
)

type ClientConfig struct {
	Address  string
	Password string
	Timeout  time.Duration // dial and per packet timeout, default 5s
}

// Client holds one authenticated connection, dialled lazily and re-dialled after errors.
// Commands are serialized.
type Client struct {
	config ClientConfig
	logger *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	nextID int32
	closed bool
}

func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{config: config, logger: logger}
}

// Execute runs a console command and returns its output. A failed command is retried once
// on a fresh connection.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	out, err := c.executeLocked(ctx, command)
	if err == nil || errors.Is(err, ErrAuthFailed) || ctx.Err() != nil {
		return out, err
	}

	c.logger.Warn("RCON command failed, reconnecting", "command", command, "error", err)
	c.dropLocked()
	return c.executeLocked(ctx, command)
}

func (c *Client) executeLocked(ctx context.Context, command string) (string, error) {
	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return "", err
		}
	}

	id := c.id()
	if err := c.write(ctx, id, TypeExecCommand, command); err != nil {
		c.dropLocked()
		return "", fmt.Errorf("send %q: %w", command, err)
	}

	for {
		packet, err := c.read(ctx)
		if err != nil {
			c.dropLocked()
			return "", fmt.Errorf("read response to %q: %w", command, err)
		}
		if packet.ID != id || packet.Type != TypeResponseValue {
			c.logger.Debug("Skipping unexpected RCON packet", "id", packet.ID, "type", packet.Type)
			continue
		}
		c.logger.Debug("RCON command executed", "command", command)
		return strings.TrimRight(packet.Payload, "\n"), nil
	}
}

func (c *Client) connectLocked(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}
	c.conn = conn

	id := c.id()
	if err := c.write(ctx, id, TypeAuth, c.config.Password); err != nil {
		c.dropLocked()
		return fmt.Errorf("send auth: %w", err)
	}

	// the server may send an empty response value before the auth response
	for {
		packet, err := c.read(ctx)
		if err != nil {
			c.dropLocked()
			return fmt.Errorf("read auth response: %w", err)
		}
		if packet.Type != TypeAuthResponse {
			continue
		}
		if packet.ID == -1 || packet.ID != id {
			c.dropLocked()
			return ErrAuthFailed
		}
		break
	}

	c.logger.Info("RCON connected", "address", c.config.Address)
	return nil
}

func (c *Client) write(ctx context.Context, id, packetType int32, payload string) error {
	c.conn.SetWriteDeadline(c.deadline(ctx))
	_, err := c.conn.Write(BuildPacket(id, packetType, payload))
	return err
}

func (c *Client) read(ctx context.Context) (Packet, error) {
	c.conn.SetReadDeadline(c.deadline(ctx))
	return ReadPacket(c.conn)
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.config.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (c *Client) id() int32 {
	c.nextID++
	if c.nextID <= 0 {
		c.nextID = 1
	}
	return c.nextID
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// IsConnected reports whether an authenticated connection is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection; later commands fail with ErrClosed
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.dropLocked()
	return nil
}
