package a2s

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status is the last info query result
type Status struct {
	Online    bool      `json:"online"`
	Info      Info      `json:"info"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// Monitor keeps the latest status of one server
type Monitor struct {
	client  *Client
	address string
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status
}

func NewMonitor(client *Client, address string, logger *slog.Logger) *Monitor {
	return &Monitor{client: client, address: address, logger: logger}
}

// Refresh queries the server once and stores the result
func (m *Monitor) Refresh(ctx context.Context) Status {
	info, err := m.client.QueryInfo(ctx, m.address)
	status := Status{Online: err == nil, Info: info, CheckedAt: time.Now()}
	if err != nil {
		status.Error = err.Error()
		m.logger.Debug("Server query failed", "address", m.address, "error", err)
	}

	m.mu.Lock()
	wasOnline := m.status.Online
	m.status = status
	m.mu.Unlock()

	if wasOnline != status.Online {
		m.logger.Info("Server status changed", "address", m.address, "online", status.Online)
	}
	return status
}

// Status returns the last stored result; ok is false before the first refresh
func (m *Monitor) Status() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, !m.status.CheckedAt.IsZero()
}
