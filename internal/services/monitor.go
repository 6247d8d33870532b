package services

import (
	"context"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// NetworkMonitor notifies subscribers when the local network configuration changes.
type NetworkMonitor interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// InterfaceMonitor detects network changes by polling the addresses of the active interfaces.
type InterfaceMonitor struct {
	interval time.Duration
	logger   *log.Logger
	snapshot func() (string, error)

	mu   sync.Mutex
	subs map[int]func()
	next int
	last string
}

// NewInterfaceMonitor creates a monitor that polls every interval once [InterfaceMonitor.Run] is called.
func NewInterfaceMonitor(interval time.Duration, logger *log.Logger) *InterfaceMonitor {
	if logger == nil {
		logger = log.Default()
	}
	m := &InterfaceMonitor{
		interval: interval,
		logger:   logger,
		snapshot: interfaceSnapshot,
		subs:     make(map[int]func()),
	}
	m.last, _ = m.snapshot()
	return m
}

func (m *InterfaceMonitor) Subscribe(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Run polls until ctx is done.
func (m *InterfaceMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Poll takes one snapshot and notifies subscribers if it differs from the previous one.
func (m *InterfaceMonitor) Poll() bool {
	current, err := m.snapshot()
	if err != nil {
		m.logger.Debug("failed to read network interfaces", "error", err)
		return false
	}

	m.mu.Lock()
	if current == m.last {
		m.mu.Unlock()
		return false
	}
	m.last = current
	subs := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Info("network change detected", "subscribers", len(subs))
	for _, fn := range subs {
		fn()
	}
	return true
}

func interfaceSnapshot() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var addrs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range ifaceAddrs {
			addrs = append(addrs, iface.Name+"="+addr.String())
		}
	}

	slices.Sort(addrs)
	return strings.Join(addrs, ","), nil
}
