package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/i474232898/forecast-summary/internal/logger"
)

// ErrUnavailable is returned by resolvers that cannot produce a position.
var ErrUnavailable = errors.New("location unavailable")

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Status mirrors the permission states of a device location service.
type Status int

const (
	StatusNotDetermined Status = iota
	StatusDenied
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "not_determined"
	}
}

// Resolver produces the current position. It stands in for the device.
type Resolver interface {
	Resolve(ctx context.Context) (Coordinate, error)
}

// Manager exposes location as a capability: permission is requested once,
// and once granted each update is pushed to the registered handlers. Only the
// latest coordinate is kept.
type Manager struct {
	resolver Resolver
	allowed  bool
	l        *logger.Logger

	mu           sync.RWMutex
	status       Status
	last         *Coordinate
	onLocation   []func(Coordinate)
	onPermission []func(Status)
}

// NewManager builds a manager. allowed decides how a pending permission
// request resolves; a nil resolver always resolves to denied.
func NewManager(resolver Resolver, allowed bool, l *logger.Logger) *Manager {
	if l == nil {
		l = logger.Nop()
	}
	return &Manager{
		resolver: resolver,
		allowed:  allowed && resolver != nil,
		l:        l,
	}
}

// OnLocationChanged registers a handler for new coordinates.
func (m *Manager) OnLocationChanged(fn func(Coordinate)) {
	m.mu.Lock()
	m.onLocation = append(m.onLocation, fn)
	m.mu.Unlock()
}

// OnPermissionChanged registers a handler for permission status changes.
func (m *Manager) OnPermissionChanged(fn func(Status)) {
	m.mu.Lock()
	m.onPermission = append(m.onPermission, fn)
	m.mu.Unlock()
}

// Status returns the current permission status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastLocation returns the latest known coordinate.
func (m *Manager) LastLocation() (Coordinate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Coordinate{}, false
	}
	return *m.last, true
}

// RequestPermission asks for permission when it has not been determined yet,
// and starts an update when it is granted. A denied status is left alone.
func (m *Manager) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	status := m.status
	changed := false
	if status == StatusNotDetermined {
		status = StatusDenied
		if m.allowed {
			status = StatusAuthorized
		}
		m.status = status
		changed = true
	}
	handlers := append([]func(Status){}, m.onPermission...)
	m.mu.Unlock()

	if changed {
		m.l.Info("location permission changed", map[string]any{"status": status.String()})
		for _, fn := range handlers {
			fn(status)
		}
	}

	if status != StatusAuthorized {
		return nil
	}
	return m.Update(ctx)
}

// Update resolves the current position and notifies handlers. It requires
// permission.
func (m *Manager) Update(ctx context.Context) error {
	if m.Status() != StatusAuthorized {
		return fmt.Errorf("%w: permission %s", ErrUnavailable, m.Status())
	}

	c, err := m.resolver.Resolve(ctx)
	if err != nil {
		m.l.Warning("location update failed", map[string]any{"err": err})
		return fmt.Errorf("resolve location: %w", err)
	}

	m.mu.Lock()
	m.last = &c
	handlers := append([]func(Coordinate){}, m.onLocation...)
	m.mu.Unlock()

	m.l.Debug("location updated", map[string]any{"coordinate": c.String()})
	for _, fn := range handlers {
		fn(c)
	}
	return nil
}
