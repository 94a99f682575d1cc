package handlers

import (
	"context"
	"sync"

	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
)

// DevicePermissions records what the UI shell reported about device
// capabilities. Capabilities never reported are treated as granted.
type DevicePermissions struct {
	mu      sync.RWMutex
	granted map[chat.Capability]bool
}

func NewDevicePermissions() *DevicePermissions {
	return &DevicePermissions{granted: map[chat.Capability]bool{}}
}

func (p *DevicePermissions) Granted(_ context.Context, c chat.Capability) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, ok := p.granted[c]
	return !ok || g, nil
}

func (p *DevicePermissions) Set(c chat.Capability, granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted[c] = granted
}
