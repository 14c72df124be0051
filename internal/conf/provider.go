package conf

import "sync/atomic"

// Provider hands out immutable configuration snapshots and applies runtime
// updates by swapping the whole Config atomically. Readers always observe
// either the old or the new configuration in full, never a torn mix.
type Provider struct {
	current atomic.Pointer[Config]
}

// NewProvider creates a provider seeded with the given configuration
func NewProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.current.Store(cfg)
	return p
}

// Snapshot returns the current configuration. Callers must treat the
// returned value as read-only.
func (p *Provider) Snapshot() *Config {
	return p.current.Load()
}

// Update copies the current configuration, applies fn to the copy and
// swaps it in. Takes effect on the next inbound event and the next cycle;
// already-stored messages are never reprocessed.
func (p *Provider) Update(fn func(*Config)) {
	next := p.Snapshot().clone()
	fn(next)
	p.current.Store(next)
}

func (c *Config) clone() *Config {
	next := *c
	next.RunTimes = append([]string(nil), c.RunTimes...)
	next.Filter.GroupBlacklist = append([]string(nil), c.Filter.GroupBlacklist...)
	next.Filter.GroupWhitelist = append([]string(nil), c.Filter.GroupWhitelist...)
	return &next
}
