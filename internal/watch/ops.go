package watch

import (
	"context"
	"errors"
	"fmt"

	"streamwatch/internal/storage"
	"streamwatch/internal/transport"
	"streamwatch/pkg/logx"
)

// ErrNotConfigured reports an operation on a tenant that has no row.
var ErrNotConfigured = errors.New("channel watch is not configured")

const (
	minStableChecks = 1
	maxStableChecks = 5
	maxGraceMinutes = 120
)

// SetupParams is the produced setup surface. Zero StableChecks /
// PollSeconds select the platform defaults; GraceMinutes < 0 selects the
// platform default grace.
type SetupParams struct {
	Platform        storage.Platform
	ChatID          int64
	ChannelRefOrURL string

	Announce transport.ChatTarget
	PingText string

	StableChecks int
	PollSeconds  int
	GraceMinutes int
}

// Setup validates, clamps and persists a tenant configuration, and resets
// both persisted runtime state and volatile debounce state. Validation
// happens once here, at the write boundary; reads trust the stored row.
func (e *Engine) Setup(ctx context.Context, p SetupParams) (storage.TenantConfig, error) {
	plat, ok := e.plats[p.Platform]
	if !ok {
		return storage.TenantConfig{}, fmt.Errorf("unknown platform %q", p.Platform)
	}
	ref, err := plat.Normalize(p.ChannelRefOrURL)
	if err != nil {
		return storage.TenantConfig{}, err
	}
	if p.Announce.ChatID == 0 {
		return storage.TenantConfig{}, errors.New("announce target missing or invalid")
	}

	minPoll, maxPoll, defPoll := plat.PollBounds()

	stable := p.StableChecks
	if stable == 0 {
		stable = 2
	}
	stable = clamp(stable, minStableChecks, maxStableChecks)

	poll := p.PollSeconds
	if poll == 0 {
		poll = defPoll
	}
	poll = clamp(poll, minPoll, maxPoll)

	graceSec := plat.DefaultGraceSeconds()
	if p.GraceMinutes >= 0 {
		graceSec = clamp(p.GraceMinutes, 0, maxGraceMinutes) * 60
	}

	cfg := storage.TenantConfig{
		Key:                 storage.TenantKey{Platform: p.Platform, ChatID: p.ChatID},
		ChannelRef:          ref,
		AnnounceChatID:      p.Announce.ChatID,
		AnnounceThreadID:    p.Announce.ThreadID,
		PingText:            p.PingText,
		StableThreshold:     stable,
		PollSeconds:         poll,
		OfflineGraceSeconds: graceSec,
		Enabled:             true,
	}
	if err := e.store.PutTenant(ctx, cfg); err != nil {
		return storage.TenantConfig{}, fmt.Errorf("persist tenant: %w", err)
	}
	e.resetState(cfg.Key)

	e.log.Info("tenant configured",
		logx.String("platform", string(p.Platform)),
		logx.Int64("chat", p.ChatID),
		logx.String("channel", ref),
		logx.Int("stable", stable),
		logx.Int("poll_s", poll),
		logx.Int("grace_s", graceSec),
	)
	return cfg, nil
}

// StatusReport is the produced status surface: stored config + runtime
// plus the volatile cached live state and run counters.
type StatusReport struct {
	Tenant storage.Tenant

	IsLive      bool
	LiveHits    int
	OfflineHits int
}

func (e *Engine) Status(ctx context.Context, key storage.TenantKey) (*StatusReport, error) {
	t, err := e.store.GetTenant(ctx, key)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Enabled {
		return nil, ErrNotConfigured
	}
	st := e.state(key)
	live, off := st.deb.Hits()
	return &StatusReport{Tenant: *t, IsLive: st.isLive, LiveHits: live, OfflineHits: off}, nil
}

// Disable removes the tenant row entirely and resets volatile state.
func (e *Engine) Disable(ctx context.Context, key storage.TenantKey) error {
	t, err := e.store.GetTenant(ctx, key)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotConfigured
	}
	if err := e.store.DeleteTenant(ctx, key); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	e.resetState(key)
	e.log.Info("tenant disabled",
		logx.String("platform", string(key.Platform)), logx.Int64("chat", key.ChatID))
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
