package watch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"streamwatch/internal/storage"
	"streamwatch/internal/telemetry"
	"streamwatch/pkg/logx"
)

type Config struct {
	FetchTimeout time.Duration // per-fetch bound; default 15s

	// Global outbound fetch budget across all tenants.
	FetchRatePerSec int // default 2
	FetchBurst      int // default 4
}

// Engine is the per-tenant reconciliation core. One Tick scans all enabled
// tenants, gates each by its own poll interval, fetches the due ones, and
// feeds the result through debounce and lifecycle.
//
// Volatile per-tenant state (debounce counters, cached live flag) is owned
// here, keyed by tenant; it is rebuilt empty on process start and reset on
// setup/disable.
type Engine struct {
	log   logx.Logger
	store storage.Store
	pub   Publisher
	plats map[storage.Platform]Platform

	mu  sync.Mutex
	cfg Config
	lim *rate.Limiter

	// tickMu serializes ticks: a slow tick outliving the next trigger must
	// not allow the same tenant to be reconciled concurrently.
	tickMu sync.Mutex

	smu    sync.Mutex
	states map[storage.TenantKey]*tenantState

	now func() time.Time
}

func New(cfg Config, store storage.Store, pub Publisher, platforms []Platform, log logx.Logger) *Engine {
	telemetry.Init()
	e := &Engine{
		log:    log,
		store:  store,
		pub:    pub,
		plats:  make(map[storage.Platform]Platform, len(platforms)),
		states: map[storage.TenantKey]*tenantState{},
		now:    time.Now,
	}
	for _, p := range platforms {
		e.plats[p.Name()] = p
	}
	e.Apply(cfg)
	return e
}

// Apply updates the fetch budget and timeout at runtime.
func (e *Engine) Apply(cfg Config) {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.FetchRatePerSec <= 0 {
		cfg.FetchRatePerSec = 2
	}
	if cfg.FetchBurst <= 0 {
		cfg.FetchBurst = cfg.FetchRatePerSec * 2
	}
	e.mu.Lock()
	e.cfg = cfg
	e.lim = rate.NewLimiter(rate.Limit(cfg.FetchRatePerSec), cfg.FetchBurst)
	e.mu.Unlock()
}

func (e *Engine) state(key storage.TenantKey) *tenantState {
	e.smu.Lock()
	defer e.smu.Unlock()
	st, ok := e.states[key]
	if !ok {
		st = &tenantState{}
		e.states[key] = st
	}
	return st
}

func (e *Engine) resetState(key storage.TenantKey) {
	e.smu.Lock()
	delete(e.states, key)
	e.smu.Unlock()
}

// Tick scans all enabled tenants once. Safe to trigger on a short global
// cadence: tenants not yet due are skipped without side effects, and an
// overlapping trigger is dropped while a previous tick still runs.
func (e *Engine) Tick(ctx context.Context) error {
	if !e.tickMu.TryLock() {
		e.log.Debug("tick still running; skipping trigger")
		return nil
	}
	defer e.tickMu.Unlock()

	start := time.Now()
	defer func() { telemetry.ObserveTick(time.Since(start)) }()

	tenants, err := e.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	telemetry.SetTenants(len(tenants))

	now := e.now()
	for i := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// One tenant's failure must never abort the tick.
		e.pollTenant(ctx, &tenants[i], now)
	}
	return nil
}

func (e *Engine) pollTenant(ctx context.Context, t *storage.Tenant, now time.Time) {
	log := e.log.With(
		logx.String("platform", string(t.Key.Platform)),
		logx.Int64("chat", t.Key.ChatID),
		logx.String("channel", t.ChannelRef),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while polling tenant", logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	plat, ok := e.plats[t.Key.Platform]
	if !ok || t.ChannelRef == "" || t.AnnounceChatID == 0 {
		log.Warn("tenant config invalid; skipping")
		return
	}

	interval := time.Duration(t.PollSeconds) * time.Second
	if now.Sub(t.LastCheck) < interval {
		return
	}

	// Mark checked before fetching so a slow or failed fetch cannot cause
	// a re-fetch storm on the next tick.
	if err := e.store.MarkChecked(ctx, t.Key, now); err != nil {
		log.Warn("mark checked failed; skipping tenant this tick", logx.Err(err))
		return
	}

	e.mu.Lock()
	lim := e.lim
	fetchTimeout := e.cfg.FetchTimeout
	e.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return
	}

	telemetry.Polls.Inc()
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	sig, err := plat.Fetch(fctx, t.ChannelRef)
	cancel()
	if err != nil {
		// A failed or timed-out fetch says nothing about stream state:
		// counters and lifecycle stay untouched this tick.
		telemetry.FetchErrors.Inc()
		log.Debug("fetch failed; tick inert", logx.Err(err))
		return
	}

	if sig.Live {
		// Advance on every raw live observation, not only confirmed ones,
		// so the grace period measures true elapsed offline time.
		if err := e.store.SetLastSeenLive(ctx, t.Key, now); err != nil {
			log.Warn("last seen live not persisted", logx.Err(err))
		} else {
			t.LastSeenLive = now
		}
	}

	st := e.state(t.Key)
	ev := st.deb.Observe(sig.Live, t.StableThreshold)

	if err := e.reconcile(ctx, t, st, plat, ev, sig, now); err != nil {
		log.Warn("reconcile failed; will retry on a later tick", logx.Err(err))
	}
}
