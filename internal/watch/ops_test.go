package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamwatch/internal/storage"
	"streamwatch/internal/transport"
	"streamwatch/pkg/logx"
)

func newOpsEngine(t *testing.T) (*Engine, *fakeStore, *fakePlatform) {
	t.Helper()
	store := newFakeStore()
	plat := &fakePlatform{name: storage.PlatformTwitch}
	eng := New(Config{FetchRatePerSec: 1000, FetchBurst: 1000, FetchTimeout: time.Second},
		store, &fakePublisher{}, []Platform{plat}, logx.Nop())
	return eng, store, plat
}

func TestSetupAppliesDefaultsAndClamps(t *testing.T) {
	eng, _, _ := newOpsEngine(t)
	ctx := context.Background()
	announce := transport.ChatTarget{ChatID: 42}

	cases := []struct {
		name                      string
		params                    SetupParams
		stable, pollSec, graceSec int
	}{
		{
			name:   "defaults",
			params: SetupParams{StableChecks: 0, PollSeconds: 0, GraceMinutes: -1},
			stable: 2, pollSec: 90, graceSec: 300,
		},
		{
			name:   "clamped high",
			params: SetupParams{StableChecks: 9, PollSeconds: 100000, GraceMinutes: 999},
			stable: 5, pollSec: 600, graceSec: 120 * 60,
		},
		{
			name:   "clamped low",
			params: SetupParams{StableChecks: -2, PollSeconds: 5, GraceMinutes: 0},
			stable: 1, pollSec: 30, graceSec: 0,
		},
		{
			name:   "in range",
			params: SetupParams{StableChecks: 3, PollSeconds: 120, GraceMinutes: 7},
			stable: 3, pollSec: 120, graceSec: 420,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.params
			p.Platform = storage.PlatformTwitch
			p.ChatID = 42
			p.ChannelRefOrURL = "somechan"
			p.Announce = announce

			cfg, err := eng.Setup(ctx, p)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if cfg.StableThreshold != tc.stable || cfg.PollSeconds != tc.pollSec || cfg.OfflineGraceSeconds != tc.graceSec {
				t.Fatalf("got (stable=%d poll=%d grace=%d), want (%d %d %d)",
					cfg.StableThreshold, cfg.PollSeconds, cfg.OfflineGraceSeconds,
					tc.stable, tc.pollSec, tc.graceSec)
			}
			if !cfg.Enabled {
				t.Fatal("setup must enable the tenant")
			}
		})
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	eng, _, _ := newOpsEngine(t)
	ctx := context.Background()

	if _, err := eng.Setup(ctx, SetupParams{Platform: "mixer", ChatID: 1, ChannelRefOrURL: "x",
		Announce: transport.ChatTarget{ChatID: 1}}); err == nil {
		t.Fatal("unknown platform accepted")
	}
	if _, err := eng.Setup(ctx, SetupParams{Platform: storage.PlatformTwitch, ChatID: 1, ChannelRefOrURL: "",
		Announce: transport.ChatTarget{ChatID: 1}}); err == nil {
		t.Fatal("empty channel accepted")
	}
	if _, err := eng.Setup(ctx, SetupParams{Platform: storage.PlatformTwitch, ChatID: 1,
		ChannelRefOrURL: "x"}); err == nil {
		t.Fatal("missing announce target accepted")
	}
}

func TestSetupResetsRuntimeAndVolatileState(t *testing.T) {
	eng, store, _ := newOpsEngine(t)
	ctx := context.Background()
	key := storage.TenantKey{Platform: storage.PlatformTwitch, ChatID: 42}

	// Simulate prior runtime state.
	store.tenants[key] = &storage.Tenant{
		TenantConfig:  storage.TenantConfig{Key: key, ChannelRef: "old", AnnounceChatID: 42, Enabled: true},
		TenantRuntime: storage.TenantRuntime{Announced: true, LastMsgID: 9},
	}
	st := eng.state(key)
	st.deb.Observe(true, 1)
	st.isLive = true

	if _, err := eng.Setup(ctx, SetupParams{Platform: storage.PlatformTwitch, ChatID: 42,
		ChannelRefOrURL: "newchan", Announce: transport.ChatTarget{ChatID: 42}, GraceMinutes: -1}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ten := store.tenant(t, key)
	if ten.Announced || ten.LastMsgID != 0 {
		t.Fatal("setup must reset persisted runtime state")
	}
	live, _ := eng.state(key).deb.Hits()
	if live != 0 || eng.state(key).isLive {
		t.Fatal("setup must reset volatile state")
	}
}

func TestStatusNotConfigured(t *testing.T) {
	eng, store, _ := newOpsEngine(t)
	ctx := context.Background()
	key := storage.TenantKey{Platform: storage.PlatformTwitch, ChatID: 42}

	if _, err := eng.Status(ctx, key); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("absent tenant: err = %v, want ErrNotConfigured", err)
	}

	store.tenants[key] = &storage.Tenant{TenantConfig: storage.TenantConfig{Key: key, Enabled: false}}
	if _, err := eng.Status(ctx, key); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("disabled tenant: err = %v, want ErrNotConfigured", err)
	}
}

func TestStatusReportsVolatileState(t *testing.T) {
	eng, store, _ := newOpsEngine(t)
	ctx := context.Background()
	key := storage.TenantKey{Platform: storage.PlatformTwitch, ChatID: 42}
	store.tenants[key] = &storage.Tenant{TenantConfig: storage.TenantConfig{
		Key: key, ChannelRef: "somechan", AnnounceChatID: 42, Enabled: true,
	}}

	st := eng.state(key)
	st.deb.Observe(true, 5)
	st.deb.Observe(true, 5)
	st.isLive = true

	rep, err := eng.Status(ctx, key)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !rep.IsLive || rep.LiveHits != 2 || rep.OfflineHits != 0 {
		t.Fatalf("report = live=%v hits=(%d,%d), want live with 2 live hits",
			rep.IsLive, rep.LiveHits, rep.OfflineHits)
	}
}

func TestDisable(t *testing.T) {
	eng, store, _ := newOpsEngine(t)
	ctx := context.Background()
	key := storage.TenantKey{Platform: storage.PlatformTwitch, ChatID: 42}

	if err := eng.Disable(ctx, key); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("disable absent: err = %v, want ErrNotConfigured", err)
	}

	store.tenants[key] = &storage.Tenant{TenantConfig: storage.TenantConfig{
		Key: key, ChannelRef: "somechan", AnnounceChatID: 42, Enabled: true,
	}}
	eng.state(key).isLive = true

	if err := eng.Disable(ctx, key); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got, _ := store.GetTenant(ctx, key); got != nil {
		t.Fatal("disable must remove the tenant row")
	}
	if eng.state(key).isLive {
		t.Fatal("disable must reset volatile state")
	}
}
