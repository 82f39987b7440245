package watch

import (
	"context"

	"streamwatch/internal/storage"
	"streamwatch/internal/transport"
)

// RawSignal is one unfiltered page observation. It is best-effort and may
// be wrong in either direction; nothing downstream trusts a single one.
type RawSignal struct {
	Live      bool
	Title     string
	Category  string
	AvatarURL string
}

// Event is the debounced interpretation of a raw observation.
type Event int

const (
	EventNone Event = iota
	EventLiveConfirmed
	EventOfflineConfirmed
)

func (e Event) String() string {
	switch e {
	case EventLiveConfirmed:
		return "live_confirmed"
	case EventOfflineConfirmed:
		return "offline_confirmed"
	default:
		return "none"
	}
}

// Platform is the capability set one streaming platform contributes: ref
// normalization, the page fetch, payload rendering, and its poll bounds.
// The engine itself is platform-agnostic.
type Platform interface {
	Name() storage.Platform

	// Normalize turns user input (channel name or URL) into a canonical
	// channel ref, or errors when nothing usable remains.
	Normalize(raw string) (string, error)
	ChannelURL(channelRef string) string

	Fetch(ctx context.Context, channelRef string) (RawSignal, error)

	RenderLive(channelRef string, sig RawSignal) string
	RenderOffline(channelRef string, sig RawSignal) string

	// PollBounds returns the allowed min/max and the default poll interval
	// in seconds.
	PollBounds() (min, max, def int)
	DefaultGraceSeconds() int
}

// Publisher is the notification sink: publish a live message, later edit
// it to offline. UpdateToOffline reports transport.ErrMessageNotFound when
// the message is gone; callers treat that as already resolved.
type Publisher interface {
	PublishLive(ctx context.Context, to transport.ChatTarget, ping, text string) (transport.MessageRef, error)
	UpdateToOffline(ctx context.Context, ref transport.MessageRef, text string) error
}

// tenantState is the in-memory volatile half of a tenant: the debounce
// counters and the cached stabilized live flag. Deliberately not
// persisted; it only gates debouncing, never notification correctness.
type tenantState struct {
	deb    Debouncer
	isLive bool
}
