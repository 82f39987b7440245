package storage

import (
	"context"
	"time"
)

type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// TenantKey identifies one monitored binding: one chat watching one
// channel on one platform.
type TenantKey struct {
	Platform Platform
	ChatID   int64
}

// TenantConfig is the operator-set half of a tenant row. Ranges are
// validated and clamped at the write boundary (setup), not on read.
type TenantConfig struct {
	Key TenantKey

	ChannelRef       string
	AnnounceChatID   int64
	AnnounceThreadID int
	PingText         string

	StableThreshold     int
	PollSeconds         int
	OfflineGraceSeconds int
	Enabled             bool
}

// TenantRuntime is the persisted runtime half; it must survive restarts.
// Announced is the at-most-once guard: true exactly while a live message
// has been published and not yet edited to offline.
type TenantRuntime struct {
	LastCheck    time.Time
	LastSeenLive time.Time
	Announced    bool

	LastMsgChatID int64
	LastMsgID     int
}

type Tenant struct {
	TenantConfig
	TenantRuntime
}

// MsgRef is the stored reference to the last published live message.
type MsgRef struct {
	ChatID    int64
	MessageID int
}

// Store persists tenant configuration and runtime state.
//
// A missing tenant row is a valid "not configured" state: GetTenant
// returns (nil, nil), never an error, for an absent key.
type Store interface {
	GetTenant(ctx context.Context, key TenantKey) (*Tenant, error)
	ListEnabled(ctx context.Context) ([]Tenant, error)

	// PutTenant upserts the config half and resets the runtime half to
	// zero values (fresh setup always starts unannounced).
	PutTenant(ctx context.Context, cfg TenantConfig) error
	DeleteTenant(ctx context.Context, key TenantKey) error

	// MarkChecked persists the last poll attempt time. It is written
	// before the fetch so a slow or failed fetch cannot re-trigger
	// immediately on the next tick.
	MarkChecked(ctx context.Context, key TenantKey, t time.Time) error
	SetLastSeenLive(ctx context.Context, key TenantKey, t time.Time) error

	// SetAnnounced flips the at-most-once guard. When announcing, ref
	// carries the published message and is stored in the same statement;
	// when clearing, ref is nil and the stored ref is left in place.
	SetAnnounced(ctx context.Context, key TenantKey, announced bool, ref *MsgRef) error

	Close() error
}
