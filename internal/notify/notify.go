// Package notify delivers rendered announcement payloads through the chat
// transport. Calls are rate limited and bounded; they stay synchronous so
// the caller can commit the announced flag and message ref as one unit
// with the send result.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"streamwatch/internal/transport"
	"streamwatch/pkg/logx"
)

type Config struct {
	RatePerSec  int           // default 3
	Burst       int           // default = RatePerSec
	SendTimeout time.Duration // default 10s
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	lim *rate.Limiter

	ad  transport.Adapter
	log logx.Logger
}

func New(cfg Config, ad transport.Adapter, log logx.Logger) *Service {
	s := &Service{ad: ad, log: log}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	s.mu.Unlock()
}

func (s *Service) snapshot() (*rate.Limiter, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lim, s.cfg.SendTimeout
}

// PublishLive sends the live announcement, optionally preceded by a ping
// line, and returns the message reference for the later offline edit.
func (s *Service) PublishLive(ctx context.Context, to transport.ChatTarget, ping, text string) (transport.MessageRef, error) {
	lim, timeout := s.snapshot()
	if err := lim.Wait(ctx); err != nil {
		return transport.MessageRef{}, err
	}
	if ping != "" {
		text = ping + "\n" + text
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.ad.SendText(cctx, to, text, &transport.SendOptions{ParseMode: "HTML"})
}

// UpdateToOffline edits a previously published announcement in place.
// transport.ErrMessageNotFound passes through for the caller to treat as
// already resolved.
func (s *Service) UpdateToOffline(ctx context.Context, ref transport.MessageRef, text string) error {
	lim, timeout := s.snapshot()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.ad.EditText(cctx, ref, text, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

// Reply sends a plain command response (no ping, preview disabled).
func (s *Service) Reply(ctx context.Context, to transport.ChatTarget, text string) error {
	lim, timeout := s.snapshot()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := s.ad.SendText(cctx, to, text, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}
