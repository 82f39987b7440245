// Package scheduler runs registered jobs on cron or interval triggers
// through a small worker pool with per-task timeouts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"streamwatch/pkg/logx"
)

type Config struct {
	Workers        int
	DefaultTimeout time.Duration
}

type task struct {
	id      string
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

type scheduleDef struct {
	id      string
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     func(ctx context.Context) error
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	queue  chan task
	stopCh chan struct{}
}

func New(cfg Config, log logx.Logger) *Service {
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	s.queue = make(chan task, 64)
	s.c = cron.New(cron.WithParser(s.parser))

	// Re-register defs added before Start.
	for _, d := range s.defs {
		s.addCronLocked(d)
	}

	for i := 0; i < workers; i++ {
		go s.worker(ctx, s.stopCh, s.queue)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("workers", workers))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("cron:%d", time.Now().UnixNano())
	d := scheduleDef{id: id, name: name, spec: spec, timeout: s.resolveTimeout(timeout), job: job}
	s.defs = append(s.defs, d)
	if s.c == nil {
		// Validate now, register on Start.
		_, err := s.parser.Parse(spec)
		return id, err
	}
	return id, s.addCronLocked(d)
}

func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	if every <= 0 {
		return "", errors.New("interval must be positive")
	}
	return s.AddCron(name, fmt.Sprintf("@every %s", every.String()), timeout, job)
}

func (s *Service) addCronLocked(d scheduleDef) error {
	_, err := s.c.AddFunc(d.spec, func() {
		s.enqueue(task{id: d.id, name: d.name, timeout: d.timeout, run: d.job})
	})
	return err
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}

func (s *Service) enqueue(t task) {
	select {
	case s.queue <- t:
	default:
		s.log.Warn("scheduler queue full, dropping task", logx.String("task", t.name))
	}
}

func (s *Service) worker(ctx context.Context, stopCh chan struct{}, queue chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	var cancel func()
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := t.run(runCtx); err != nil {
		s.log.Warn("task failed", logx.String("task", t.name), logx.Err(err),
			logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Debug("task ok", logx.String("task", t.name), logx.Duration("took", time.Since(start)))
}
