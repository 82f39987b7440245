package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"streamwatch/pkg/logx"
)

func TestAddIntervalRejectsNonPositive(t *testing.T) {
	s := New(Config{}, logx.Nop())
	if _, err := s.AddInterval("job", 0, 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("zero interval accepted")
	}
	if _, err := s.AddInterval("job", -time.Second, 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("negative interval accepted")
	}
}

func TestAddCronValidatesSpecBeforeStart(t *testing.T) {
	s := New(Config{}, logx.Nop())
	if _, err := s.AddCron("bad", "not a cron spec", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("malformed spec accepted")
	}
	if _, err := s.AddCron("good", "@every 1h", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestIntervalJobRuns(t *testing.T) {
	s := New(Config{Workers: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	if _, err := s.AddInterval("tick", 50*time.Millisecond, time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("add interval: %v", err)
	}

	s.Start(ctx)
	defer s.Stop(context.Background())

	deadline := time.After(3 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("interval job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
