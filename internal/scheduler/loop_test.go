package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/logging"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

func TestTick_RunsEveryJobAndJoinsErrors(t *testing.T) {
	var ran []string
	job := func(name string, err error) Job {
		return Job{Name: name, Run: func(context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}
	l := NewLoop(DefaultConfig(), logging.Discard(),
		job("first", errors.New("boom")),
		job("second", nil),
	)

	err := l.Tick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "first: boom") {
		t.Fatalf("Tick error = %v, want first: boom", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v, want both jobs", ran)
	}
}

func TestStartStop(t *testing.T) {
	var ticks atomic.Int32
	l := NewLoop(Config{PollInterval: time.Millisecond}, logging.Discard(), Job{
		Name: "count",
		Run: func(context.Context) error {
			ticks.Add(1)
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- l.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not tick")
		}
		time.Sleep(time.Millisecond)
	}
	l.Stop()
	if err := <-done; err != nil {
		t.Errorf("Start returned %v", err)
	}
}

func TestStart_ContextCancel(t *testing.T) {
	l := NewLoop(Config{PollInterval: time.Hour}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Start(ctx); err != nil {
		t.Errorf("Start returned %v", err)
	}
}

func TestSessionSweep(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(logging.Discard())
	short := auth.NewSessionManager(st, time.Millisecond)
	long := auth.NewSessionManager(st, time.Hour)

	u := &model.User{ID: "user_1", Email: "bench@lab.test", Role: model.RoleUser}
	expired, err := short.CreateSession(ctx, u)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	live, err := long.CreateSession(ctx, u)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := SessionSweep(long, logging.Discard()).Run(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if s, _ := st.GetSession(ctx, expired.ID); s != nil {
		t.Error("expired session should be removed")
	}
	if s, _ := st.GetSession(ctx, live.ID); s == nil {
		t.Error("live session should be kept")
	}
}
