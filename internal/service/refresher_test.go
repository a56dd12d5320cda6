package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

type stubRefreshable struct {
	mu    sync.Mutex
	state models.SessionState
	err   error
	calls int
}

func (s *stubRefreshable) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubRefreshable) Refresh(ctx context.Context) (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return models.SessionSnapshot{State: s.state}, s.err
}

func (s *stubRefreshable) refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRefresherTickOnlyInInitial(t *testing.T) {
	session := &stubRefreshable{state: models.StateInitial}
	r := NewRefresher(session, 0, nil)
	assert.Equal(t, 30*time.Second, r.interval)

	assert.True(t, r.Tick(context.Background()))
	assert.Equal(t, 1, session.refreshes())

	for _, state := range []models.SessionState{models.StateLocationScan, models.StateIdentityCheck, models.StateProcessing, models.StateSuccess} {
		session.mu.Lock()
		session.state = state
		session.mu.Unlock()
		assert.False(t, r.Tick(context.Background()), string(state))
	}
	assert.Equal(t, 1, session.refreshes())
}

func TestRefresherTickToleratesErrors(t *testing.T) {
	session := &stubRefreshable{state: models.StateInitial, err: errors.New("offline")}
	r := NewRefresher(session, time.Minute, nil)
	assert.True(t, r.Tick(context.Background()))
}

func TestRefresherRunStopsWithContext(t *testing.T) {
	session := &stubRefreshable{state: models.StateInitial}
	r := NewRefresher(session, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return session.refreshes() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
