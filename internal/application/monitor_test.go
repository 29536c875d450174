package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/poolctl/internal/domain"
)

func TestCheckQuotaRotatesWhenThresholdReached(t *testing.T) {
	t.Parallel()

	m, _, clock, sink := newTestManager(t)
	a, err := m.AddAccount(AddAccountParams{Identity: "a@example.com", Priority: 1, DailyQuotaLimit: time.Hour})
	require.NoError(t, err)
	_, err = m.AddAccount(AddAccountParams{Identity: "b@example.com", Priority: 2})
	require.NoError(t, err)

	_, err = m.StartSession(a.ID)
	require.NoError(t, err)

	monitor := NewMonitor(m, nil)

	// Below threshold: nothing happens.
	monitor.CheckQuota()
	inUse, err := m.Account(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInUse, inUse.Status)

	// 80% of a one-hour limit is 48 minutes of session time.
	clock.Advance(50 * time.Minute)
	monitor.CheckQuota()

	require.Eventually(t, func() bool {
		account, err := m.Account(a.ID)
		return err == nil && account.Status == domain.StatusCooldown
	}, time.Second, 5*time.Millisecond)
	assert.True(t, sink.has(domain.EventAccountRotated))
}

func TestCheckQuotaRespectsAutoRotateSetting(t *testing.T) {
	t.Parallel()

	m, _, clock, _ := newTestManager(t)
	settings := m.Settings()
	settings.AutoRotateOnQuotaLow = false
	require.NoError(t, m.UpdateSettings(settings))

	a, err := m.AddAccount(AddAccountParams{Identity: "a@example.com", DailyQuotaLimit: time.Hour})
	require.NoError(t, err)
	_, err = m.StartSession(a.ID)
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)

	NewMonitor(m, nil).CheckQuota()

	time.Sleep(20 * time.Millisecond)
	account, err := m.Account(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInUse, account.Status)
}

func TestCheckSessionTimeoutRotatesLongSessions(t *testing.T) {
	t.Parallel()

	m, _, clock, _ := newTestManager(t)
	a, err := m.AddAccount(AddAccountParams{Identity: "a@example.com", Priority: 1, DailyQuotaLimit: 100 * time.Hour})
	require.NoError(t, err)
	_, err = m.AddAccount(AddAccountParams{Identity: "b@example.com", Priority: 2})
	require.NoError(t, err)

	_, err = m.StartSession(a.ID)
	require.NoError(t, err)

	monitor := NewMonitor(m, nil)
	monitor.CheckSessionTimeout()

	account, err := m.Account(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInUse, account.Status)

	clock.Advance(m.Settings().SessionTimeout + time.Minute)
	monitor.CheckSessionTimeout()

	require.Eventually(t, func() bool {
		account, err := m.Account(a.ID)
		return err == nil && account.Status == domain.StatusCooldown
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorChecksNoopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	m, _, _, sink := newTestManager(t)
	addAccount(t, m, "a@example.com", 1)

	monitor := NewMonitor(m, nil)
	monitor.CheckQuota()
	monitor.CheckSessionTimeout()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, sink.has(domain.EventAccountRotated))
}

func TestTickLoopAppliesIntervalChanges(t *testing.T) {
	t.Parallel()

	m, _, _, _ := newTestManager(t)
	monitor := NewMonitor(m, nil)

	var interval atomic.Int64
	interval.Store(int64(5 * time.Millisecond))
	var ticks atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		monitor.tickLoop(ctx,
			func() time.Duration { return time.Duration(interval.Load()) },
			func() { ticks.Add(1) },
		)
		close(done)
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	// Shorten the interval mid-run; ticks must keep arriving at the new
	// cadence without restarting the loop.
	interval.Store(int64(time.Millisecond))
	before := ticks.Load()
	require.Eventually(t, func() bool { return ticks.Load() >= before+5 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick loop did not stop after cancellation")
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	m, _, _, _ := newTestManager(t)
	settings := m.Settings()
	settings.QuotaCheckInterval = 5 * time.Millisecond
	settings.SessionCheckInterval = 5 * time.Millisecond
	require.NoError(t, m.UpdateSettings(settings))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewMonitor(m, nil).Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
