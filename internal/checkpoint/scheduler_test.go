package checkpoint_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokenledger/internal/checkpoint"
)

type persisterStub struct {
	mu      sync.Mutex
	targets []string
	err     error
}

func (p *persisterStub) Persist(_ context.Context, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.targets = append(p.targets, target)
	return p.err
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "should run on a valid schedule", schedule: "*/5 * * * *", wantRunning: true},
		{name: "should stay idle without a schedule", schedule: ""},
		{name: "should reject an invalid schedule", schedule: "every now and then", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			scheduler := checkpoint.NewScheduler(&persisterStub{}, tt.schedule, "token_usage.json")

			err := scheduler.Start(ctx)
			if tt.wantError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantRunning, scheduler.IsRunning())

			if !tt.wantRunning {
				require.Nil(t, scheduler.NextRun())
			}

			scheduler.Stop()
			require.False(t, scheduler.IsRunning())
		})
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := checkpoint.NewScheduler(&persisterStub{}, "@every 1h", "token_usage.json")

	require.NoError(t, scheduler.Start(ctx))
	require.True(t, scheduler.IsRunning())

	cancel()
	require.Eventually(t, func() bool { return !scheduler.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Run("should persist to the configured target", func(t *testing.T) {
		persister := &persisterStub{}
		scheduler := checkpoint.NewScheduler(persister, "", "usage.db")

		require.NoError(t, scheduler.RunOnce(context.Background()))
		require.Equal(t, []string{"usage.db"}, persister.targets)
	})

	t.Run("should surface persist failures", func(t *testing.T) {
		persister := &persisterStub{err: errors.New("disk full")}
		scheduler := checkpoint.NewScheduler(persister, "", "token_usage.json")

		require.EqualError(t, scheduler.RunOnce(context.Background()), "disk full")
	})
}

func TestScheduler_Restart(t *testing.T) {
	first, cancelFirst := context.WithCancel(context.Background())
	scheduler := checkpoint.NewScheduler(&persisterStub{}, "@every 1h", "token_usage.json")

	require.NoError(t, scheduler.Start(first))
	require.Equal(t, 1, scheduler.Jobs())
	scheduler.Stop()

	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()

	require.NoError(t, scheduler.Start(second))
	require.Equal(t, 1, scheduler.Jobs())

	cancelFirst()
	require.Never(t, func() bool { return !scheduler.IsRunning() }, 100*time.Millisecond, 10*time.Millisecond)

	scheduler.Stop()
	require.False(t, scheduler.IsRunning())
}
