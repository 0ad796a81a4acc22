package schedule

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name        string
		config      map[string]any
		expectError bool
	}{
		{
			name: "valid cron expression",
			config: map[string]any{
				"id":        "schedule-1",
				"cron":      "*/5 * * * *",
				"flow_name": "orders",
			},
			expectError: false,
		},
		{
			name: "simple daily cron",
			config: map[string]any{
				"id":        "schedule-2",
				"cron":      "0 0 * * *",
				"flow_name": "nightly-report",
			},
			expectError: false,
		},
		{
			name: "missing id",
			config: map[string]any{
				"cron":      "0 0 * * *",
				"flow_name": "orders",
			},
			expectError: true,
		},
		{
			name: "missing flow name",
			config: map[string]any{
				"id":   "schedule-3",
				"cron": "0 0 * * *",
			},
			expectError: true,
		},
		{
			name: "missing cron expression",
			config: map[string]any{
				"id":        "schedule-4",
				"flow_name": "orders",
			},
			expectError: true,
		},
		{
			name: "invalid cron expression",
			config: map[string]any{
				"id":        "schedule-5",
				"cron":      "not a cron",
				"flow_name": "orders",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.config, logger)

			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, trigger)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, trigger)
			assert.True(t, trigger.Enabled)
			assert.Equal(t, tt.config["cron"], trigger.CronExpr)
			assert.Equal(t, tt.config["flow_name"], trigger.FlowName)
			assert.Equal(t, "scheduler", trigger.Actor)
		})
	}
}

func TestTrigger_RunInvokesCallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	trigger, err := NewTrigger(map[string]any{
		"id":        "schedule-1",
		"cron":      "0 0 * * *",
		"flow_name": "orders",
		"variables": map[string]any{"priority": "high"},
		"actor":     "nightly",
	}, logger)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		gotFlow   string
		gotActor  string
		gotVars   map[string]any
		callbacks int
	)

	done := make(chan struct{})

	trigger.callback = func(ctx context.Context, flowName string, variables map[string]any, actor string) error {
		mu.Lock()
		defer mu.Unlock()

		gotFlow = flowName
		gotActor = actor
		gotVars = variables
		callbacks++

		close(done)

		return nil
	}

	trigger.run()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, 1, callbacks)
	assert.Equal(t, "orders", gotFlow)
	assert.Equal(t, "nightly", gotActor)
	assert.Equal(t, "high", gotVars["priority"])
	assert.NotEmpty(t, gotVars["triggered_at"])
}

func TestTrigger_StartAndStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	trigger, err := NewTrigger(map[string]any{
		"id":        "schedule-1",
		"cron":      "0 0 1 1 *",
		"flow_name": "orders",
	}, logger)
	require.NoError(t, err)

	ctx := context.Background()

	callback := func(ctx context.Context, flowName string, variables map[string]any, actor string) error {
		return nil
	}

	require.NoError(t, trigger.Start(ctx, callback))
	assert.NoError(t, trigger.Stop(ctx))
}
