package queue

import (
	"log/slog"
	"os"
	"testing"

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
			name: "valid config",
			config: map[string]any{
				"id":    "queue-1",
				"queue": "pathway:starts",
			},
			expectError: false,
		},
		{
			name: "valid config with connection",
			config: map[string]any{
				"id":    "queue-2",
				"queue": "pathway:starts",
				"connection": map[string]any{
					"addr":     "redis.internal:6379",
					"password": "secret",
					"db":       "2",
				},
			},
			expectError: false,
		},
		{
			name: "missing queue name",
			config: map[string]any{
				"id": "queue-3",
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
			assert.Equal(t, tt.config["queue"], trigger.Queue)
		})
	}
}

func TestNewTrigger_ConnectionConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	trigger, err := NewTrigger(map[string]any{
		"id":    "queue-1",
		"queue": "pathway:starts",
		"connection": map[string]any{
			"addr":    "redis.internal:6379",
			"db":      "2",
			"ignored": 42, // non-string values are dropped
		},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6379", trigger.Connection["addr"])
	assert.Equal(t, "2", trigger.Connection["db"])
	assert.NotContains(t, trigger.Connection, "ignored")
}

func TestTrigger_ParseDB(t *testing.T) {
	trigger := &Trigger{}

	db, err := trigger.parseDB("3")
	require.NoError(t, err)
	assert.Equal(t, 3, db)

	_, err = trigger.parseDB("not-a-number")
	assert.Error(t, err)
}
