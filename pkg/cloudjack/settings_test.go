package cloudjack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryPolicy().MaxAttempts, s.Retry.MaxAttempts)
	assert.Equal(t, DefaultWorkers, s.Workers)
	assert.False(t, s.Retry.RetryUnknown)
}

func TestLoadSettingsOverrides(t *testing.T) {
	s, err := LoadSettings(envFrom(map[string]string{
		EnvMaxAttempts:    "5",
		EnvBaseDelay:      "50ms",
		EnvMaxDelay:       "2s",
		EnvAttemptTimeout: "30s",
		EnvWorkers:        "16",
		EnvRetryUnknown:   "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, s.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, s.Retry.MaxDelay)
	assert.Equal(t, 30*time.Second, s.Retry.AttemptTimeout)
	assert.Equal(t, 16, s.Workers)
	assert.True(t, s.Retry.RetryUnknown)
}

func TestExecutorWithSettings(t *testing.T) {
	s, err := LoadSettings(envFrom(map[string]string{EnvWorkers: "3"}))
	require.NoError(t, err)

	e := NewExecutor(WithSettings(s))
	defer func() { require.NoError(t, e.Close()) }()
	assert.Equal(t, 3, e.Workers())
}

func TestLoadSettingsRejectsMalformed(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{EnvMaxAttempts, "zero"},
		{EnvMaxAttempts, "0"},
		{EnvBaseDelay, "soon"},
		{EnvWorkers, "-1"},
		{EnvRetryUnknown, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := LoadSettings(envFrom(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.True(t, IsConfig(err))
		})
	}
}
